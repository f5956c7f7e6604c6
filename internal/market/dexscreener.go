package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const dexScreenerBaseURL = "https://api.dexscreener.com/latest/dex"

// DexScreenerClient talks to the pair/liquidity aggregator. No API key.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDexScreenerClient(logger *slog.Logger) *DexScreenerClient {
	return NewDexScreenerClientWithBaseURL(logger, dexScreenerBaseURL)
}

func NewDexScreenerClientWithBaseURL(logger *slog.Logger, baseURL string) *DexScreenerClient {
	return &DexScreenerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// pairPayload mirrors the aggregator's pair shape. Numeric fields are decoded
// as `any` because the provider mixes strings and numbers (priceUsd is a
// string, volume.h24 a number) and omits fields freely.
type pairPayload struct {
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd  any `json:"priceUsd"`
	Volume    struct {
		H24 any `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD  any `json:"usd"`
		Base any `json:"base"`
	} `json:"liquidity"`
	PriceChange struct {
		M5  any `json:"m5"`
		H1  any `json:"h1"`
		H6  any `json:"h6"`
		H24 any `json:"h24"`
	} `json:"priceChange"`
	PairCreatedAt any    `json:"pairCreatedAt"`
	URL           string `json:"url"`
	Info          struct {
		ImageURL string `json:"imageUrl"`
		Socials  []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

// TokenByAddress fetches the pairs listed for an address and keeps the first
// one in the provider's own ordering (documented policy: no re-sorting).
// Zero pairs means ErrNotFound.
func (d *DexScreenerClient) TokenByAddress(ctx context.Context, address string) (*TokenRecord, error) {
	var payload struct {
		Pairs []pairPayload `json:"pairs"`
	}
	if err := d.getJSON(ctx, fmt.Sprintf("%s/tokens/%s", d.baseURL, url.PathEscape(address)), &payload); err != nil {
		return nil, err
	}

	if len(payload.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs for %s: %w", address, ErrNotFound)
	}

	pair := payload.Pairs[0]
	rec := &TokenRecord{
		Name:         pair.BaseToken.Name,
		Symbol:       pair.BaseToken.Symbol,
		Address:      address,
		PriceUSD:     asFloat(pair.PriceUsd),
		Volume24h:    asFloat(pair.Volume.H24),
		LiquidityUSD: asFloat(pair.Liquidity.USD),
		BaseSupply:   asFloat(pair.Liquidity.Base),
		Change5m:     asFloat(pair.PriceChange.M5),
		Change1h:     asFloat(pair.PriceChange.H1),
		Change6h:     asFloat(pair.PriceChange.H6),
		Change24h:    asFloat(pair.PriceChange.H24),
		URL:          pair.URL,
		ImageURL:     pair.Info.ImageURL,
		Source:       SourceAggregator,
	}

	if ms := asFloat(pair.PairCreatedAt); ms != nil {
		t := time.UnixMilli(int64(*ms))
		rec.PairCreatedAt = &t
	}

	for _, s := range pair.Info.Socials {
		if s.Type == "" || s.URL == "" {
			continue
		}
		rec.Socials = append(rec.Socials, SocialLink{Platform: titleCase(s.Type), URL: s.URL})
	}

	d.logger.Debug("aggregator_pair_resolved", "address", address, "name", rec.Name)
	return rec, nil
}

// SearchFirstTokenAddress runs the free-text search and returns the base
// token address of the first result, or ErrNotFound on an empty result set.
func (d *DexScreenerClient) SearchFirstTokenAddress(ctx context.Context, query string) (string, error) {
	var payload struct {
		Pairs []pairPayload `json:"pairs"`
	}
	if err := d.getJSON(ctx, fmt.Sprintf("%s/search/?q=%s", d.baseURL, url.QueryEscape(query)), &payload); err != nil {
		return "", err
	}

	if len(payload.Pairs) == 0 {
		return "", fmt.Errorf("no search results for %q: %w", query, ErrNotFound)
	}

	return payload.Pairs[0].BaseToken.Address, nil
}

func (d *DexScreenerClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dexscreener request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dexscreener returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("dexscreener payload decode failed: %w", err)
	}
	return nil
}

// asFloat converts whatever numeric shape the provider sent into *float64,
// nil (the unknown marker) for anything absent or non-numeric. Never panics.
func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &f
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
