package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const cmcBaseURL = "https://pro-api.coinmarketcap.com"

// CMCClient is the symbol-keyed reference provider. Both endpoints key their
// response data by the uppercased symbol, so every lookup normalizes first.
type CMCClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewCMCClient(apiKey string, logger *slog.Logger) *CMCClient {
	return NewCMCClientWithBaseURL(apiKey, logger, cmcBaseURL)
}

func NewCMCClientWithBaseURL(apiKey string, logger *slog.Logger, baseURL string) *CMCClient {
	return &CMCClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type cmcInfoPayload struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Logo   string `json:"logo"`
	URLs   struct {
		Website []string `json:"website"`
		Twitter []string `json:"twitter"`
		Chat    []string `json:"chat"`
	} `json:"urls"`
}

type cmcQuotePayload struct {
	CmcRank           *int     `json:"cmc_rank"`
	TotalSupply       *float64 `json:"total_supply"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	Quote             struct {
		USD struct {
			Price            *float64 `json:"price"`
			Volume24h        *float64 `json:"volume_24h"`
			PercentChange1h  *float64 `json:"percent_change_1h"`
			PercentChange24h *float64 `json:"percent_change_24h"`
			PercentChange7d  *float64 `json:"percent_change_7d"`
		} `json:"USD"`
	} `json:"quote"`
}

// TokenBySymbol builds a record from the metadata endpoint, then merges the
// latest quote on top. A quote failure degrades to the metadata-only record
// rather than failing the whole lookup.
func (c *CMCClient) TokenBySymbol(ctx context.Context, symbol string) (*TokenRecord, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if key == "" {
		return nil, fmt.Errorf("empty symbol: %w", ErrNotFound)
	}

	info, err := c.fetchInfo(ctx, key)
	if err != nil {
		return nil, err
	}

	rec := &TokenRecord{
		Name:     info.Name,
		Symbol:   info.Symbol,
		ImageURL: info.Logo,
		Source:   SourceReference,
	}
	if len(info.URLs.Website) > 0 {
		rec.URL = info.URLs.Website[0]
	}
	for _, u := range info.URLs.Website {
		rec.Socials = append(rec.Socials, SocialLink{Platform: "Website", URL: u})
	}
	for _, u := range info.URLs.Twitter {
		rec.Socials = append(rec.Socials, SocialLink{Platform: "Twitter", URL: u})
	}
	for _, u := range info.URLs.Chat {
		rec.Socials = append(rec.Socials, SocialLink{Platform: "Chat", URL: u})
	}

	quote, err := c.fetchQuote(ctx, key)
	if err != nil {
		c.logger.Warn("reference_quote_failed", "symbol", key, "error", err)
		return rec, nil
	}

	rec.PriceUSD = quote.Quote.USD.Price
	rec.Volume24h = quote.Quote.USD.Volume24h
	rec.Change1h = quote.Quote.USD.PercentChange1h
	rec.Change24h = quote.Quote.USD.PercentChange24h
	rec.Change7d = quote.Quote.USD.PercentChange7d
	rec.MarketCapRank = quote.CmcRank
	rec.TotalSupply = quote.TotalSupply
	rec.CirculatingSupply = quote.CirculatingSupply

	return rec, nil
}

func (c *CMCClient) fetchInfo(ctx context.Context, key string) (*cmcInfoPayload, error) {
	raw, err := c.getData(ctx, "/v1/cryptocurrency/info", key)
	if err != nil {
		return nil, err
	}

	var info cmcInfoPayload
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("reference info decode failed: %w", err)
	}
	return &info, nil
}

func (c *CMCClient) fetchQuote(ctx context.Context, key string) (*cmcQuotePayload, error) {
	raw, err := c.getData(ctx, "/v1/cryptocurrency/quotes/latest", key)
	if err != nil {
		return nil, err
	}

	var quote cmcQuotePayload
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("reference quote decode failed: %w", err)
	}
	return &quote, nil
}

// getData performs a symbol-keyed request and extracts data[KEY]. A missing
// key, a null value, or an empty object all mean the provider does not list
// the symbol; the empty cases must fail too or the symbol chain would stop
// here with a blank record instead of falling back to the aggregator.
func (c *CMCClient) getData(ctx context.Context, path, key string) (json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s%s?symbol=%s", c.baseURL, path, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("coinmarketcap payload decode failed: %w", err)
	}

	raw, ok := payload.Data[key]
	if !ok || emptyDataObject(raw) {
		return nil, fmt.Errorf("symbol %s not listed: %w", key, ErrNotFound)
	}
	return raw, nil
}

// emptyDataObject reports whether the per-symbol payload carries no fields
// at all (absent, JSON null, or {}).
func emptyDataObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not an object; let the caller's decode report it.
		return false
	}
	return len(fields) == 0
}
