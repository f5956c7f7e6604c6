package market

import "time"

// Source tells which upstream resolved a record; reference-provider records
// carry extra fields (rank, supplies) the aggregator does not know.
type Source string

const (
	SourceAggregator Source = "dexscreener"
	SourceReference  Source = "coinmarketcap"
)

// SocialLink is one platform → URL entry, in provider order.
type SocialLink struct {
	Platform string
	URL      string
}

// TokenRecord is the normalized market snapshot built fresh per lookup and
// discarded after formatting. Every numeric field is a pointer: nil is the
// "unknown" marker for anything the provider omitted or returned in a
// non-numeric shape.
type TokenRecord struct {
	Name    string
	Symbol  string
	Address string // empty when resolved by symbol only

	PriceUSD     *float64
	Volume24h    *float64
	LiquidityUSD *float64
	BaseSupply   *float64 // pooled base-token amount reported by the aggregator

	Change5m  *float64
	Change1h  *float64
	Change6h  *float64
	Change24h *float64
	Change7d  *float64 // reference provider only

	PairCreatedAt *time.Time // aggregator only, converted from unix ms

	Socials  []SocialLink
	URL      string
	ImageURL string

	// reference-provider extras
	MarketCapRank     *int
	TotalSupply       *float64
	CirculatingSupply *float64

	Source Source
}
