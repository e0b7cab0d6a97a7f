package domain

import "time"

// DataSource tags every fetched value so callers can tell authoritative data
// from degraded fallbacks.
type DataSource string

const (
	SourcePrimary   DataSource = "primary"
	SourceSecondary DataSource = "secondary"
	SourceCache     DataSource = "cache"
)

// PricePoint is one sample of a historical series. Timestamp is epoch millis.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

type Quote struct {
	CoinID       string     `json:"coin_id"`
	Symbol       string     `json:"symbol"`
	PriceUSD     float64    `json:"price_usd"`
	Change24hPct float64    `json:"change_24h_pct"`
	Volume24h    float64    `json:"volume_24h"`
	MarketCap    float64    `json:"market_cap"`
	Source       DataSource `json:"source"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

type MarketCoin struct {
	CoinID        string     `json:"coin_id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	PriceUSD      float64    `json:"price_usd"`
	MarketCap     float64    `json:"market_cap"`
	MarketCapRank int        `json:"market_cap_rank"`
	Change24hPct  float64    `json:"change_24h_pct"`
	Volume24h     float64    `json:"volume_24h"`
	Source        DataSource `json:"source"`
}

type CoinDetail struct {
	CoinID        string     `json:"coin_id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	PriceUSD      float64    `json:"price_usd"`
	MarketCap     float64    `json:"market_cap"`
	MarketCapRank int        `json:"market_cap_rank"`
	Volume24h     float64    `json:"volume_24h"`
	High24h       float64    `json:"high_24h"`
	Low24h        float64    `json:"low_24h"`
	Change24hPct  float64    `json:"change_24h_pct"`
	Source        DataSource `json:"source"`
}

type MarketChart struct {
	CoinID string       `json:"coin_id"`
	Days   int          `json:"days"`
	Points []PricePoint `json:"points"`
	Source DataSource   `json:"source"`
}

// Prices extracts the raw price values in series order.
func (c *MarketChart) Prices() []float64 {
	out := make([]float64, len(c.Points))
	for i := range c.Points {
		out[i] = c.Points[i].Price
	}
	return out
}

type OHLCBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

type OHLCSeries struct {
	CoinID string     `json:"coin_id"`
	Days   int        `json:"days"`
	Bars   []OHLCBar  `json:"bars"`
	Source DataSource `json:"source"`
}

type TrendingCoin struct {
	CoinID        string `json:"coin_id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
}

type GlobalStats struct {
	TotalMarketCapUSD float64 `json:"total_market_cap_usd"`
	TotalVolumeUSD    float64 `json:"total_volume_usd"`
	BTCDominancePct   float64 `json:"btc_dominance_pct"`
	ActiveCoins       int     `json:"active_coins"`
}

type SearchResult struct {
	CoinID        string `json:"coin_id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
}
