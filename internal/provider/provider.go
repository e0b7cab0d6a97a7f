// Package provider wraps external market-data sources behind a uniform
// contract. Each adapter owns its own identifier mapping and response-shape
// normalization; failures surface as the typed errors below instead of
// provider-specific ones.
package provider

import (
	"context"
	"errors"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

var (
	ErrTimeout           = errors.New("provider timeout")
	ErrUnavailable       = errors.New("provider unavailable")
	ErrUnsupportedCoin   = errors.New("unsupported coin")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// DataProvider is the uniform adapter contract. A coin missing from an
// adapter's mapping table is a normal ErrUnsupportedCoin outcome, not a
// provider failure.
type DataProvider interface {
	Name() string
	Supports(coinID string) bool
	GetPrice(ctx context.Context, coinID string) (*domain.Quote, error)
	GetPrices(ctx context.Context, coinIDs []string) (map[string]*domain.Quote, error)
	GetMarketCoins(ctx context.Context, page, pageSize int) ([]domain.MarketCoin, error)
	GetCoinDetails(ctx context.Context, coinID string) (*domain.CoinDetail, error)
	GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error)
}

// Optional capabilities. The data service probes for these with type
// assertions instead of widening the core contract.

type OHLCProvider interface {
	GetOHLC(ctx context.Context, coinID string, days int) (*domain.OHLCSeries, error)
}

type TrendingProvider interface {
	GetTrending(ctx context.Context) ([]domain.TrendingCoin, error)
}

type GlobalProvider interface {
	GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type SearchProvider interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}
