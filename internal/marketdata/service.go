// Package marketdata orchestrates the provider fallback chain. Every public
// operation walks the ordered adapter list under per-call timeouts, falls
// back to the shared cache inside the staleness window, and fails with
// ErrAllSourcesExhausted only when nothing usable remains.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/cache"
	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/provider"
)

// ErrAllSourcesExhausted is the one user-visible failure mode for data
// retrieval: primary, fallbacks and cache all came up empty.
var ErrAllSourcesExhausted = errors.New("all data sources exhausted")

const (
	defaultStaleness       = 5 * time.Minute
	defaultPrimaryTimeout  = 8 * time.Second
	defaultHeavyTimeout    = 10 * time.Second
	defaultFallbackTimeout = 5 * time.Second
)

// Timeouts bounds each provider call. Heavy applies to the primary on
// listing/detail/chart operations; Fallback to every non-primary adapter.
type Timeouts struct {
	Primary  time.Duration
	Heavy    time.Duration
	Fallback time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Primary <= 0 {
		t.Primary = defaultPrimaryTimeout
	}
	if t.Heavy <= 0 {
		t.Heavy = defaultHeavyTimeout
	}
	if t.Fallback <= 0 {
		t.Fallback = defaultFallbackTimeout
	}
	return t
}

// defaultTrending is returned when the primary cannot serve the trending
// list; there is no secondary equivalent for it.
var defaultTrending = []domain.TrendingCoin{
	{CoinID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", MarketCapRank: 1},
	{CoinID: "ethereum", Symbol: "ETH", Name: "Ethereum", MarketCapRank: 2},
	{CoinID: "solana", Symbol: "SOL", Name: "Solana", MarketCapRank: 5},
}

type Service struct {
	tracer    trace.Tracer
	providers []provider.DataProvider
	store     cache.Store
	staleness time.Duration
	timeouts  Timeouts
	now       func() time.Time
}

// NewService accepts any ordered list of adapters; index 0 is primary, the
// rest are fallbacks in order.
func NewService(
	tracer trace.Tracer,
	store cache.Store,
	providers []provider.DataProvider,
	staleness time.Duration,
	timeouts Timeouts,
) *Service {
	if staleness <= 0 {
		staleness = defaultStaleness
	}
	return &Service{
		tracer:    tracer,
		providers: providers,
		store:     store,
		staleness: staleness,
		timeouts:  timeouts.withDefaults(),
		now:       time.Now,
	}
}

func (s *Service) GetPrice(ctx context.Context, coinID string) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-price")
	defer span.End()

	key := "price:" + coinID
	for i, p := range s.providers {
		if !p.Supports(coinID) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, false))
		q, err := p.GetPrice(callCtx, coinID)
		cancel()
		if err != nil {
			log.Printf("price via %s failed for %s: %v", p.Name(), coinID, err)
			continue
		}
		q.Source = sourceForIndex(i)
		s.cachePut(ctx, key, q, q.Source)
		return q, nil
	}

	var q domain.Quote
	if s.cacheFresh(ctx, key, &q) {
		q.Source = domain.SourceCache
		return &q, nil
	}
	return nil, s.exhausted("price", coinID)
}

// GetPrices applies the fallback chain per item: coins resolved by an
// earlier adapter are removed from later adapters' work lists, and anything
// still unresolved is looked up in the cache individually. Unresolvable
// coins are excluded from the result set rather than failing the batch.
func (s *Service) GetPrices(ctx context.Context, coinIDs []string) (map[string]*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-prices")
	defer span.End()

	remaining := dedupe(coinIDs)
	result := make(map[string]*domain.Quote, len(remaining))

	for i, p := range s.providers {
		if len(remaining) == 0 {
			break
		}
		work := make([]string, 0, len(remaining))
		for _, id := range remaining {
			if p.Supports(id) {
				work = append(work, id)
			}
		}
		if len(work) == 0 {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, false))
		quotes, err := p.GetPrices(callCtx, work)
		cancel()
		if err != nil {
			log.Printf("batch prices via %s failed for %d coins: %v", p.Name(), len(work), err)
			continue
		}

		source := sourceForIndex(i)
		next := remaining[:0]
		for _, id := range remaining {
			q, ok := quotes[id]
			if !ok {
				next = append(next, id)
				continue
			}
			q.Source = source
			result[id] = q
			s.cachePut(ctx, "price:"+id, q, source)
		}
		remaining = next
	}

	for _, id := range remaining {
		var q domain.Quote
		if s.cacheFresh(ctx, "price:"+id, &q) {
			q.Source = domain.SourceCache
			result[id] = &q
		}
	}
	return result, nil
}

func (s *Service) GetMarketCoins(ctx context.Context, page, pageSize int) ([]domain.MarketCoin, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-market-coins")
	defer span.End()

	key := fmt.Sprintf("markets:%d:%d", page, pageSize)
	for i, p := range s.providers {
		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, true))
		coins, err := p.GetMarketCoins(callCtx, page, pageSize)
		cancel()
		if err != nil {
			log.Printf("market listing via %s failed: %v", p.Name(), err)
			continue
		}
		source := sourceForIndex(i)
		for j := range coins {
			coins[j].Source = source
		}
		s.cachePut(ctx, key, coins, source)
		return coins, nil
	}

	var coins []domain.MarketCoin
	if s.cacheFresh(ctx, key, &coins) {
		for j := range coins {
			coins[j].Source = domain.SourceCache
		}
		return coins, nil
	}
	return nil, s.exhausted("market listing", "")
}

func (s *Service) GetCoinDetails(ctx context.Context, coinID string) (*domain.CoinDetail, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-coin-details")
	defer span.End()

	key := "details:" + coinID
	for i, p := range s.providers {
		if !p.Supports(coinID) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, true))
		detail, err := p.GetCoinDetails(callCtx, coinID)
		cancel()
		if err != nil {
			log.Printf("coin details via %s failed for %s: %v", p.Name(), coinID, err)
			continue
		}
		detail.Source = sourceForIndex(i)
		s.cachePut(ctx, key, detail, detail.Source)
		return detail, nil
	}

	var detail domain.CoinDetail
	if s.cacheFresh(ctx, key, &detail) {
		detail.Source = domain.SourceCache
		return &detail, nil
	}
	return nil, s.exhausted("coin details", coinID)
}

func (s *Service) GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-market-chart")
	defer span.End()

	key := fmt.Sprintf("chart:%s:%d", coinID, days)
	for i, p := range s.providers {
		if !p.Supports(coinID) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, true))
		chart, err := p.GetMarketChart(callCtx, coinID, days)
		cancel()
		if err != nil {
			log.Printf("market chart via %s failed for %s: %v", p.Name(), coinID, err)
			continue
		}
		chart.Source = sourceForIndex(i)
		s.cachePut(ctx, key, chart, chart.Source)
		return chart, nil
	}

	var chart domain.MarketChart
	if s.cacheFresh(ctx, key, &chart) {
		chart.Source = domain.SourceCache
		return &chart, nil
	}
	return nil, s.exhausted("market chart", coinID)
}

func (s *Service) GetOHLC(ctx context.Context, coinID string, days int) (*domain.OHLCSeries, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-ohlc")
	defer span.End()

	key := fmt.Sprintf("ohlc:%s:%d", coinID, days)
	for i, p := range s.providers {
		op, ok := p.(provider.OHLCProvider)
		if !ok || !p.Supports(coinID) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(i, true))
		series, err := op.GetOHLC(callCtx, coinID, days)
		cancel()
		if err != nil {
			log.Printf("ohlc via %s failed for %s: %v", p.Name(), coinID, err)
			continue
		}
		series.Source = sourceForIndex(i)
		s.cachePut(ctx, key, series, series.Source)
		return series, nil
	}

	var series domain.OHLCSeries
	if s.cacheFresh(ctx, key, &series) {
		series.Source = domain.SourceCache
		return &series, nil
	}
	return nil, s.exhausted("ohlc", coinID)
}

// GetTrending has no secondary equivalent: primary, then fresh cache, then a
// small hardcoded default set.
func (s *Service) GetTrending(ctx context.Context) ([]domain.TrendingCoin, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-trending")
	defer span.End()

	const key = "trending"
	if tp, ok := s.primary().(provider.TrendingProvider); ok {
		callCtx, cancel := context.WithTimeout(ctx, s.timeouts.Primary)
		trending, err := tp.GetTrending(callCtx)
		cancel()
		if err == nil {
			s.cachePut(ctx, key, trending, domain.SourcePrimary)
			return trending, nil
		}
		log.Printf("trending via primary failed: %v", err)
	}

	var trending []domain.TrendingCoin
	if s.cacheFresh(ctx, key, &trending) {
		return trending, nil
	}
	return defaultTrending, nil
}

// GetGlobalStats is primary-only; failures propagate.
func (s *Service) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.get-global-stats")
	defer span.End()

	gp, ok := s.primary().(provider.GlobalProvider)
	if !ok {
		return nil, s.exhausted("global stats", "")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeouts.Primary)
	defer cancel()
	return gp.GetGlobalStats(callCtx)
}

// Search is primary-only; failures propagate.
func (s *Service) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "marketdata.search")
	defer span.End()

	sp, ok := s.primary().(provider.SearchProvider)
	if !ok {
		return nil, s.exhausted("search", "")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeouts.Primary)
	defer cancel()
	return sp.Search(callCtx, query)
}

func (s *Service) primary() provider.DataProvider {
	if len(s.providers) == 0 {
		return nil
	}
	return s.providers[0]
}

func (s *Service) timeoutFor(index int, heavy bool) time.Duration {
	if index > 0 {
		return s.timeouts.Fallback
	}
	if heavy {
		return s.timeouts.Heavy
	}
	return s.timeouts.Primary
}

func sourceForIndex(index int) domain.DataSource {
	if index == 0 {
		return domain.SourcePrimary
	}
	return domain.SourceSecondary
}

func (s *Service) exhausted(op, coinID string) error {
	if coinID == "" {
		return fmt.Errorf("%w: %s", ErrAllSourcesExhausted, op)
	}
	return fmt.Errorf("%w: %s for %s", ErrAllSourcesExhausted, op, coinID)
}

func (s *Service) cachePut(ctx context.Context, key string, v any, source domain.DataSource) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache encode for %s: %v", key, err)
		return
	}
	entry := cache.Entry{Value: raw, Source: source, StoredAt: s.now().UTC()}
	if err := s.store.Set(ctx, key, entry); err != nil {
		log.Printf("cache write for %s: %v", key, err)
	}
}

// cacheFresh decodes the entry into out only when it exists and its age is
// inside the staleness window.
func (s *Service) cacheFresh(ctx context.Context, key string, out any) bool {
	if s.store == nil {
		return false
	}
	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Printf("cache read for %s: %v", key, err)
		return false
	}
	if !ok || entry.Age(s.now().UTC()) > s.staleness {
		return false
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		log.Printf("cache decode for %s: %v", key, err)
		return false
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
