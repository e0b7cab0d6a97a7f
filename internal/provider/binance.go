package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

const binanceDefaultBaseURL = "https://api.binance.com"

// binancePairs maps canonical coin ids to Binance USDT trading pairs. Coins
// without a liquid USDT pair (stablecoins against themselves) are simply not
// listed here and come back as unsupported.
var binancePairs = map[string]string{
	"bitcoin":       "BTCUSDT",
	"ethereum":      "ETHUSDT",
	"binancecoin":   "BNBUSDT",
	"solana":        "SOLUSDT",
	"ripple":        "XRPUSDT",
	"cardano":       "ADAUSDT",
	"avalanche-2":   "AVAXUSDT",
	"dogecoin":      "DOGEUSDT",
	"polkadot":      "DOTUSDT",
	"chainlink":     "LINKUSDT",
	"matic-network": "MATICUSDT",
	"litecoin":      "LTCUSDT",
	"uniswap":       "UNIUSDT",
}

// Binance is the secondary adapter. It cannot supply market capitalization
// or descriptive metadata; those fields stay at their zero sentinels and
// callers must not treat them as authoritative.
type Binance struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func NewBinance(tracer trace.Tracer, baseURL string) *Binance {
	if baseURL == "" {
		baseURL = binanceDefaultBaseURL
	}
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tracer:  tracer,
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Supports(coinID string) bool {
	_, ok := binancePairs[coinID]
	return ok
}

func (b *Binance) pairFor(coinID string) (string, error) {
	pair, ok := binancePairs[coinID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCoin, coinID)
	}
	return pair, nil
}

// symbolFromPair strips the quote suffix: BTCUSDT -> BTC.
func symbolFromPair(pair string) string {
	return strings.TrimSuffix(pair, "USDT")
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

func (t binanceTicker) quote(coinID string) (*domain.Quote, error) {
	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad lastPrice %q", ErrMalformedResponse, t.LastPrice)
	}
	change, err := strconv.ParseFloat(t.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad priceChangePercent %q", ErrMalformedResponse, t.PriceChangePercent)
	}
	volume, _ := strconv.ParseFloat(t.QuoteVolume, 64)

	return &domain.Quote{
		CoinID:       coinID,
		Symbol:       symbolFromPair(t.Symbol),
		PriceUSD:     price,
		Change24hPct: change,
		Volume24h:    volume,
		MarketCap:    0, // not available from this source
		Source:       domain.SourceSecondary,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

func (b *Binance) GetPrice(ctx context.Context, coinID string) (*domain.Quote, error) {
	_, span := b.tracer.Start(ctx, "binance.get-price")
	defer span.End()

	pair, err := b.pairFor(coinID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", pair)

	var t binanceTicker
	if err := b.doGet(ctx, "/api/v3/ticker/24hr", q, &t); err != nil {
		return nil, err
	}
	return t.quote(coinID)
}

func (b *Binance) GetPrices(ctx context.Context, coinIDs []string) (map[string]*domain.Quote, error) {
	_, span := b.tracer.Start(ctx, "binance.get-prices")
	defer span.End()

	pairs := make([]string, 0, len(coinIDs))
	pairToID := make(map[string]string, len(coinIDs))
	for _, id := range coinIDs {
		pair, ok := binancePairs[id]
		if !ok {
			continue
		}
		pairs = append(pairs, `"`+pair+`"`)
		pairToID[pair] = id
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: none of %v", ErrUnsupportedCoin, coinIDs)
	}

	q := url.Values{}
	q.Set("symbols", "["+strings.Join(pairs, ",")+"]")

	var tickers []binanceTicker
	if err := b.doGet(ctx, "/api/v3/ticker/24hr", q, &tickers); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Quote, len(tickers))
	for _, t := range tickers {
		id, ok := pairToID[t.Symbol]
		if !ok {
			continue
		}
		quote, err := t.quote(id)
		if err != nil {
			return nil, err
		}
		out[id] = quote
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty ticker payload", ErrMalformedResponse)
	}
	return out, nil
}

// GetMarketCoins pages over the adapter's own mapping table in sorted order;
// Binance has no market-cap ranking so entries carry zero-sentinel caps and
// ranks.
func (b *Binance) GetMarketCoins(ctx context.Context, page, pageSize int) ([]domain.MarketCoin, error) {
	_, span := b.tracer.Start(ctx, "binance.get-market-coins")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	ids := make([]string, 0, len(binancePairs))
	for id := range binancePairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := (page - 1) * pageSize
	if start >= len(ids) {
		return []domain.MarketCoin{}, nil
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	pageIDs := ids[start:end]

	quotes, err := b.GetPrices(ctx, pageIDs)
	if err != nil {
		return nil, err
	}

	coins := make([]domain.MarketCoin, 0, len(pageIDs))
	for _, id := range pageIDs {
		quote, ok := quotes[id]
		if !ok {
			continue
		}
		coins = append(coins, domain.MarketCoin{
			CoinID:       id,
			Symbol:       quote.Symbol,
			Name:         quote.Symbol,
			PriceUSD:     quote.PriceUSD,
			Change24hPct: quote.Change24hPct,
			Volume24h:    quote.Volume24h,
			Source:       domain.SourceSecondary,
		})
	}
	return coins, nil
}

func (b *Binance) GetCoinDetails(ctx context.Context, coinID string) (*domain.CoinDetail, error) {
	_, span := b.tracer.Start(ctx, "binance.get-coin-details")
	defer span.End()

	pair, err := b.pairFor(coinID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", pair)

	var t binanceTicker
	if err := b.doGet(ctx, "/api/v3/ticker/24hr", q, &t); err != nil {
		return nil, err
	}
	quote, err := t.quote(coinID)
	if err != nil {
		return nil, err
	}
	high, _ := strconv.ParseFloat(t.HighPrice, 64)
	low, _ := strconv.ParseFloat(t.LowPrice, 64)

	return &domain.CoinDetail{
		CoinID:       coinID,
		Symbol:       quote.Symbol,
		Name:         quote.Symbol,
		PriceUSD:     quote.PriceUSD,
		Volume24h:    quote.Volume24h,
		High24h:      high,
		Low24h:       low,
		Change24hPct: quote.Change24hPct,
		Source:       domain.SourceSecondary,
	}, nil
}

func (b *Binance) GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error) {
	_, span := b.tracer.Start(ctx, "binance.get-market-chart")
	defer span.End()

	bars, err := b.klines(ctx, coinID, days)
	if err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, domain.PricePoint{Timestamp: bar.Timestamp, Price: bar.Close})
	}

	return &domain.MarketChart{
		CoinID: coinID,
		Days:   days,
		Points: points,
		Source: domain.SourceSecondary,
	}, nil
}

func (b *Binance) GetOHLC(ctx context.Context, coinID string, days int) (*domain.OHLCSeries, error) {
	_, span := b.tracer.Start(ctx, "binance.get-ohlc")
	defer span.End()

	bars, err := b.klines(ctx, coinID, days)
	if err != nil {
		return nil, err
	}
	return &domain.OHLCSeries{
		CoinID: coinID,
		Days:   days,
		Bars:   bars,
		Source: domain.SourceSecondary,
	}, nil
}

func (b *Binance) klines(ctx context.Context, coinID string, days int) ([]domain.OHLCBar, error) {
	pair, err := b.pairFor(coinID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	interval := "1d"
	limit := days
	if days <= 1 {
		interval = "1h"
		limit = 24
	}
	if limit > 1000 {
		limit = 1000
	}

	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	// Kline rows are heterogenous arrays: open time, then OHLCV as strings.
	var rows [][]json.RawMessage
	if err := b.doGet(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}

	bars := make([]domain.OHLCBar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: short kline row", ErrMalformedResponse)
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("%w: kline open time: %v", ErrMalformedResponse, err)
		}
		vals := make([]float64, 4)
		for i := 1; i <= 4; i++ {
			var s string
			if err := json.Unmarshal(row[i], &s); err != nil {
				return nil, fmt.Errorf("%w: kline field %d: %v", ErrMalformedResponse, i, err)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: kline field %d: %v", ErrMalformedResponse, i, err)
			}
			vals[i-1] = f
		}
		bars = append(bars, domain.OHLCBar{
			Timestamp: openTime,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	return bars, nil
}

func (b *Binance) doGet(ctx context.Context, path string, query url.Values, out any) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d from %s", ErrUnavailable, resp.StatusCode, b.Name())
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
