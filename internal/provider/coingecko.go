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
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

const (
	coinGeckoDefaultBaseURL = "https://api.coingecko.com/api/v3"
	coinGeckoMaxAttempts    = 2
	coinGeckoRetryDelay     = 500 * time.Millisecond
)

// coinGeckoSymbols maps canonical coin ids to their display symbols. The
// canonical namespace follows CoinGecko ids, so this doubles as the adapter's
// supported-coin table.
var coinGeckoSymbols = map[string]string{
	"bitcoin":       "BTC",
	"ethereum":      "ETH",
	"tether":        "USDT",
	"binancecoin":   "BNB",
	"solana":        "SOL",
	"ripple":        "XRP",
	"usd-coin":      "USDC",
	"cardano":       "ADA",
	"avalanche-2":   "AVAX",
	"dogecoin":      "DOGE",
	"polkadot":      "DOT",
	"chainlink":     "LINK",
	"matic-network": "MATIC",
	"litecoin":      "LTC",
	"uniswap":       "UNI",
}

// CoinGecko is the primary adapter. It carries a client-side rate limiter and
// a small bounded retry (2 attempts, doubled delay, never on 4xx).
type CoinGecko struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func NewCoinGecko(tracer trace.Tracer, baseURL, apiKey string) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoDefaultBaseURL
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
		// Free-tier CoinGecko allows roughly 30 calls/min.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
		tracer:  tracer,
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Supports(coinID string) bool {
	_, ok := coinGeckoSymbols[coinID]
	return ok
}

func (c *CoinGecko) symbolFor(coinID string) (string, error) {
	sym, ok := coinGeckoSymbols[coinID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCoin, coinID)
	}
	return sym, nil
}

func (c *CoinGecko) GetPrice(ctx context.Context, coinID string) (*domain.Quote, error) {
	quotes, err := c.GetPrices(ctx, []string{coinID})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[coinID]
	if !ok {
		return nil, fmt.Errorf("%w: no price data for %s", ErrMalformedResponse, coinID)
	}
	return q, nil
}

func (c *CoinGecko) GetPrices(ctx context.Context, coinIDs []string) (map[string]*domain.Quote, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-prices")
	defer span.End()

	supported := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		if c.Supports(id) {
			supported = append(supported, id)
		}
	}
	if len(supported) == 0 {
		return nil, fmt.Errorf("%w: none of %v", ErrUnsupportedCoin, coinIDs)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(supported, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")

	var body map[string]struct {
		USD          float64 `json:"usd"`
		USDMarketCap float64 `json:"usd_market_cap"`
		USD24hVol    float64 `json:"usd_24h_vol"`
		USD24hChange float64 `json:"usd_24h_change"`
	}
	if err := c.doGet(ctx, "/simple/price", q, &body); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make(map[string]*domain.Quote, len(body))
	for _, id := range supported {
		entry, ok := body[id]
		if !ok {
			continue
		}
		sym := coinGeckoSymbols[id]
		out[id] = &domain.Quote{
			CoinID:       id,
			Symbol:       sym,
			PriceUSD:     entry.USD,
			Change24hPct: entry.USD24hChange,
			Volume24h:    entry.USD24hVol,
			MarketCap:    entry.USDMarketCap,
			Source:       domain.SourcePrimary,
			FetchedAt:    now,
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty simple/price payload", ErrMalformedResponse)
	}
	return out, nil
}

func (c *CoinGecko) GetMarketCoins(ctx context.Context, page, pageSize int) ([]domain.MarketCoin, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-market-coins")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 50
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("per_page", fmt.Sprintf("%d", pageSize))
	q.Set("price_change_percentage", "24h")

	var body []struct {
		ID            string  `json:"id"`
		Symbol        string  `json:"symbol"`
		Name          string  `json:"name"`
		Image         string  `json:"image"`
		CurrentPrice  float64 `json:"current_price"`
		MarketCap     float64 `json:"market_cap"`
		MarketCapRank int     `json:"market_cap_rank"`
		TotalVolume   float64 `json:"total_volume"`
		Change24h     float64 `json:"price_change_percentage_24h"`
	}
	if err := c.doGet(ctx, "/coins/markets", q, &body); err != nil {
		return nil, err
	}

	coins := make([]domain.MarketCoin, 0, len(body))
	for _, m := range body {
		coins = append(coins, domain.MarketCoin{
			CoinID:        m.ID,
			Symbol:        strings.ToUpper(m.Symbol),
			Name:          m.Name,
			Image:         m.Image,
			PriceUSD:      m.CurrentPrice,
			MarketCap:     m.MarketCap,
			MarketCapRank: m.MarketCapRank,
			Change24hPct:  m.Change24h,
			Volume24h:     m.TotalVolume,
			Source:        domain.SourcePrimary,
		})
	}
	return coins, nil
}

func (c *CoinGecko) GetCoinDetails(ctx context.Context, coinID string) (*domain.CoinDetail, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-coin-details")
	defer span.End()

	sym, err := c.symbolFor(coinID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var body struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description struct {
			EN string `json:"en"`
		} `json:"description"`
		MarketCapRank int `json:"market_cap_rank"`
		MarketData    *struct {
			CurrentPrice map[string]float64 `json:"current_price"`
			MarketCap    map[string]float64 `json:"market_cap"`
			TotalVolume  map[string]float64 `json:"total_volume"`
			High24h      map[string]float64 `json:"high_24h"`
			Low24h       map[string]float64 `json:"low_24h"`
			Change24h    float64            `json:"price_change_percentage_24h"`
		} `json:"market_data"`
	}
	if err := c.doGet(ctx, "/coins/"+url.PathEscape(coinID), q, &body); err != nil {
		return nil, err
	}
	if body.MarketData == nil {
		return nil, fmt.Errorf("%w: missing market_data for %s", ErrMalformedResponse, coinID)
	}

	return &domain.CoinDetail{
		CoinID:        coinID,
		Symbol:        sym,
		Name:          body.Name,
		Description:   body.Description.EN,
		PriceUSD:      body.MarketData.CurrentPrice["usd"],
		MarketCap:     body.MarketData.MarketCap["usd"],
		MarketCapRank: body.MarketCapRank,
		Volume24h:     body.MarketData.TotalVolume["usd"],
		High24h:       body.MarketData.High24h["usd"],
		Low24h:        body.MarketData.Low24h["usd"],
		Change24hPct:  body.MarketData.Change24h,
		Source:        domain.SourcePrimary,
	}, nil
}

func (c *CoinGecko) GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-market-chart")
	defer span.End()

	if _, err := c.symbolFor(coinID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", fmt.Sprintf("%d", days))

	var body struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := c.doGet(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", q, &body); err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		if len(pair) < 2 {
			return nil, fmt.Errorf("%w: short price pair in market_chart", ErrMalformedResponse)
		}
		points = append(points, domain.PricePoint{
			Timestamp: int64(pair[0]),
			Price:     pair[1],
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })

	return &domain.MarketChart{
		CoinID: coinID,
		Days:   days,
		Points: points,
		Source: domain.SourcePrimary,
	}, nil
}

func (c *CoinGecko) GetOHLC(ctx context.Context, coinID string, days int) (*domain.OHLCSeries, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-ohlc")
	defer span.End()

	if _, err := c.symbolFor(coinID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", fmt.Sprintf("%d", days))

	var body [][5]float64
	if err := c.doGet(ctx, "/coins/"+url.PathEscape(coinID)+"/ohlc", q, &body); err != nil {
		return nil, err
	}

	bars := make([]domain.OHLCBar, 0, len(body))
	for _, row := range body {
		bars = append(bars, domain.OHLCBar{
			Timestamp: int64(row[0]),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		})
	}

	return &domain.OHLCSeries{
		CoinID: coinID,
		Days:   days,
		Bars:   bars,
		Source: domain.SourcePrimary,
	}, nil
}

func (c *CoinGecko) GetTrending(ctx context.Context) ([]domain.TrendingCoin, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-trending")
	defer span.End()

	var body struct {
		Coins []struct {
			Item struct {
				ID            string `json:"id"`
				Symbol        string `json:"symbol"`
				Name          string `json:"name"`
				MarketCapRank int    `json:"market_cap_rank"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := c.doGet(ctx, "/search/trending", nil, &body); err != nil {
		return nil, err
	}

	out := make([]domain.TrendingCoin, 0, len(body.Coins))
	for _, w := range body.Coins {
		out = append(out, domain.TrendingCoin{
			CoinID:        w.Item.ID,
			Symbol:        strings.ToUpper(w.Item.Symbol),
			Name:          w.Item.Name,
			MarketCapRank: w.Item.MarketCapRank,
		})
	}
	return out, nil
}

func (c *CoinGecko) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	_, span := c.tracer.Start(ctx, "coingecko.get-global-stats")
	defer span.End()

	var body struct {
		Data struct {
			TotalMarketCap      map[string]float64 `json:"total_market_cap"`
			TotalVolume         map[string]float64 `json:"total_volume"`
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
			ActiveCoins         int                `json:"active_cryptocurrencies"`
		} `json:"data"`
	}
	if err := c.doGet(ctx, "/global", nil, &body); err != nil {
		return nil, err
	}

	return &domain.GlobalStats{
		TotalMarketCapUSD: body.Data.TotalMarketCap["usd"],
		TotalVolumeUSD:    body.Data.TotalVolume["usd"],
		BTCDominancePct:   body.Data.MarketCapPercentage["btc"],
		ActiveCoins:       body.Data.ActiveCoins,
	}, nil
}

func (c *CoinGecko) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	_, span := c.tracer.Start(ctx, "coingecko.search")
	defer span.End()

	q := url.Values{}
	q.Set("query", query)

	var body struct {
		Coins []struct {
			ID            string `json:"id"`
			Symbol        string `json:"symbol"`
			Name          string `json:"name"`
			MarketCapRank int    `json:"market_cap_rank"`
		} `json:"coins"`
	}
	if err := c.doGet(ctx, "/search", q, &body); err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(body.Coins))
	for _, m := range body.Coins {
		out = append(out, domain.SearchResult{
			CoinID:        m.ID,
			Symbol:        strings.ToUpper(m.Symbol),
			Name:          m.Name,
			MarketCapRank: m.MarketCapRank,
		})
	}
	return out, nil
}

// doGet issues one rate-limited GET with bounded retry and normalizes every
// failure into the package error taxonomy. Client-error statuses are never
// retried.
func (c *CoinGecko) doGet(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	delay := coinGeckoRetryDelay
	for attempt := 0; attempt < coinGeckoMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		retryable, err := c.tryGet(ctx, u, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (c *CoinGecko) tryGet(ctx context.Context, u string, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return false, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wrapped := fmt.Errorf("%w: status %d from %s", ErrUnavailable, resp.StatusCode, c.Name())
		// Only server-side failures are worth a second attempt.
		return resp.StatusCode >= 500, wrapped
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return false, nil
}
