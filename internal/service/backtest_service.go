package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/backtest"
	"github.com/wasiiff/blokk-lens/internal/domain"
)

const (
	minBacktestPoints    = 22
	maxBacktestDays      = 365
	defaultBacktestDay   = 90
	defaultMinConfidence = 50
)

// ErrNoStore reports persistence operations on a service running without a
// database. Runs still work; their results are just not stored.
var ErrNoStore = errors.New("backtest store not configured")

type BacktestMarketData interface {
	GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error)
}

// BacktestStore persists finished runs. Results are write-once.
type BacktestStore interface {
	Insert(ctx context.Context, res *domain.BacktestResult) (*domain.BacktestResult, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.BacktestResult, error)
	GetByID(ctx context.Context, userID string, id int64) (*domain.BacktestResult, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// TextGenerator produces the optional plain-language commentary.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type BacktestParams struct {
	CoinID         string
	Days           int
	InitialCapital float64
	MinConfidence  int
}

type BacktestService struct {
	tracer        trace.Tracer
	market        BacktestMarketData
	store         BacktestStore
	advisor       TextGenerator
	minConfidence int
}

// NewBacktestService accepts a nil advisor; commentary is then skipped.
func NewBacktestService(tracer trace.Tracer, market BacktestMarketData, store BacktestStore, advisor TextGenerator) *BacktestService {
	return &BacktestService{
		tracer:        tracer,
		market:        market,
		store:         store,
		advisor:       advisor,
		minConfidence: defaultMinConfidence,
	}
}

// SetDefaultMinConfidence overrides the threshold applied when a run does not
// specify one.
func (s *BacktestService) SetDefaultMinConfidence(v int) {
	if v > 0 && v <= 100 {
		s.minConfidence = v
	}
}

// Run fetches history, replays it through the engine, attaches commentary
// when an advisor is configured, and persists the result. Commentary failure
// is logged and ignored: the statistics are the product, the prose is not.
func (s *BacktestService) Run(ctx context.Context, userID string, params BacktestParams) (*domain.BacktestResult, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.run")
	defer span.End()

	if params.Days <= 0 {
		params.Days = defaultBacktestDay
	}
	if params.Days > maxBacktestDays {
		params.Days = maxBacktestDays
	}
	if params.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive")
	}
	if params.MinConfidence < 0 || params.MinConfidence > 100 {
		return nil, fmt.Errorf("min confidence must be in [0,100]")
	}
	if params.MinConfidence == 0 {
		params.MinConfidence = s.minConfidence
	}

	chart, err := s.market.GetMarketChart(ctx, params.CoinID, params.Days)
	if err != nil {
		return nil, fmt.Errorf("chart for %s: %w", params.CoinID, err)
	}
	if len(chart.Points) < minBacktestPoints {
		return nil, fmt.Errorf("not enough history for %s: %d points", params.CoinID, len(chart.Points))
	}

	res := backtest.Run(chart.Points, params.InitialCapital, params.MinConfidence)
	res.UserID = userID
	res.CoinID = params.CoinID
	res.Days = params.Days

	if s.advisor != nil {
		commentary, err := s.advisor.GenerateText(ctx, commentaryPrompt(res))
		if err != nil {
			log.Printf("backtest commentary for %s: %v", params.CoinID, err)
		} else {
			res.Commentary = commentary
		}
	}

	if s.store == nil {
		return res, nil
	}
	return s.store.Insert(ctx, res)
}

func (s *BacktestService) List(ctx context.Context, userID string, limit int) ([]domain.BacktestResult, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.list")
	defer span.End()
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListByUser(ctx, userID, limit)
}

func (s *BacktestService) Get(ctx context.Context, userID string, id int64) (*domain.BacktestResult, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.get")
	defer span.End()
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetByID(ctx, userID, id)
}

func (s *BacktestService) Delete(ctx context.Context, userID string, id int64) error {
	ctx, span := s.tracer.Start(ctx, "backtest-service.delete")
	defer span.End()
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.Delete(ctx, userID, id)
}

func commentaryPrompt(res *domain.BacktestResult) string {
	return fmt.Sprintf(
		"A %d-day backtest on %s with %.2f initial capital finished with %.2f "+
			"(%.2f%% return) across %d trades, %.1f%% win rate, %.2f%% max drawdown, "+
			"Sharpe %.2f. Summarize this performance.",
		res.Days, res.CoinID, res.InitialCapital, res.FinalCapital,
		res.TotalReturnPct, res.TotalTrades, res.WinRate, res.MaxDrawdownPct, res.Sharpe,
	)
}
