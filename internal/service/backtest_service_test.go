package service

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

type stubBacktestMarket struct {
	chart      *domain.MarketChart
	err        error
	chartCalls int
	lastDays   int
}

func (m *stubBacktestMarket) GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error) {
	m.chartCalls++
	m.lastDays = days
	if m.err != nil {
		return nil, m.err
	}
	return m.chart, nil
}

type stubBacktestStore struct {
	inserted *domain.BacktestResult
}

func (s *stubBacktestStore) Insert(ctx context.Context, res *domain.BacktestResult) (*domain.BacktestResult, error) {
	s.inserted = res
	out := *res
	out.ID = 1
	return &out, nil
}

func (s *stubBacktestStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.BacktestResult, error) {
	return nil, nil
}

func (s *stubBacktestStore) GetByID(ctx context.Context, userID string, id int64) (*domain.BacktestResult, error) {
	return nil, nil
}

func (s *stubBacktestStore) Delete(ctx context.Context, userID string, id int64) error {
	return nil
}

type stubAdvisor struct {
	text  string
	err   error
	calls int
}

func (a *stubAdvisor) GenerateText(ctx context.Context, prompt string) (string, error) {
	a.calls++
	return a.text, a.err
}

func risingChart(n int) *domain.MarketChart {
	points := make([]domain.PricePoint, n)
	for i := range points {
		points[i] = domain.PricePoint{Timestamp: int64(i) * 86_400_000, Price: 100 + float64(i)*2}
	}
	return &domain.MarketChart{CoinID: "bitcoin", Points: points, Source: domain.SourcePrimary}
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestBacktestServiceRunPersistsResult(t *testing.T) {
	market := &stubBacktestMarket{chart: risingChart(60)}
	store := &stubBacktestStore{}
	advisor := &stubAdvisor{text: "strong run"}
	svc := NewBacktestService(testTracer(), market, store, advisor)

	res, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		Days:           90,
		InitialCapital: 10000,
		MinConfidence:  50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != 1 {
		t.Fatalf("expected persisted id, got %+v", res)
	}
	if store.inserted == nil || store.inserted.UserID != "user-1" || store.inserted.CoinID != "bitcoin" {
		t.Fatalf("result not attributed before insert: %+v", store.inserted)
	}
	if store.inserted.Commentary != "strong run" {
		t.Fatalf("commentary not attached: %q", store.inserted.Commentary)
	}
	if advisor.calls != 1 {
		t.Fatalf("expected one advisor call, got %d", advisor.calls)
	}
}

func TestBacktestServiceRunCommentaryFailureIsNonFatal(t *testing.T) {
	market := &stubBacktestMarket{chart: risingChart(60)}
	store := &stubBacktestStore{}
	advisor := &stubAdvisor{err: errors.New("rate limited")}
	svc := NewBacktestService(testTracer(), market, store, advisor)

	res, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		InitialCapital: 10000,
		MinConfidence:  50,
	})
	if err != nil {
		t.Fatalf("commentary failure must not fail the run: %v", err)
	}
	if res.Commentary != "" {
		t.Fatalf("expected empty commentary, got %q", res.Commentary)
	}
}

func TestBacktestServiceRunNilAdvisorSkipsCommentary(t *testing.T) {
	market := &stubBacktestMarket{chart: risingChart(60)}
	svc := NewBacktestService(testTracer(), market, &stubBacktestStore{}, nil)

	res, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		InitialCapital: 10000,
		MinConfidence:  50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Commentary != "" {
		t.Fatalf("expected no commentary, got %q", res.Commentary)
	}
}

func TestBacktestServiceRunValidatesParams(t *testing.T) {
	svc := NewBacktestService(testTracer(), &stubBacktestMarket{chart: risingChart(60)}, &stubBacktestStore{}, nil)

	if _, err := svc.Run(context.Background(), "user-1", BacktestParams{CoinID: "bitcoin", InitialCapital: 0}); err == nil {
		t.Fatal("expected error for non-positive capital")
	}
	if _, err := svc.Run(context.Background(), "user-1", BacktestParams{CoinID: "bitcoin", InitialCapital: 100, MinConfidence: 150}); err == nil {
		t.Fatal("expected error for out-of-range confidence")
	}
}

func TestBacktestServiceRunAppliesDefaultMinConfidence(t *testing.T) {
	svc := NewBacktestService(testTracer(), &stubBacktestMarket{chart: risingChart(60)}, &stubBacktestStore{}, nil)
	svc.SetDefaultMinConfidence(65)

	res, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MinConfidence != 65 {
		t.Fatalf("expected default confidence 65, got %d", res.MinConfidence)
	}
}

func TestBacktestServiceRunClampsDays(t *testing.T) {
	market := &stubBacktestMarket{chart: risingChart(60)}
	svc := NewBacktestService(testTracer(), market, &stubBacktestStore{}, nil)

	if _, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		Days:           9999,
		InitialCapital: 10000,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.lastDays != maxBacktestDays {
		t.Fatalf("expected days clamped to %d, got %d", maxBacktestDays, market.lastDays)
	}
}

func TestBacktestServiceRunRejectsShortHistory(t *testing.T) {
	market := &stubBacktestMarket{chart: risingChart(10)}
	svc := NewBacktestService(testTracer(), market, &stubBacktestStore{}, nil)

	if _, err := svc.Run(context.Background(), "user-1", BacktestParams{
		CoinID:         "bitcoin",
		InitialCapital: 10000,
	}); err == nil {
		t.Fatal("expected error for short history")
	}
}

func TestBacktestServiceNilStoreListFails(t *testing.T) {
	svc := NewBacktestService(testTracer(), &stubBacktestMarket{chart: risingChart(60)}, nil, nil)

	if _, err := svc.List(context.Background(), "user-1", 20); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-1", 1); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if err := svc.Delete(context.Background(), "user-1", 1); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}
