// Package alert batch-evaluates persisted alert rules against live market
// state. Alerts are grouped by coin so each evaluation run makes one set of
// data fetches per coin, shared by every alert on that coin.
package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/indicator"
	"github.com/wasiiff/blokk-lens/internal/signal"
)

const (
	// chartDays is the history window used for technical_signal alerts.
	chartDays = 90

	// signalConfidenceFloor gates buy/sell technical alerts: the shared
	// signal must match the condition and clear this confidence.
	signalConfidenceFloor = 60
)

// RSI bounds for the rsi_oversold / rsi_overbought conditions.
const (
	rsiOversold   = 30
	rsiOverbought = 70
)

// MarketData is the slice of the data service the evaluator needs.
type MarketData interface {
	GetPrice(ctx context.Context, coinID string) (*domain.Quote, error)
	GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error)
}

// Store provides the pending work list and the terminal state transition.
// MarkTriggered must be idempotent: marking an already-triggered alert is a
// no-op so a triggered alert never re-fires.
type Store interface {
	ListPending(ctx context.Context) ([]domain.Alert, error)
	MarkTriggered(ctx context.Context, alertID int64, triggeredAt time.Time, price float64) error
}

// Notifier receives the triggers produced by one evaluation run.
type Notifier interface {
	NotifyTriggers(ctx context.Context, triggers []Trigger)
}

// Trigger records one alert firing, for downstream notification.
type Trigger struct {
	Alert       domain.Alert
	Price       float64
	TriggeredAt time.Time
}

type Evaluator struct {
	tracer   trace.Tracer
	market   MarketData
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewEvaluator(tracer trace.Tracer, market MarketData, store Store, notifier Notifier) *Evaluator {
	return &Evaluator{
		tracer:   tracer,
		market:   market,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// EvaluateAll loads every active untriggered alert, evaluates them grouped by
// coin, and marks the ones that fired. Coin groups run concurrently; a data
// fetch failure for one coin skips that group and leaves the rest unaffected.
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]Trigger, error) {
	ctx, span := e.tracer.Start(ctx, "alert.evaluate-all")
	defer span.End()

	alerts, err := e.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	groups := make(map[string][]domain.Alert)
	for _, a := range alerts {
		groups[a.CoinID] = append(groups[a.CoinID], a)
	}

	var (
		mu       sync.Mutex
		triggers []Trigger
		wg       sync.WaitGroup
	)
	for coinID, group := range groups {
		wg.Add(1)
		go func(coinID string, group []domain.Alert) {
			defer wg.Done()
			fired := e.evaluateCoin(ctx, coinID, group)
			if len(fired) == 0 {
				return
			}
			mu.Lock()
			triggers = append(triggers, fired...)
			mu.Unlock()
		}(coinID, group)
	}
	wg.Wait()

	for _, tr := range triggers {
		if err := e.store.MarkTriggered(ctx, tr.Alert.ID, tr.TriggeredAt, tr.Price); err != nil {
			log.Printf("mark alert %d triggered: %v", tr.Alert.ID, err)
		}
	}
	if len(triggers) > 0 && e.notifier != nil {
		e.notifier.NotifyTriggers(ctx, triggers)
	}
	return triggers, nil
}

// evaluateCoin fetches market state for one coin and tests every alert in the
// group against it. The price fetch failing skips the whole group; the chart
// fetch failing skips only the technical alerts in it.
func (e *Evaluator) evaluateCoin(ctx context.Context, coinID string, group []domain.Alert) []Trigger {
	quote, err := e.market.GetPrice(ctx, coinID)
	if err != nil {
		log.Printf("alert evaluation skipping %s: %v", coinID, err)
		return nil
	}

	var sig *domain.Signal
	var ind *domain.TechnicalIndicators
	if hasTechnicalAlerts(group) {
		chart, err := e.market.GetMarketChart(ctx, coinID, chartDays)
		if err != nil {
			log.Printf("alert evaluation: no chart for %s, skipping technical alerts: %v", coinID, err)
		} else {
			computed := indicator.Analyze(chart.Prices())
			generated := signal.Generate(computed, quote.PriceUSD)
			ind = &computed
			sig = &generated
		}
	}

	now := e.now().UTC()
	var fired []Trigger
	for _, a := range group {
		if !e.shouldTrigger(a, quote, ind, sig) {
			continue
		}
		fired = append(fired, Trigger{Alert: a, Price: quote.PriceUSD, TriggeredAt: now})
	}
	return fired
}

func (e *Evaluator) shouldTrigger(a domain.Alert, quote *domain.Quote, ind *domain.TechnicalIndicators, sig *domain.Signal) bool {
	switch a.Kind {
	case domain.AlertPriceAbove:
		return quote.PriceUSD >= a.TargetValue
	case domain.AlertPriceBelow:
		return quote.PriceUSD <= a.TargetValue
	case domain.AlertPercentChange:
		return abs(quote.Change24hPct) >= abs(a.TargetValue)
	case domain.AlertTechnicalSignal:
		if ind == nil || sig == nil {
			return false
		}
		switch a.Condition {
		case domain.ConditionBuy:
			return sig.Action == domain.SignalBuy && sig.Confidence > signalConfidenceFloor
		case domain.ConditionSell:
			return sig.Action == domain.SignalSell && sig.Confidence > signalConfidenceFloor
		case domain.ConditionRSIOversold:
			return ind.RSI < rsiOversold
		case domain.ConditionRSIOverbought:
			return ind.RSI > rsiOverbought
		}
	}
	return false
}

func hasTechnicalAlerts(group []domain.Alert) bool {
	for _, a := range group {
		if a.Kind == domain.AlertTechnicalSignal {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
