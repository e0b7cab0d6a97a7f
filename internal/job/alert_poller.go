// Package job holds the background loops driven off the main goroutine.
package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/alert"
)

const defaultAlertPollInterval = time.Minute

type AlertEvaluator interface {
	EvaluateAll(ctx context.Context) ([]alert.Trigger, error)
}

// AlertPoller runs the evaluator on a fixed interval until its context is
// cancelled.
type AlertPoller struct {
	tracer    trace.Tracer
	evaluator AlertEvaluator
	interval  time.Duration
}

func NewAlertPoller(tracer trace.Tracer, evaluator AlertEvaluator, interval time.Duration) *AlertPoller {
	if interval <= 0 {
		interval = defaultAlertPollInterval
	}
	return &AlertPoller{
		tracer:    tracer,
		evaluator: evaluator,
		interval:  interval,
	}
}

func (j *AlertPoller) Start(ctx context.Context) {
	if j == nil || j.evaluator == nil {
		<-ctx.Done()
		return
	}

	log.Println("Alert poller starting...")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Alert poller stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *AlertPoller) runOnce(ctx context.Context) {
	if j.tracer != nil {
		_, span := j.tracer.Start(ctx, "alert-poller.run")
		defer span.End()
	}
	triggers, err := j.evaluator.EvaluateAll(ctx)
	if err != nil {
		log.Printf("alert evaluation error: %v", err)
		return
	}
	if len(triggers) > 0 {
		log.Printf("alert evaluation fired %d alert(s)", len(triggers))
	}
}
