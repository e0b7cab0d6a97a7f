package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/alert"
)

func TestAlertPollerRunsImmediatelyAndStops(t *testing.T) {
	stub := &stubEvaluator{}
	poller := NewAlertPoller(trace.NewNoopTracerProvider().Tracer("test"), stub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}

	if atomic.LoadInt32(&stub.calls) != 1 {
		t.Fatalf("expected exactly one immediate run, got %d", atomic.LoadInt32(&stub.calls))
	}
}

func TestAlertPollerTicks(t *testing.T) {
	stub := &stubEvaluator{}
	poller := NewAlertPoller(trace.NewNoopTracerProvider().Tracer("test"), stub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&stub.calls) < 2 {
		t.Fatalf("expected repeated runs, got %d", atomic.LoadInt32(&stub.calls))
	}
}

func TestAlertPollerNilEvaluatorWaitsForCancel(t *testing.T) {
	poller := NewAlertPoller(nil, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

type stubEvaluator struct {
	calls int32
}

func (s *stubEvaluator) EvaluateAll(ctx context.Context) ([]alert.Trigger, error) {
	atomic.AddInt32(&s.calls, 1)
	return nil, nil
}
