package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "near_auth_audit_events_dropped_total",
	Help: "Audit events dropped because the inbox was full",
})

// Publisher accepts events from request handling and hands them to the
// worker. Emit never blocks: when the inbox is full the event is dropped and
// counted, because auditing must not stall verification.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher builds a publisher with the given inbox capacity.
func NewPublisher(capacity int, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: make(chan Event, capacity), logger: logger}
}

// Emit records an event. A nil publisher is a disabled audit trail; calls on
// it are no-ops so wiring stays unconditional.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		dropped.Inc()
		p.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"account_id", event.AccountID, "outcome", event.Outcome)
	}
}

// Inbox exposes the event channel for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Worker consumes events and persists them. Persistence failures are logged
// and skipped; the trail never fails a verification.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker constructs a worker draining inbox into store.
func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"account_id", event.AccountID, "error", err)
			}
		}
	}
}
