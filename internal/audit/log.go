// Package audit records every dispatched cross-party call, redacted, for
// the network activity monitor. The log is append-only; read access is
// capped so the feed payload stays bounded.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	"github.com/justQrius/companion-network-sub000/internal/platform/metrics"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// listCap bounds the activity feed payload.
const listCap = 100

// redactedKeys are identity-bearing parameter keys that must never be
// stored.
var redactedKeys = map[string]struct{}{
	"requester": {},
	"sender":    {},
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	List(ctx context.Context) ([]domain.AuditEvent, error)
}

// Sink receives a copy of every appended event. Sink failures never fail
// the append.
type Sink interface {
	Emit(event domain.AuditEvent)
}

// Feed is the read-side payload: most recent events plus how many older
// ones were cut to stay under the cap.
type Feed struct {
	Events []domain.AuditEvent `json:"events"`
	Elided int                 `json:"elided"`
}

// Log is the audit entry point.
type Log struct {
	store   Store
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSink mirrors every append to the given sink.
func WithSink(sink Sink) Option {
	return func(l *Log) { l.sink = sink }
}

// WithLogger sets the logger used for per-event lines.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New constructs an audit log over the given store.
func New(store Store, m *metrics.Metrics, opts ...Option) *Log {
	l := &Log{
		store:   store,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one event. Identity-bearing keys are stripped from params
// before storage; status derives from whether the outcome carries an
// "error" marker. Callers of the dispatcher record both successes and
// failures here.
func (l *Log) Record(ctx context.Context, sender, receiver, operation string, params, outcome map[string]any) error {
	redacted := make(map[string]any, len(params))
	for k, v := range params {
		if _, drop := redactedKeys[k]; drop {
			continue
		}
		redacted[k] = v
	}

	status := domain.AuditSuccess
	if _, failed := outcome["error"]; failed {
		status = domain.AuditFailed
	}

	event := domain.AuditEvent{
		ID:             uuid.NewString(),
		Timestamp:      l.now(),
		Sender:         sender,
		Receiver:       receiver,
		Operation:      operation,
		RedactedParams: redacted,
		Status:         status,
	}

	if err := l.store.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "append audit event")
	}
	if l.sink != nil {
		l.sink.Emit(event)
	}
	if l.metrics != nil {
		l.metrics.AuditRecorded.Inc()
	}
	if l.logger != nil {
		l.logger.Info("a2a call recorded",
			"sender", sender,
			"receiver", receiver,
			"operation", operation,
			"status", string(status),
		)
	}
	return nil
}

// List returns events at or after since (zero time means everything),
// ordered by timestamp, keeping only the most recent listCap and reporting
// how many older ones were elided.
func (l *Log) List(ctx context.Context, since time.Time) (Feed, error) {
	all, err := l.store.List(ctx)
	if err != nil {
		return Feed{}, dErrors.Wrap(err, dErrors.CodeStorage, "list audit events")
	}

	filtered := all[:0:0]
	for _, e := range all {
		if since.IsZero() || !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	elided := 0
	if len(filtered) > listCap {
		elided = len(filtered) - listCap
		filtered = filtered[elided:]
	}
	return Feed{Events: filtered, Elided: elided}, nil
}
