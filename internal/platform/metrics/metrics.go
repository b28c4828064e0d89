package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the companion process.
type Metrics struct {
	DispatchAttempts  *prometheus.CounterVec
	DispatchRetries   prometheus.Counter
	DispatchOutcomes  *prometheus.CounterVec
	AuthorizeDecided  *prometheus.CounterVec
	ProposalsDecided  *prometheus.CounterVec
	MessagesRelayed   prometheus.Counter
	AuditRecorded     prometheus.Counter
	DispatchDurations prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DispatchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_dispatch_attempts_total",
			Help: "Outbound RPC attempts, including retries.",
		}, []string{"operation"}),
		DispatchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "companion_dispatch_retries_total",
			Help: "Outbound RPC attempts that were retried after a transport failure.",
		}),
		DispatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_dispatch_outcomes_total",
			Help: "Outbound RPC calls by final outcome.",
		}, []string{"operation", "outcome"}),
		AuthorizeDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_authorize_decisions_total",
			Help: "Trust gate decisions by result.",
		}, []string{"decision"}),
		ProposalsDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_proposals_total",
			Help: "Event proposals by resulting status.",
		}, []string{"status"}),
		MessagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "companion_messages_relayed_total",
			Help: "Messages relayed to this principal.",
		}),
		AuditRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "companion_audit_events_total",
			Help: "Audit events appended.",
		}),
		DispatchDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_dispatch_duration_seconds",
			Help:    "Outbound RPC call duration including retries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
