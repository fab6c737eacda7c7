package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the ledger core.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	journalsPosted    *prometheus.CounterVec
	journalsCancelled prometheus.Counter
	lotsConsumed      prometheus.Counter
	conflictRetries   prometheus.Counter
	auditFailures     prometheus.Counter
}

// NewMetrics initialises the registry and the core counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_journals_posted_total",
		Help: "Journal entries posted, by source.",
	}, []string{"source"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_journals_cancelled_total",
		Help: "Draft journal entries cancelled.",
	})
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_lot_consumptions_total",
		Help: "FIFO lot consumptions performed.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_conflict_retries_total",
		Help: "Optimistic concurrency retries on accounts and lots.",
	})
	auditFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_audit_write_failures_total",
		Help: "Audit records that could not be written (degraded audit).",
	})
	registry.MustRegister(posted, cancelled, consumed, retries, auditFail)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		journalsPosted:    posted,
		journalsCancelled: cancelled,
		lotsConsumed:      consumed,
		conflictRetries:   retries,
		auditFailures:     auditFail,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// JournalPosted records a posted entry tagged by its business source.
func (m *Metrics) JournalPosted(source string) {
	if m != nil {
		m.journalsPosted.WithLabelValues(source).Inc()
	}
}

// JournalCancelled records a cancelled draft.
func (m *Metrics) JournalCancelled() {
	if m != nil {
		m.journalsCancelled.Inc()
	}
}

// LotConsumed records one FIFO consumption.
func (m *Metrics) LotConsumed() {
	if m != nil {
		m.lotsConsumed.Inc()
	}
}

// ConflictRetry records one optimistic-concurrency retry.
func (m *Metrics) ConflictRetry() {
	if m != nil {
		m.conflictRetries.Inc()
	}
}

// AuditWriteFailed records a degraded-audit event.
func (m *Metrics) AuditWriteFailed() {
	if m != nil {
		m.auditFailures.Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}
