// Package metrics exposes Prometheus instruments for the sync engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notesync"

// Metrics groups the engine instruments.
type Metrics struct {
	RemoteCalls        *prometheus.CounterVec
	RefreshPasses      prometheus.Counter
	RefreshTriggers    *prometheus.CounterVec
	CacheWriteFailures prometheus.Counter
	OfflineQueueDepth  prometheus.Gauge
	OfflineReplays     *prometheus.CounterVec
	Admissions         prometheus.Counter
	PollerSessions     prometheus.Gauge
	PollerMerges       prometheus.Counter
	PollerOutcomes     *prometheus.CounterVec
}

// New creates the instruments and registers them on reg. A nil registerer
// creates unregistered instruments (useful in tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote note service calls by operation and result.",
		}, []string{"op", "result"}),
		RefreshPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_passes_total",
			Help:      "Debounced refresh passes executed.",
		}),
		RefreshTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_triggers_total",
			Help:      "Refresh triggers received, before coalescing.",
		}, []string{"reason"}),
		CacheWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_failures_total",
			Help:      "Failed write-through operations on the local cache.",
		}),
		OfflineQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offline_queue_depth",
			Help:      "Offline mutations waiting for replay.",
		}),
		OfflineReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_replays_total",
			Help:      "Offline queue replay attempts by result.",
		}, []string{"result"}),
		Admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_admissions_total",
			Help:      "Note ids admitted to the optimistic ledger.",
		}),
		PollerSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_sessions_active",
			Help:      "Active reconciliation poller sessions.",
		}),
		PollerMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_merges_total",
			Help:      "Enrichment results merged by the poller.",
		}),
		PollerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_sessions_total",
			Help:      "Finished poller sessions by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RemoteCalls,
			m.RefreshPasses,
			m.RefreshTriggers,
			m.CacheWriteFailures,
			m.OfflineQueueDepth,
			m.OfflineReplays,
			m.Admissions,
			m.PollerSessions,
			m.PollerMerges,
			m.PollerOutcomes,
		)
	}
	return m
}

// ObserveRemote counts a remote call.
func (m *Metrics) ObserveRemote(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RemoteCalls.WithLabelValues(op, result).Inc()
}

// ObserveRefreshTrigger counts a trigger before coalescing.
func (m *Metrics) ObserveRefreshTrigger(reason string) {
	if m == nil {
		return
	}
	m.RefreshTriggers.WithLabelValues(reason).Inc()
}

// ObserveRefreshPass counts an executed refresh pass.
func (m *Metrics) ObserveRefreshPass() {
	if m == nil {
		return
	}
	m.RefreshPasses.Inc()
}

// ObserveCacheFailure counts a failed write-through.
func (m *Metrics) ObserveCacheFailure() {
	if m == nil {
		return
	}
	m.CacheWriteFailures.Inc()
}

// SetQueueDepth records the offline queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.OfflineQueueDepth.Set(float64(n))
}

// ObserveReplay counts one offline replay attempt.
func (m *Metrics) ObserveReplay(err error) {
	if m == nil {
		return
	}
	result := "synced"
	if err != nil {
		result = "failed"
	}
	m.OfflineReplays.WithLabelValues(result).Inc()
}

// ObserveAdmission counts a ledger admission.
func (m *Metrics) ObserveAdmission() {
	if m == nil {
		return
	}
	m.Admissions.Inc()
}

// PollerStarted increments the active session gauge.
func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.PollerSessions.Inc()
}

// PollerFinished decrements the active session gauge and records the outcome.
func (m *Metrics) PollerFinished(outcome string) {
	if m == nil {
		return
	}
	m.PollerSessions.Dec()
	m.PollerOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePollerMerge counts a merged enrichment.
func (m *Metrics) ObservePollerMerge() {
	if m == nil {
		return
	}
	m.PollerMerges.Inc()
}
