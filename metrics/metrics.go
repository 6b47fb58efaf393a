// Package metrics exposes the ledger core's operational counters and
// gauges. Adapted from the teacher's metrics.go + registry.go +
// prometheus_exporter.go (get-or-create Counter/Gauge/Histogram registry,
// a process-wide default registry, hand-written Prometheus text
// exposition) but rewired onto github.com/prometheus/client_golang
// instead of the teacher's hand-rolled exposition writer: the teacher
// already carries client_golang as an indirect dependency (pulled in
// transitively, unused by its own metrics package), and the real client
// serves this core's observability needs better than re-deriving the
// Prometheus text format by hand.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every metric this core exposes under one Prometheus
// registerer, the way the teacher's Registry grouped ad hoc Counter/Gauge
// instances under one get-or-create map.
type Registry struct {
	reg *prometheus.Registry

	LogAppends      prometheus.Counter
	LogSegments     prometheus.Gauge
	SMTInserts      prometheus.Counter
	SMTDepth        prometheus.Gauge
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheEvictions  prometheus.Counter
	ConflictQueue   prometheus.Gauge
	ManualReviewed  prometheus.Counter
	QueueEvictions  prometheus.Counter
	PolicyDecisions *prometheus.CounterVec
	VerifyLatency   prometheus.Histogram
	ProofsRejected  *prometheus.CounterVec
	RateLimited     prometheus.Counter
	AuditChainLen   prometheus.Gauge
	MigrationHops   prometheus.Counter
}

// NewRegistry creates and registers every metric under namespace (e.g.
// "medledger"), mirroring the teacher's PrometheusConfig.Namespace prefix.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		LogAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "merklelog", Name: "appends_total",
			Help: "Total entries appended to the Merkle log.",
		}),
		LogSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "merklelog", Name: "segments",
			Help: "Current number of log segments.",
		}),
		SMTInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "smt", Name: "inserts_total",
			Help: "Total sparse Merkle tree leaf updates.",
		}),
		SMTDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "smt", Name: "depth",
			Help: "Configured sparse Merkle tree depth.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "policy", Name: "cache_hits_total",
			Help: "Policy decision cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "policy", Name: "cache_misses_total",
			Help: "Policy decision cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "policy", Name: "cache_evictions_total",
			Help: "Policy decision cache FIFO evictions.",
		}),
		ConflictQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "occ", Name: "conflict_queue_depth",
			Help: "Current depth of the pending-conflict queue.",
		}),
		ManualReviewed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "occ", Name: "manual_reviewed_total",
			Help: "Updates routed to manual review after a concurrent-field conflict.",
		}),
		QueueEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "occ", Name: "queue_evictions_total",
			Help: "Conflicts dropped because the bounded conflict queue was full.",
		}),
		PolicyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "policy", Name: "decisions_total",
			Help: "Policy evaluation outcomes by decision (allow/deny).",
		}, []string{"decision"}),
		VerifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "zkverify", Name: "verify_seconds",
			Help:    "Wall-clock duration of a single proof verification, caller-supplied.",
			Buckets: prometheus.DefBuckets,
		}),
		ProofsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "zkverify", Name: "proofs_rejected_total",
			Help: "Rejected proof submissions by reason.",
		}, []string{"reason"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "zkverify", Name: "rate_limited_total",
			Help: "Requests rejected by the sliding-window rate limiter.",
		}),
		AuditChainLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "zkverify", Name: "audit_chain_length",
			Help: "Current length of the verification audit chain.",
		}),
		MigrationHops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "migration", Name: "hops_total",
			Help: "Forward or reverse migration hops applied.",
		}),
	}

	reg.MustRegister(
		r.LogAppends, r.LogSegments, r.SMTInserts, r.SMTDepth,
		r.CacheHits, r.CacheMisses, r.CacheEvictions,
		r.ConflictQueue, r.ManualReviewed, r.QueueEvictions,
		r.PolicyDecisions, r.VerifyLatency, r.ProofsRejected,
		r.RateLimited, r.AuditChainLen, r.MigrationHops,
	)
	return r
}

// Handler returns the /metrics HTTP handler, replacing the teacher's
// hand-written PrometheusExporter.handleMetrics with promhttp's.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
