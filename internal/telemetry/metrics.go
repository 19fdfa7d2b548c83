package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the prometheus registry for one sharder process: pass
// duration, candidates found, misplaced objects relocated, and the
// pass-scope error counter, bumped for each container a pass fails on
// and again by the daemon loop whenever a whole pass returns an error.
type Metrics struct {
	PassDuration  prometheus.Histogram
	Candidates    prometheus.Counter
	Misplaced     prometheus.Counter
	PassErrors    prometheus.Counter
	PassAttempted prometheus.Counter
	registry      *prometheus.Registry
}

// NewMetrics constructs and registers the sharder's metrics on a fresh
// registry, so a caller embedding this in a larger process can choose
// whether to expose it standalone (via Handler) or merge it into an
// existing registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sharder",
			Name:      "pass_duration_seconds",
			Help:      "Wall-clock duration of one sharder pass over all local containers.",
			Buckets:   prometheus.DefBuckets,
		}),
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sharder",
			Name:      "split_candidates_found_total",
			Help:      "Split candidates discovered by the counting trie across all passes.",
		}),
		Misplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sharder",
			Name:      "misplaced_objects_relocated_total",
			Help:      "Objects relocated to their authoritative shard across all passes.",
		}),
		PassErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sharder",
			Name:      "pass_errors_total",
			Help:      "Uncaught errors at pass scope.",
		}),
		PassAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sharder",
			Name:      "passes_total",
			Help:      "Sharder passes run.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.PassDuration, m.Candidates, m.Misplaced, m.PassErrors, m.PassAttempted)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
