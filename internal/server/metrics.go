package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

// Metrics holds the Prometheus collectors of the solve service.
type Metrics struct {
	solves      *prometheus.CounterVec
	iterations  prometheus.Histogram
	evaluations *prometheus.HistogramVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradopt_solves_total",
			Help: "Finished solves by method, line search and termination status.",
		}, []string{"method", "line_search", "status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradopt_solve_iterations",
			Help:    "Outer iterations per finished solve.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		evaluations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradopt_solve_evaluations",
			Help:    "Objective evaluations per finished solve.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradopt_solve_duration_seconds",
			Help:    "Wall time of finished solves.",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradopt_jobs_in_flight",
			Help: "Solve jobs currently holding a worker.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.solves, m.iterations, m.evaluations, m.duration, m.inFlight)
	}
	return m
}

// observe records a finished solve. status is the termination status or
// "error" when the solve returned no result.
func (m *Metrics) observe(method, lineSearch, status string, result *optimization.Result, elapsed time.Duration) {
	m.solves.WithLabelValues(method, lineSearch, status).Inc()
	m.duration.Observe(elapsed.Seconds())
	if result == nil {
		return
	}
	m.iterations.Observe(float64(result.Iterations))
	m.evaluations.WithLabelValues("func").Observe(float64(result.FuncEvaluations))
	m.evaluations.WithLabelValues("grad").Observe(float64(result.GradEvaluations))
}
