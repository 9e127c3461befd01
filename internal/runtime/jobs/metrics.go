package jobs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "commitlog"

// Metrics tracks job lifecycle statistics in Prometheus collectors.
type Metrics struct {
	mu sync.Mutex

	submittedTotal *prometheus.CounterVec
	finishedTotal  *prometheus.CounterVec
	inFlight       prometheus.Gauge
	pollsPerJob    *prometheus.HistogramVec
	durationHist   *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// NewMetrics creates job metrics under namespace (default "commitlog").
// A nil registerer uses the Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer, namespace string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}

	return &Metrics{
		registerer: registerer,
		submittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total number of jobs accepted by the server",
		}, []string{"package"}),
		finishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of jobs that reached a terminal state",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of submitted jobs still being polled",
		}),
		pollsPerJob: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "polls",
			Help:      "Number of status queries issued per job",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"outcome"}),
		durationHist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Time from submission to terminal state",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
		}, []string{"outcome"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.submittedTotal,
		m.finishedTotal,
		m.inFlight,
		m.pollsPerJob,
		m.durationHist,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordSubmitted counts a job the server accepted.
func (m *Metrics) RecordSubmitted(pkg string) {
	m.submittedTotal.WithLabelValues(pkg).Inc()
	m.inFlight.Inc()
}

// RecordOutcome records a terminal job.
func (m *Metrics) RecordOutcome(ctx JobContext) {
	outcome := ctx.State.String()
	m.finishedTotal.WithLabelValues(outcome).Inc()
	if ctx.JobID == "" {
		return
	}
	m.inFlight.Dec()
	m.pollsPerJob.WithLabelValues(outcome).Observe(float64(ctx.Polls))
	m.durationHist.WithLabelValues(outcome).Observe(ctx.Duration.Seconds())
}
