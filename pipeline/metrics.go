package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments updated by a run. A nil *Metrics records
// nothing.
type Metrics struct {
	Entries       *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec
	QueueDepth    *prometheus.GaugeVec
	RunDuration   *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vocabstream",
				Subsystem: "pipeline",
				Name:      "entries_total",
				Help:      "Entries handled, by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),

		WriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vocabstream",
				Subsystem: "writer",
				Name:      "write_duration_seconds",
				Help:      "Time spent handing one entry to a writer",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"writer"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vocabstream",
				Subsystem: "writer",
				Name:      "queue_depth",
				Help:      "Entries accepted by a writer and not written yet",
			},
			[]string{"writer"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vocabstream",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"state"},
		),

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vocabstream",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs, by final state",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) entries(stage, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Entries.WithLabelValues(stage, outcome).Add(float64(n))
}

func (m *Metrics) write(w string, seconds float64) {
	if m == nil {
		return
	}
	m.WriteDuration.WithLabelValues(w).Observe(seconds)
}

func (m *Metrics) queue(w string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(w).Set(float64(depth))
}

func (m *Metrics) run(state State, seconds float64) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(state.String()).Observe(seconds)
	m.Runs.WithLabelValues(state.String()).Inc()
}
