package submission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of the attempts counter.
const (
	OutcomeSaved     = "saved"
	OutcomeExisting  = "existing"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	Attempts     *prometheus.CounterVec
	SaveDuration prometheus.Histogram
	InFlight     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hirescribe_submission_attempts_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"}),

		SaveDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hirescribe_submission_save_duration_seconds",
			Help:    "Latency of the assessment save call.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hirescribe_submissions_in_flight",
			Help: "Submissions currently persisting.",
		}),
	}
}
