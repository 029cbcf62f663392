package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding module. Tracks submission
// outcomes, availability toggles, plate conflicts, and the evaluator's
// latency.
type Metrics struct {
	Submissions        *prometheus.CounterVec
	OnlineTransitions  *prometheus.CounterVec
	PlateConflicts     prometheus.Counter
	EvaluationDuration prometheus.Histogram
}

// New creates a Metrics instance with all onboarding metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onramp_submissions_total",
			Help: "Driver review submissions by outcome (submitted or blocked)",
		}, []string{"outcome"}),
		OnlineTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onramp_online_transitions_total",
			Help: "Availability toggles by outcome (online, offline, blocked)",
		}, []string{"outcome"}),
		PlateConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onramp_plate_conflicts_total",
			Help: "Vehicle saves rejected because the plate is claimed elsewhere",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "onramp_eligibility_evaluation_duration_seconds",
			Help:    "Duration of eligibility snapshot load plus evaluation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordSubmission records one submission attempt outcome.
func (m *Metrics) RecordSubmission(submitted bool) {
	if submitted {
		m.Submissions.WithLabelValues("submitted").Inc()
	} else {
		m.Submissions.WithLabelValues("blocked").Inc()
	}
}

// RecordOnlineTransition records one availability toggle outcome.
func (m *Metrics) RecordOnlineTransition(outcome string) {
	m.OnlineTransitions.WithLabelValues(outcome).Inc()
}

// IncrementPlateConflict records a vehicle save lost to a plate claim.
func (m *Metrics) IncrementPlateConflict() {
	m.PlateConflicts.Inc()
}

// ObserveEvaluation records the duration of one eligibility evaluation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEvaluation(start time.Time) {
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
}
