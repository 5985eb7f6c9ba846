package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ObservationsProcessed counts every observation run through the engine,
	// anomalous or not.
	ObservationsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_observations_processed_total",
		Help: "Total traffic observations analyzed and persisted.",
	})

	// AlertsCreated counts opened alerts by threat level.
	AlertsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsentry_alerts_created_total",
		Help: "Total alerts opened, labeled by threat level.",
	}, []string{"threat_level"})

	// ScoringFailures counts scoring backend failures absorbed by the
	// fail-open fallback.
	ScoringFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_scoring_failures_total",
		Help: "Total scoring backend failures handled with the fail-open fallback.",
	})

	// PersistenceFailures counts rolled-back processing attempts.
	PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_persistence_failures_total",
		Help: "Total observation processing attempts rolled back on storage errors.",
	})
)

func init() {
	prometheus.MustRegister(ObservationsProcessed, AlertsCreated, ScoringFailures, PersistenceFailures)
}
