package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "records_ingested_total",
			Help:      "Canonical records accepted, partitioned by protocol and record type.",
		},
		[]string{"protocol", "type"},
	)

	validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "validation_failures_total",
			Help:      "Records rejected at the normalization boundary, by record type.",
		},
		[]string{"type"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "anomalies_total",
			Help:      "Anomalies recorded, by detection algorithm.",
		},
		[]string{"algorithm"},
	)

	alertTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "alert_transitions_total",
			Help:      "Alert lifecycle transitions driven by the evaluators.",
		},
		[]string{"evaluator", "transition"},
	)

	dispatchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "dispatch_failures_total",
			Help:      "Notification channel dispatch failures.",
		},
	)

	sweepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "argus",
			Name:      "sweep_seconds",
			Help:      "Rule sweep latency in seconds, by evaluator.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"evaluator"},
	)

	sweepSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Name:      "sweep_skipped_total",
			Help:      "Ticks skipped because the previous sweep was still running.",
		},
		[]string{"evaluator"},
	)
)

// Register attaches argus collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		recordsIngestedTotal,
		validationFailuresTotal,
		anomaliesTotal,
		alertTransitionsTotal,
		dispatchFailuresTotal,
		sweepDurationSeconds,
		sweepSkippedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngest counts one accepted record.
func ObserveIngest(protocol, recordType string) {
	recordsIngestedTotal.WithLabelValues(protocol, recordType).Inc()
}

// ObserveValidationFailure counts one rejected record.
func ObserveValidationFailure(recordType string) {
	validationFailuresTotal.WithLabelValues(recordType).Inc()
}

// ObserveAnomaly counts one recorded anomaly.
func ObserveAnomaly(algorithm string) {
	anomaliesTotal.WithLabelValues(algorithm).Inc()
}

// ObserveAlertTransition counts one lifecycle transition.
func ObserveAlertTransition(evaluator, transition string) {
	alertTransitionsTotal.WithLabelValues(evaluator, transition).Inc()
}

// ObserveDispatchFailure counts one failed notification dispatch.
func ObserveDispatchFailure() {
	dispatchFailuresTotal.Inc()
}

// ObserveSweep records a completed sweep's duration.
func ObserveSweep(evaluator string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	sweepDurationSeconds.WithLabelValues(evaluator).Observe(duration.Seconds())
}

// ObserveSweepSkipped counts a tick dropped due to an in-flight sweep.
func ObserveSweepSkipped(evaluator string) {
	sweepSkippedTotal.WithLabelValues(evaluator).Inc()
}
