package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Roster operations.
const (
	OperationSignup     = "signup"
	OperationUnregister = "unregister"
)

// Operation outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeNotFound        = "not_found"
	OutcomeAlreadyEnrolled = "already_enrolled"
	OutcomeNotEnrolled     = "not_enrolled"
	OutcomeFull            = "full"
	OutcomeError           = "error"
)

var (
	rosterOperationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "operations_total",
		Help:      "Signup and unregister requests grouped by outcome.",
	}, []string{"operation", "outcome"})

	// Labelled by activity name; the catalog is fixed so cardinality is bounded.
	participantsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "participants",
		Help:      "Current number of participants per activity.",
	}, []string{"activity"})

	lastChangeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent roster mutation.",
	})

	publishFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Roster change events that could not be handed to the outbox.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(rosterOperationCounter, participantsGauge, lastChangeGauge, publishFailureCounter)
}

// RecordRosterOperation counts a signup or unregister attempt.
func RecordRosterOperation(operation, outcome string) {
	rosterOperationCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordRosterChange updates the participant gauge and the change watermark.
func RecordRosterChange(activity string, participants int, ts time.Time) {
	participantsGauge.WithLabelValues(activity).Set(float64(participants))
	if ts.IsZero() {
		return
	}
	lastChangeGauge.Set(float64(ts.Unix()))
}

// SetParticipants seeds the participant gauge without touching the change watermark.
func SetParticipants(activity string, participants int) {
	participantsGauge.WithLabelValues(activity).Set(float64(participants))
}

// RecordPublishFailure counts an event dropped before it reached the outbox.
func RecordPublishFailure(eventType string) {
	publishFailureCounter.WithLabelValues(eventType).Inc()
}
