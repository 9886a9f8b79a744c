// Package observability holds the Prometheus collectors shared by the API binary.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Enrollment operations.
const (
	OperationSignup     = "signup"
	OperationUnregister = "unregister"
)

// Enrollment outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	enrollmentOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mergington",
		Subsystem: "enrollment",
		Name:      "operations_total",
		Help:      "Signup and unregister attempts grouped by outcome.",
	}, []string{"operation", "outcome"})

	enrollmentChangedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "enrollment",
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed participant change.",
	})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mergington",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status_code"})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

func init() {
	prometheus.MustRegister(enrollmentOperations, enrollmentChangedGauge, httpRequestDuration, httpInFlight)
}

// RecordEnrollment counts one signup or unregister attempt.
func RecordEnrollment(operation, outcome string) {
	enrollmentOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordEnrollmentChanged updates the participant-change watermark gauge.
func RecordEnrollmentChanged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	enrollmentChangedGauge.Set(float64(ts.Unix()))
}

// ObserveHTTPRequest records the duration of a finished request.
func ObserveHTTPRequest(method, route, statusCode string, elapsed time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(elapsed.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}
