package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordEnrollmentIncrementsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(enrollmentOperations.WithLabelValues(OperationSignup, OutcomeConflict))

	RecordEnrollment(OperationSignup, OutcomeConflict)
	RecordEnrollment(OperationSignup, OutcomeConflict)

	after := testutil.ToFloat64(enrollmentOperations.WithLabelValues(OperationSignup, OutcomeConflict))
	require.InDelta(t, before+2, after, 0.0001)
}

func TestRecordEnrollmentChangedIgnoresZeroTime(t *testing.T) {
	ts := time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)
	RecordEnrollmentChanged(ts)
	require.InDelta(t, float64(ts.Unix()), testutil.ToFloat64(enrollmentChangedGauge), 0.0001)

	RecordEnrollmentChanged(time.Time{})
	require.InDelta(t, float64(ts.Unix()), testutil.ToFloat64(enrollmentChangedGauge), 0.0001)
}

func TestObserveHTTPRequest(t *testing.T) {
	observer := httpRequestDuration.WithLabelValues("GET", "GET /activities", "200")
	before := sampleCount(t, observer.(interface{ Write(*dto.Metric) error }))

	ObserveHTTPRequest("GET", "GET /activities", "200", 15*time.Millisecond)

	after := sampleCount(t, observer.(interface{ Write(*dto.Metric) error }))
	require.Equal(t, before+1, after)
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpInFlight)
	done := TrackInFlight()
	require.InDelta(t, before+1, testutil.ToFloat64(httpInFlight), 0.0001)
	done()
	require.InDelta(t, before, testutil.ToFloat64(httpInFlight), 0.0001)
}

func sampleCount(t *testing.T, m interface{ Write(*dto.Metric) error }) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, m.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
