package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	assert.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.BookingsTotal)
}

func TestBookingOutcomes(t *testing.T) {
	m := New()
	m.Booking(OutcomePending)
	m.Booking(OutcomePending)
	m.Booking(OutcomeConflict)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BookingsTotal.WithLabelValues(OutcomePending)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingsTotal.WithLabelValues(OutcomeConflict)))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Booking(OutcomeConfirmed)
		m.Published(nil)
		m.SetNATSConnected(true)
	})
}

func TestPublished(t *testing.T) {
	m := New()
	m.Published(nil)
	m.Published(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishErrs))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Booking(OutcomeExpired)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `gocart_bookings_total{outcome="expired"} 1`))
}

func TestStartDBStatsCollector_NilDB(t *testing.T) {
	m := New()
	m.StartDBStatsCollector(nil, time.Second)
	assert.False(t, m.collectorStarted.Load())
}

func TestStartDBStatsCollector_CollectsStats(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Ping())

	m := New()
	m.StartDBStatsCollector(db, 20*time.Millisecond)
	m.StartDBStatsCollector(db, 20*time.Millisecond)
	assert.True(t, m.collectorStarted.Load())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DBConnectionsOpen) >= 1
	}, time.Second, 10*time.Millisecond)

	m.Shutdown()
	m.Shutdown()
}
