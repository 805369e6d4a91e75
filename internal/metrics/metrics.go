// Package metrics exposes Prometheus metrics for HTTP traffic, the DB pool,
// booking outcomes and event publishing.
package metrics

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcome label values.
const (
	OutcomePending   = "pending"
	OutcomeConflict  = "conflict"
	OutcomeConfirmed = "confirmed"
	OutcomeCancelled = "cancelled"
	OutcomeExpired   = "expired"
)

type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	BookingsTotal *prometheus.CounterVec

	EventsPublished  prometheus.Counter
	EventPublishErrs prometheus.Counter
	NATSConnected    prometheus.Gauge

	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocart_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gocart_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gocart_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gocart_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gocart_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gocart_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gocart_bookings_total",
			Help: "Booking state transitions and rejected claims by outcome",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gocart_events_published_total",
			Help: "Total booking events published.",
		}),
		EventPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gocart_event_publish_errors_total",
			Help: "Total booking event publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gocart_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
		m.BookingsTotal,
		m.EventsPublished,
		m.EventPublishErrs,
		m.NATSConnected,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Booking counts one outcome. Safe on a nil receiver.
func (m *Metrics) Booking(outcome string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(outcome).Inc()
}

// Published records one publish attempt. Safe on a nil receiver.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventPublishErrs.Inc()
		return
	}
	m.EventsPublished.Inc()
}

func (m *Metrics) SetNATSConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.NATSConnected.Set(1)
		return
	}
	m.NATSConnected.Set(0)
}

// StartDBStatsCollector samples db.Stats() every interval until Shutdown.
// Only the first call starts a collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var lastWait time.Duration

	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[METRICS] panic in DB stats collector: %v", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))
				if delta := stats.WaitDuration - lastWait; delta > 0 {
					m.DBWaitSecondsTotal.Add(delta.Seconds())
				}
				lastWait = stats.WaitDuration
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector and waits for it. Safe to call twice.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
