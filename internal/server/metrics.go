package server

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Brownie44l1/pollhttpd/internal/request"
)

// Metrics holds server runtime metrics. The event loop writes, any goroutine
// may take a Snapshot.
type Metrics struct {
	RequestsTotal       atomic.Int64
	ActiveConnections   atomic.Int64
	ConnectionsAccepted atomic.Int64
	ConnectionsRejected atomic.Int64
	ErrorsTotal         atomic.Int64
	Errors4xx           atomic.Int64
	Errors5xx           atomic.Int64
	WriteFailures       atomic.Int64

	// Latency tracking (simplified - use histogram in production)
	TotalLatencyNs atomic.Int64

	byStatus  *xsync.MapOf[int, *xsync.Counter]
	byOutcome *xsync.MapOf[string, *xsync.Counter]
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		byStatus:  xsync.NewMapOf[int, *xsync.Counter](),
		byOutcome: xsync.NewMapOf[string, *xsync.Counter](),
	}
}

// RecordRequest records a completed exchange
func (m *Metrics) RecordRequest(statusCode int, outcome request.Outcome, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	if statusCode >= 400 && statusCode < 500 {
		m.Errors4xx.Add(1)
	} else if statusCode >= 500 {
		m.Errors5xx.Add(1)
		m.ErrorsTotal.Add(1)
	}

	c, _ := m.byStatus.LoadOrCompute(statusCode, xsync.NewCounter)
	c.Inc()
	c, _ = m.byOutcome.LoadOrCompute(outcome.String(), xsync.NewCounter)
	c.Inc()
}

// ConnOpened records an accepted and registered connection
func (m *Metrics) ConnOpened() {
	m.ConnectionsAccepted.Add(1)
	m.ActiveConnections.Add(1)
}

// ConnClosed records a torn down connection
func (m *Metrics) ConnClosed() {
	m.ActiveConnections.Add(-1)
}

// ConnRejected records a connection closed because the set was full
func (m *Metrics) ConnRejected() {
	m.ConnectionsRejected.Add(1)
}

// WriteFailed records a failed or short response write
func (m *Metrics) WriteFailed() {
	m.WriteFailures.Add(1)
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	RequestsTotal       int64
	ActiveConnections   int64
	ConnectionsAccepted int64
	ConnectionsRejected int64
	ErrorsTotal         int64
	Errors4xx           int64
	Errors5xx           int64
	WriteFailures       int64
	AverageLatency      time.Duration
	ByStatus            map[int]int64
	ByOutcome           map[string]int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		RequestsTotal:       m.RequestsTotal.Load(),
		ActiveConnections:   m.ActiveConnections.Load(),
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsRejected: m.ConnectionsRejected.Load(),
		ErrorsTotal:         m.ErrorsTotal.Load(),
		Errors4xx:           m.Errors4xx.Load(),
		Errors5xx:           m.Errors5xx.Load(),
		WriteFailures:       m.WriteFailures.Load(),
		AverageLatency:      m.AverageLatency(),
		ByStatus:            make(map[int]int64),
		ByOutcome:           make(map[string]int64),
	}

	m.byStatus.Range(func(code int, c *xsync.Counter) bool {
		s.ByStatus[code] = c.Value()
		return true
	})
	m.byOutcome.Range(func(name string, c *xsync.Counter) bool {
		s.ByOutcome[name] = c.Value()
		return true
	})
	return s
}
