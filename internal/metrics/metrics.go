// Package metrics provides lock-free counters for a running relay and
// exports them in Prometheus format.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaytap/internal/hook"
)

// Collector tracks runtime metrics for the relay.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive  atomic.Int64
	sessionsTotal   atomic.Int64
	connectFailures atomic.Int64
	circuitRejected atomic.Int64
	bytes           [2]atomic.Int64 // indexed by hook.Direction
	bursts          [2]atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string

	registry *prometheus.Registry
}

// New creates a collector with its own Prometheus registry.
func New() *Collector {
	c := &Collector{startTime: time.Now(), registry: prometheus.NewRegistry()}
	c.register()
	return c
}

func (c *Collector) register() {
	load := func(v *atomic.Int64) func() float64 {
		return func() float64 { return float64(v.Load()) }
	}
	counter := func(name, help string, v *atomic.Int64, labels prometheus.Labels) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "relaytap", Name: name, Help: help, ConstLabels: labels,
		}, load(v))
	}

	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "relaytap", Name: "sessions_active", Help: "Sessions currently relaying",
		}, load(&c.sessionsActive)),
		counter("sessions_total", "Sessions accepted", &c.sessionsTotal, nil),
		counter("connect_failures_total", "Remote connects that failed", &c.connectFailures, nil),
		counter("circuit_rejections_total", "Sessions rejected by the open circuit breaker", &c.circuitRejected, nil),
		counter("errors_total", "Session-level errors", &c.errorsTotal, nil),
	)
	for _, dir := range []hook.Direction{hook.Outbound, hook.Inbound} {
		labels := prometheus.Labels{"direction": dir.String()}
		c.registry.MustRegister(
			counter("bytes_total", "Bytes forwarded after transforms", &c.bytes[dir], labels),
			counter("bursts_total", "Non-empty bursts forwarded", &c.bursts[dir], labels),
		)
	}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session gauge.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions still relaying.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ConnectFailed records a failed remote connect.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectFailures.Add(1)
}

// CircuitRejected records a session refused by the breaker.
func (c *Collector) CircuitRejected() {
	if c == nil {
		return
	}
	c.circuitRejected.Add(1)
}

// ── Traffic metrics ──────────────────────────────────────────────────

// BurstForwarded records one forwarded burst of n bytes.
func (c *Collector) BurstForwarded(dir hook.Direction, n int) {
	if c == nil || dir < hook.Outbound || dir > hook.Inbound {
		return
	}
	c.bursts[dir].Add(1)
	c.bytes[dir].Add(int64(n))
}

// Bytes returns the bytes forwarded in dir.
func (c *Collector) Bytes(dir hook.Direction) int64 {
	if c == nil || dir < hook.Outbound || dir > hook.Inbound {
		return 0
	}
	return c.bytes[dir].Load()
}

// Bursts returns the bursts forwarded in dir.
func (c *Collector) Bursts(dir hook.Direction) int64 {
	if c == nil || dir < hook.Outbound || dir > hook.Inbound {
		return 0
	}
	return c.bursts[dir].Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Export ───────────────────────────────────────────────────────────

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	BytesOutbound    int64  `json:"bytes_outbound"`
	BytesInbound     int64  `json:"bytes_inbound"`
	BurstsOutbound   int64  `json:"bursts_outbound"`
	BurstsInbound    int64  `json:"bursts_inbound"`
	ConnectFailures  int64  `json:"connect_failures"`
	CircuitRejected  int64  `json:"circuit_rejected"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:  c.sessionsActive.Load(),
		SessionsTotal:   c.sessionsTotal.Load(),
		BytesOutbound:   c.bytes[hook.Outbound].Load(),
		BytesInbound:    c.bytes[hook.Inbound].Load(),
		BurstsOutbound:  c.bursts[hook.Outbound].Load(),
		BurstsInbound:   c.bursts[hook.Inbound].Load(),
		ConnectFailures: c.connectFailures.Load(),
		CircuitRejected: c.circuitRejected.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
