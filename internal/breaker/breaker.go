// Package breaker stops sessions from dialing a remote endpoint that
// keeps refusing connections.  It never retries: an open circuit makes
// the session fail immediately instead of waiting out a dial timeout.
package breaker

import (
	"fmt"
	"sync"
	"time"

	rterr "relaytap/internal/errors"
)

// State represents the breaker's operational state.
type State int

const (
	// StateClosed is normal operation: dials pass through.
	StateClosed State = iota
	// StateOpen means the remote is failing and dials are rejected.
	StateOpen
	// StateHalfOpen lets probe dials test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a [Breaker].
type Config struct {
	// MaxFailures is the number of consecutive failed dials that opens
	// the circuit (default 5).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a probe
	// is allowed (default 30s).
	ResetTimeout time.Duration
	// HalfOpenMax is the number of consecutive successful probes that
	// close the circuit again (default 1).
	HalfOpenMax int
	// OnStateChange runs under the lock on every transition.
	OnStateChange func(from, to State)
}

// Breaker tracks consecutive failures of one remote endpoint.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	lastFailure   time.Time
	onStateChange func(from, to State)
	now           func() time.Time
}

// New creates a breaker.  A nil cfg uses the defaults.
func New(cfg *Config) *Breaker {
	if cfg == nil {
		cfg = &Config{}
	}
	b := &Breaker{
		state:         StateClosed,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
	}
	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = 30 * time.Second
	}
	if b.halfOpenMax <= 0 {
		b.halfOpenMax = 1
	}
	return b
}

// Execute runs fn unless the circuit is open, in which case it returns
// an error wrapping [rterr.ErrCircuitOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// CurrentState returns the current state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// ── internal ─────────────────────────────────────────────────────────

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	since := b.now().Sub(b.lastFailure)
	if since >= b.resetTimeout {
		b.transition(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w: %d consecutive failures, next probe in %v",
		rterr.ErrCircuitOpen, b.failures, (b.resetTimeout - since).Truncate(time.Second))
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.transition(StateOpen)
		}
		return
	}

	b.successes++
	switch b.state {
	case StateHalfOpen:
		if b.successes >= b.halfOpenMax {
			b.failures = 0
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
