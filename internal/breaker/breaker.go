// Package breaker implements a per-name circuit breaker state machine
// shared by the forward client and memory subsystems, so a failing
// upstream dependency is given time to recover instead of being hammered.
package breaker

import (
	"sync"
	"time"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// State is one of the three circuit states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes a breaker's thresholds.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
	SuccessThreshold int
}

// DefaultConfig matches spec.md §4.8's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
		SuccessThreshold: 2,
	}
}

// Stats is a snapshot of a breaker's counters.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
	TotalFailures   int
	TotalSuccesses  int
	StateChanges    int
}

// OnStateChange is invoked after every transition with the old and new
// state. It must not block or panic.
type OnStateChange func(old, new State)

// Breaker is a single named circuit breaker. Every exported method is
// safe for concurrent use; can_execute/record_* are each a short,
// mutex-guarded critical section, matching spec.md §5's atomicity
// requirement.
type Breaker struct {
	name string
	cfg  Config
	onChange OnStateChange

	mu            sync.Mutex
	state         State
	stats         Stats
	halfOpenCalls int
}

// New returns a breaker starting in the closed state.
func New(name string, cfg Config, onChange OnStateChange) *Breaker {
	return &Breaker{
		name:     name,
		cfg:      cfg,
		onChange: onChange,
		state:    Closed,
		stats:    Stats{State: Closed},
	}
}

// CanExecute reports whether a call may proceed, advancing
// open->half_open when the recovery timeout has elapsed and consuming a
// half-open probe slot when in that state.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.stats.LastFailureTime) >= b.cfg.RecoveryTimeout {
			b.transitionTo(HalfOpen)
			b.halfOpenCalls = 0
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenCalls < b.cfg.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TotalSuccesses++
	b.stats.SuccessCount++

	switch b.state {
	case HalfOpen:
		if b.stats.SuccessCount >= b.cfg.SuccessThreshold {
			b.transitionTo(Closed)
			L_info("breaker: recovered", "name", b.name, "successes", b.stats.SuccessCount)
		}
	case Closed:
		if b.stats.FailureCount > 0 {
			b.stats.FailureCount = 0
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TotalFailures++
	b.stats.FailureCount++
	b.stats.LastFailureTime = time.Now()

	switch b.state {
	case HalfOpen:
		b.transitionTo(Open)
		L_warn("breaker: reopened", "name", b.name, "failures", b.stats.FailureCount)
	case Closed:
		if b.stats.FailureCount >= b.cfg.FailureThreshold {
			b.transitionTo(Open)
			L_error("breaker: opened", "name", b.name,
				"threshold", b.cfg.FailureThreshold, "failures", b.stats.FailureCount)
		}
	}
}

// transitionTo must be called with b.mu held.
func (b *Breaker) transitionTo(newState State) {
	old := b.state
	if old == newState {
		return
	}

	b.state = newState
	b.stats.State = newState
	b.stats.StateChanges++

	switch newState {
	case Closed:
		b.stats.FailureCount = 0
		b.stats.SuccessCount = 0
		b.halfOpenCalls = 0
	case Open:
		b.stats.SuccessCount = 0
		b.halfOpenCalls = 0
	case HalfOpen:
		b.stats.FailureCount = 0
		b.stats.SuccessCount = 0
		b.halfOpenCalls = 0
	}

	L_info("breaker: state changed", "name", b.name, "from_state", old, "to_state", newState)

	if b.onChange != nil {
		safeCall(b.onChange, old, newState)
	}
}

// safeCall recovers a panicking callback so one misbehaving observer
// cannot corrupt the breaker's state transition.
func safeCall(cb OnStateChange, old, new State) {
	defer func() {
		if r := recover(); r != nil {
			L_error("breaker: state-change callback panicked", "error", r)
		}
	}()
	cb(old, new)
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// StatsSnapshot returns a copy of the breaker's counters.
func (b *Breaker) StatsSnapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// Config returns the breaker's configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// Reset forces the breaker back to closed, used by the management API's
// per-breaker reset endpoint.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(Closed)
}
