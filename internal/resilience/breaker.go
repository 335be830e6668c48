// Package resilience keeps a failing market data call from eating into every
// tick: after repeated failures a breaker rejects calls for a cooldown, then
// lets a single probe through.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the provider while a breaker is open.
var ErrOpen = errors.New("circuit open")

// State is a breaker's position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config sizes a breaker.
type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
}

// DefaultConfig suits a tick measured in minutes: three bad ticks in a row
// park the symbol for ten minutes.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, Cooldown: 10 * time.Minute}
}

// Stats is a point-in-time view of one breaker.
type Stats struct {
	Key                 string
	State               State
	Calls               int64
	Failures            int64
	Rejected            int64
	Timeouts            int64
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Breaker guards calls for one key, usually provider:symbol.
type Breaker struct {
	key string
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	streak   int
	probing  bool
	openedAt time.Time
	calls    int64
	failures int64
	rejected int64
	timeouts int64
}

// NewBreaker returns a closed breaker.
func NewBreaker(key string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	return &Breaker{key: key, cfg: cfg, now: time.Now}
}

// Key returns the breaker's key.
func (b *Breaker) Key() string { return b.key }

// State returns the current state. An open breaker whose cooldown has
// elapsed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return b.state
}

// Call runs fn under b. fn runs on its own goroutine so a provider that
// ignores ctx still releases the caller at the deadline; a deadline counts
// as a failure.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		b.record(o.err == nil, false)
		if o.err != nil {
			return zero, o.err
		}
		return o.v, nil
	case <-ctx.Done():
		b.record(false, true)
		return zero, ctx.Err()
	}
}

// cool moves an open breaker to half-open once the cooldown has passed.
// Callers hold mu.
func (b *Breaker) cool() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = HalfOpen
		b.probing = false
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	b.cool()
	switch {
	case b.state == Open, b.state == HalfOpen && b.probing:
		b.rejected++
		return ErrOpen
	case b.state == HalfOpen:
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(ok, timedOut bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if ok {
		b.state = Closed
		b.streak = 0
		return
	}

	b.failures++
	if timedOut {
		b.timeouts++
	}
	b.streak++
	if b.state == HalfOpen || b.streak >= b.cfg.FailureThreshold {
		b.state = Open
		b.openedAt = b.now()
	}
}

// Stats returns counters and state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return Stats{
		Key:                 b.key,
		State:               b.state,
		Calls:               b.calls,
		Failures:            b.failures,
		Rejected:            b.rejected,
		Timeouts:            b.timeouts,
		ConsecutiveFailures: b.streak,
		OpenedAt:            b.openedAt,
	}
}

// Reset closes the breaker and clears the failure streak.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.streak = 0
	b.probing = false
}
