package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2024, 6, 17, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker("yahoo:NVDA", cfg)
	b.now = c.now
	return b, c
}

func fail(context.Context) (int, error) { return 0, errBoom }
func ok(context.Context) (int, error)   { return 1, nil }

func trip(t *testing.T, b *Breaker) {
	t.Helper()
	for i := 0; i < b.cfg.FailureThreshold; i++ {
		_, err := Call(context.Background(), b, fail)
		require.ErrorIs(t, err, errBoom)
	}
	require.Equal(t, Open, b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := testBreaker(DefaultConfig())
	trip(t, b)

	called := false
	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	st := b.Stats()
	assert.Equal(t, int64(4), st.Calls)
	assert.Equal(t, int64(3), st.Failures)
	assert.Equal(t, int64(1), st.Rejected)
	assert.Equal(t, 3, st.ConsecutiveFailures)
}

func TestBreaker_SuccessClearsStreak(t *testing.T) {
	b, _ := testBreaker(DefaultConfig())
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	_, _ = Call(ctx, b, fail)
	v, err := Call(ctx, b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, _ = Call(ctx, b, fail)

	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 1, b.Stats().ConsecutiveFailures)
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	b, c := testBreaker(DefaultConfig())
	trip(t, b)

	c.advance(10 * time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	_, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, c := testBreaker(DefaultConfig())
	trip(t, b)

	c.advance(11 * time.Minute)
	_, err := Call(context.Background(), b, fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, b.State())

	_, err = Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_SingleProbeWhileHalfOpen(t *testing.T) {
	b, c := testBreaker(DefaultConfig())
	trip(t, b)
	c.advance(time.Hour)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started

	_, err := Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrOpen, "second caller must not probe concurrently")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_DeadlineCountsAsFailure(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := Call(ctx, b, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Open, b.State())
	assert.Equal(t, int64(1), b.Stats().Timeouts)
}

func TestBreakers_PerKey(t *testing.T) {
	bs := NewBreakers(Config{FailureThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	nvda := bs.For("yahoo:NVDA")
	assert.Same(t, nvda, bs.For("yahoo:NVDA"))

	_, _ = Call(ctx, nvda, fail)
	assert.Equal(t, Open, nvda.State())
	assert.Equal(t, Closed, bs.For("yahoo:AAPL").State())

	snap := bs.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "yahoo:AAPL", snap[0].Key)
	assert.Equal(t, "yahoo:NVDA", snap[1].Key)

	tripped := bs.Tripped()
	require.Len(t, tripped, 1)
	assert.Equal(t, "yahoo:NVDA", tripped[0].Key)
	assert.Equal(t, "open", tripped[0].State.String())

	bs.Reset()
	assert.Empty(t, bs.Tripped())
}
