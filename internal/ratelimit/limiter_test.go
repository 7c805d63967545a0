// internal/ratelimit/limiter_test.go
package ratelimit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anayv/crease/internal/events"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	l := NewLimiter(map[events.Class]Limit{
		events.ClassBid: {MaxEvents: max, Window: window},
	}, clock)
	return l, clock
}

func TestExactBudgetAdmitted(t *testing.T) {
	l, _ := newTestLimiter(3, time.Second)
	conn := uuid.New()

	for i := 0; i < 3; i++ {
		d := l.Allow(conn, events.ClassBid)
		require.True(t, d.Allowed, "call %d should be admitted", i+1)
	}

	d := l.Allow(conn, events.ClassBid)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Second)
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)
	conn := uuid.New()

	require.True(t, l.Allow(conn, events.ClassBid).Allowed)
	clock.Advance(600 * time.Millisecond)
	require.True(t, l.Allow(conn, events.ClassBid).Allowed)

	// First stamp still in the window.
	assert.False(t, l.Allow(conn, events.ClassBid).Allowed)

	// Slide past the first stamp; one slot frees up.
	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.Allow(conn, events.ClassBid).Allowed)
}

func TestRetryAfterHint(t *testing.T) {
	l, clock := newTestLimiter(1, 10*time.Second)
	conn := uuid.New()

	require.True(t, l.Allow(conn, events.ClassBid).Allowed)
	clock.Advance(4 * time.Second)

	d := l.Allow(conn, events.ClassBid)
	require.False(t, d.Allowed)
	assert.Equal(t, 6*time.Second, d.RetryAfter)
}

func TestUnconfiguredClassFailsOpen(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	conn := uuid.New()

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(conn, events.ClassState).Allowed)
	}
}

func TestConnectionsIsolated(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	a, b := uuid.New(), uuid.New()

	require.True(t, l.Allow(a, events.ClassBid).Allowed)
	assert.False(t, l.Allow(a, events.ClassBid).Allowed)
	assert.True(t, l.Allow(b, events.ClassBid).Allowed)
}

func TestForgetResetsBudget(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)
	conn := uuid.New()

	require.True(t, l.Allow(conn, events.ClassBid).Allowed)
	require.False(t, l.Allow(conn, events.ClassBid).Allowed)

	l.Forget(conn)
	assert.True(t, l.Allow(conn, events.ClassBid).Allowed)
}
