// internal/ratelimit/limiter.go

// Package ratelimit implements per-connection, per-event-class sliding-window
// admission control. A denied event is dropped, never queued; admission has no
// effect on events already admitted.
package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/anayv/crease/internal/events"
)

// Limit is the budget for one event class: at most MaxEvents per Window.
type Limit struct {
	MaxEvents int
	Window    time.Duration
}

// Decision is the outcome of one admission check. RetryAfter is only
// meaningful when Allowed is false and the class is configured.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type windowKey struct {
	conn  uuid.UUID
	class events.Class
}

// Limiter tracks event timestamps per (connection, class). Classes without a
// configured Limit are always admitted: only the critical event classes are
// throttled, unknown traffic is not blocked.
type Limiter struct {
	mu      sync.Mutex
	limits  map[events.Class]Limit
	windows map[windowKey][]time.Time
	clock   clockwork.Clock
}

// DefaultLimits is the production budget table: tight for room creation and
// auction actions, loose for high-frequency state pings.
func DefaultLimits() map[events.Class]Limit {
	return map[events.Class]Limit{
		events.ClassCreate: {MaxEvents: 3, Window: 30 * time.Second},
		events.ClassJoin:   {MaxEvents: 6, Window: 30 * time.Second},
		events.ClassChat:   {MaxEvents: 8, Window: 10 * time.Second},
		events.ClassBid:    {MaxEvents: 10, Window: 5 * time.Second},
		events.ClassState:  {MaxEvents: 40, Window: 10 * time.Second},
		events.ClassList:   {MaxEvents: 10, Window: 10 * time.Second},
	}
}

// NewLimiter builds a limiter over the given budget table.
func NewLimiter(limits map[events.Class]Limit, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		limits:  limits,
		windows: make(map[windowKey][]time.Time),
		clock:   clock,
	}
}

// Allow runs one admission check: purge timestamps older than the window,
// deny with a retry-after hint if the budget is spent, otherwise record now
// and admit.
func (l *Limiter) Allow(conn uuid.UUID, class events.Class) Decision {
	limit, configured := l.limits[class]
	if !configured {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	key := windowKey{conn: conn, class: class}
	cutoff := now.Add(-limit.Window)

	stamps := l.windows[key]
	valid := 0
	for valid < len(stamps) && !stamps[valid].After(cutoff) {
		valid++
	}
	stamps = stamps[valid:]

	if len(stamps) >= limit.MaxEvents {
		l.windows[key] = stamps
		retry := limit.Window - now.Sub(stamps[0])
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}

	l.windows[key] = append(stamps, now)
	return Decision{Allowed: true}
}

// Forget discards all window state for a connection. Called on disconnect.
func (l *Limiter) Forget(conn uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.windows {
		if key.conn == conn {
			delete(l.windows, key)
		}
	}
}
