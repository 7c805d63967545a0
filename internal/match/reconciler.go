// internal/match/reconciler.go

// Package match reconciles proposed match-state snapshots against the last
// accepted one, rejecting stale or duplicate updates so that out-of-order
// delivery never rolls a scoreboard backwards.
package match

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/room"
)

var (
	// ErrNotHost rejects snapshot proposals from any connection other than
	// the room's current host. Only the host produces match state.
	ErrNotHost = errors.New("only the host may report match state")

	// ErrStale marks a superseded snapshot. Callers drop it silently: a
	// single authoritative sender reordering under network jitter is
	// expected and must not surface as a user-facing failure.
	ErrStale = errors.New("stale match state")
)

// Reconciler is the single entry point for match-state updates.
type Reconciler struct {
	Rooms *room.Registry
	Clock clockwork.Clock
	Log   *logrus.Logger
}

func NewReconciler(rooms *room.Registry, clock clockwork.Clock, log *logrus.Logger) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{Rooms: rooms, Clock: clock, Log: log}
}

// advances reports whether next supersedes prev. A nil prev always accepts;
// otherwise the snapshot must move the match forward: a later innings, more
// balls within the same innings, or a terminal flag (a match can end without
// the ball count advancing when a result is reached mid-over).
func advances(prev, next *room.MatchSnapshot) bool {
	if prev == nil {
		return true
	}
	if next.MatchOver {
		return true
	}
	if next.Innings > prev.Innings {
		return true
	}
	return next.Innings == prev.Innings && next.BallsBowled > prev.BallsBowled
}

// ProposeState validates authorship and ordering of a snapshot, and on
// acceptance stores it, marks activity, and broadcasts it to every other
// member of the room.
func (rc *Reconciler) ProposeState(code string, connID uuid.UUID, snap room.MatchSnapshot) error {
	r, ok := rc.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.HostConn != connID {
		return ErrNotHost
	}
	if !advances(r.Snapshot, &snap) {
		rc.Log.WithFields(logrus.Fields{
			"code":        code,
			"innings":     snap.Innings,
			"balls":       snap.BallsBowled,
			"have_inning": r.Snapshot.Innings,
			"have_balls":  r.Snapshot.BallsBowled,
		}).Debug("dropping stale match state")
		return ErrStale
	}

	r.Snapshot = &snap
	r.TouchUnsafe(rc.Clock.Now())
	r.BroadcastOthersUnsafe(connID, events.Msg{
		"type":  "match_state",
		"code":  code,
		"state": &snap,
	})
	return nil
}
