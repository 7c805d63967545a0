// internal/match/reconciler_test.go
package match

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/room"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestConn(name string) *room.Conn {
	return &room.Conn{
		ID:      uuid.New(),
		Name:    name,
		OutChan: make(chan events.Msg, 64),
	}
}

func setupMatch(t *testing.T) (*Reconciler, *room.Room, *room.Conn, *room.Conn) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	reg := room.NewRegistry(room.RegistryConfig{
		SweepInterval:     time.Minute,
		EmptyGracePeriod:  time.Minute,
		InactivityTimeout: time.Hour,
	}, clock, testLogger())

	host := newTestConn("Host")
	r, err := reg.CreateRoom(room.ModeHeadToHead, host)
	require.NoError(t, err)
	guest := newTestConn("Guest")
	_, _, err = reg.Join(r.Code, guest)
	require.NoError(t, err)

	return NewReconciler(reg, clock, testLogger()), r, host, guest
}

func drain(c *room.Conn) []events.Msg {
	var msgs []events.Msg
	for {
		select {
		case m := <-c.OutChan:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func snap(innings, balls int) room.MatchSnapshot {
	return room.MatchSnapshot{Innings: innings, BallsBowled: balls}
}

func TestFirstSnapshotAlwaysAccepted(t *testing.T) {
	rc, r, host, _ := setupMatch(t)

	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(1, 0)))

	r.Mu.Lock()
	require.NotNil(t, r.Snapshot)
	assert.Equal(t, 1, r.Snapshot.Innings)
	r.Mu.Unlock()
}

func TestForwardProgressAccepted(t *testing.T) {
	rc, r, host, _ := setupMatch(t)

	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(1, 30)))
	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(1, 31)))
	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(2, 0)))

	r.Mu.Lock()
	assert.Equal(t, 2, r.Snapshot.Innings)
	assert.Equal(t, 0, r.Snapshot.BallsBowled)
	r.Mu.Unlock()
}

func TestStaleSnapshotDropped(t *testing.T) {
	rc, r, host, _ := setupMatch(t)

	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(1, 30)))

	// Same or lower balls in the same innings is a no-op.
	assert.ErrorIs(t, rc.ProposeState(r.Code, host.ID, snap(1, 29)), ErrStale)
	assert.ErrorIs(t, rc.ProposeState(r.Code, host.ID, snap(1, 30)), ErrStale)
	// Innings regression likewise.
	assert.ErrorIs(t, rc.ProposeState(r.Code, host.ID, snap(0, 99)), ErrStale)

	r.Mu.Lock()
	assert.Equal(t, 30, r.Snapshot.BallsBowled)
	assert.Equal(t, 1, r.Snapshot.Innings)
	r.Mu.Unlock()
}

func TestMatchOverOverridesOrdering(t *testing.T) {
	rc, r, host, _ := setupMatch(t)

	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(2, 40)))

	terminal := room.MatchSnapshot{Innings: 2, BallsBowled: 40, MatchOver: true}
	require.NoError(t, rc.ProposeState(r.Code, host.ID, terminal))

	r.Mu.Lock()
	assert.True(t, r.Snapshot.MatchOver)
	r.Mu.Unlock()
}

func TestNonHostRejected(t *testing.T) {
	rc, r, _, guest := setupMatch(t)

	err := rc.ProposeState(r.Code, guest.ID, snap(1, 1))
	assert.ErrorIs(t, err, ErrNotHost)

	r.Mu.Lock()
	assert.Nil(t, r.Snapshot)
	r.Mu.Unlock()
}

func TestUnknownRoom(t *testing.T) {
	rc, _, host, _ := setupMatch(t)
	err := rc.ProposeState("QQQQQ", host.ID, snap(1, 1))
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestAcceptedStateBroadcastToOthersOnly(t *testing.T) {
	rc, r, host, guest := setupMatch(t)
	drain(host)
	drain(guest)

	require.NoError(t, rc.ProposeState(r.Code, host.ID, snap(1, 12)))

	assert.Empty(t, drain(host), "sender must not receive its own snapshot")

	msgs := drain(guest)
	require.Len(t, msgs, 1)
	assert.Equal(t, "match_state", msgs[0]["type"])
	state, ok := msgs[0]["state"].(*room.MatchSnapshot)
	require.True(t, ok)
	assert.Equal(t, 12, state.BallsBowled)
}

func TestStoredStateIsLexicographicallyMonotonic(t *testing.T) {
	rc, r, host, _ := setupMatch(t)

	proposals := []room.MatchSnapshot{
		snap(1, 3), snap(1, 1), snap(1, 7), snap(1, 7),
		snap(2, 0), snap(1, 50), snap(2, 4),
	}
	prevInnings, prevBalls := -1, -1
	for _, p := range proposals {
		rc.ProposeState(r.Code, host.ID, p)
		r.Mu.Lock()
		cur := *r.Snapshot
		r.Mu.Unlock()
		if cur.Innings < prevInnings || (cur.Innings == prevInnings && cur.BallsBowled < prevBalls) {
			t.Fatalf("stored state went backwards: (%d,%d) after (%d,%d)",
				cur.Innings, cur.BallsBowled, prevInnings, prevBalls)
		}
		prevInnings, prevBalls = cur.Innings, cur.BallsBowled
	}
}
