// internal/room/registry_test.go
package room

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anayv/crease/internal/events"
)

func testConfig() RegistryConfig {
	return RegistryConfig{
		SweepInterval:     time.Minute,
		EmptyGracePeriod:  2 * time.Minute,
		InactivityTimeout: 30 * time.Minute,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewRegistry(testConfig(), clock, testLogger()), clock
}

func newTestConn(name string) *Conn {
	return &Conn{
		ID:      uuid.New(),
		Name:    name,
		OutChan: make(chan events.Msg, 64),
	}
}

func drain(c *Conn) []events.Msg {
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

func TestCreateRoomCodeFormat(t *testing.T) {
	reg, _ := newTestRegistry(t)

	for i := 0; i < 50; i++ {
		r, err := reg.CreateRoom(ModeAuction, newTestConn("Host"))
		require.NoError(t, err)
		assert.Len(t, r.Code, CodeLength)
		for _, ch := range r.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch),
				"code %q contains %q outside the unambiguous alphabet", r.Code, ch)
		}
		assert.NotContains(t, r.Code, "0")
		assert.NotContains(t, r.Code, "O")
		assert.NotContains(t, r.Code, "1")
		assert.NotContains(t, r.Code, "I")
	}
}

func TestCreatorIsHostOnSideA(t *testing.T) {
	reg, _ := newTestRegistry(t)
	host := newTestConn("Priya")

	r, err := reg.CreateRoom(ModeHeadToHead, host)
	require.NoError(t, err)
	assert.Equal(t, host.ID, r.HostConn)
	require.Len(t, r.Players, 1)
	assert.Equal(t, "A", r.Players[0].Side)
}

func TestJoinAssignsSidesInOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	r, err := reg.CreateRoom(ModeTournament, newTestConn("Host"))
	require.NoError(t, err)

	sides := []string{}
	for i := 0; i < 4; i++ {
		_, side, err := reg.Join(r.Code, newTestConn("P"))
		require.NoError(t, err)
		sides = append(sides, side)
	}
	assert.Equal(t, []string{"B", "C", "D", "E"}, sides)
}

func TestJoinRespectsCapacity(t *testing.T) {
	reg, _ := newTestRegistry(t)
	r, err := reg.CreateRoom(ModeAuction, newTestConn("Host"))
	require.NoError(t, err)

	_, side, err := reg.Join(r.Code, newTestConn("Sam"))
	require.NoError(t, err)
	assert.Equal(t, "B", side)

	_, _, err = reg.Join(r.Code, newTestConn("Third"))
	assert.ErrorIs(t, err, ErrRoomFull)

	r.Mu.Lock()
	assert.Len(t, r.Players, 2)
	r.Mu.Unlock()
}

func TestJoinUnknownCode(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, _, err := reg.Join("QQQQQ", newTestConn("Sam"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHostReassignmentFollowsJoinOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	host := newTestConn("Host")
	r, err := reg.CreateRoom(ModeTournament, host)
	require.NoError(t, err)

	second := newTestConn("Second")
	third := newTestConn("Third")
	_, _, err = reg.Join(r.Code, second)
	require.NoError(t, err)
	_, _, err = reg.Join(r.Code, third)
	require.NoError(t, err)

	reg.Leave(host.ID)

	r.Mu.Lock()
	assert.Equal(t, second.ID, r.HostConn)
	r.Mu.Unlock()

	// Host change is announced to the remaining players.
	found := false
	for _, msg := range drain(second) {
		if msg["type"] == "host_change" {
			assert.Equal(t, "Second", msg["host_name"])
			found = true
		}
	}
	assert.True(t, found, "expected a host_change broadcast")
}

func TestLeaveNonHostKeepsHost(t *testing.T) {
	reg, _ := newTestRegistry(t)
	host := newTestConn("Host")
	r, err := reg.CreateRoom(ModeTournament, host)
	require.NoError(t, err)

	second := newTestConn("Second")
	_, _, err = reg.Join(r.Code, second)
	require.NoError(t, err)

	reg.Leave(second.ID)

	r.Mu.Lock()
	assert.Equal(t, host.ID, r.HostConn)
	assert.Len(t, r.Players, 1)
	r.Mu.Unlock()
}

func TestSweepDeletesEmptyRoomsAfterGrace(t *testing.T) {
	reg, clock := newTestRegistry(t)
	host := newTestConn("Host")
	r, err := reg.CreateRoom(ModeHeadToHead, host)
	require.NoError(t, err)

	reg.Leave(host.ID)

	// Inside the grace period the room survives.
	clock.Advance(time.Minute)
	reg.Sweep()
	_, ok := reg.Get(r.Code)
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	reg.Sweep()
	_, ok = reg.Get(r.Code)
	assert.False(t, ok)
}

func TestSweepDeletesInactiveRooms(t *testing.T) {
	reg, clock := newTestRegistry(t)
	host := newTestConn("Host")
	r, err := reg.CreateRoom(ModeHeadToHead, host)
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	reg.Sweep()
	_, ok := reg.Get(r.Code)
	require.True(t, ok)

	// Activity resets the clock.
	reg.Touch(r.Code)
	clock.Advance(29 * time.Minute)
	reg.Sweep()
	_, ok = reg.Get(r.Code)
	require.True(t, ok)

	clock.Advance(2 * time.Minute)
	reg.Sweep()
	_, ok = reg.Get(r.Code)
	assert.False(t, ok)

	// Back-references are released along with the room.
	_, ok = reg.RoomByConn(host.ID)
	assert.False(t, ok)
}

func TestSweepNeverStrandsConcurrentJoiners(t *testing.T) {
	// The expiry decision and the map deletion are one step under the
	// registry lock: either the joiner lands first and the room survives,
	// or the sweep wins and the join misses. A joiner must never end up
	// back-referencing a deleted room.
	for i := 0; i < 50; i++ {
		reg, clock := newTestRegistry(t)
		host := newTestConn("Host")
		r, err := reg.CreateRoom(ModeHeadToHead, host)
		require.NoError(t, err)
		reg.Leave(host.ID)
		clock.Advance(3 * time.Minute)

		joiner := newTestConn("Late")
		var joinErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, joinErr = reg.Join(r.Code, joiner)
		}()
		go func() {
			defer wg.Done()
			reg.Sweep()
		}()
		wg.Wait()

		if joinErr == nil {
			live, ok := reg.RoomByConn(joiner.ID)
			require.True(t, ok, "joiner admitted into a swept room")
			assert.Equal(t, r.Code, live.Code)
		} else {
			assert.ErrorIs(t, joinErr, ErrRoomNotFound)
			_, ok := reg.RoomByConn(joiner.ID)
			assert.False(t, ok)
		}
	}
}

func TestSweepDisconnectsStaleMembers(t *testing.T) {
	reg, clock := newTestRegistry(t)

	host := newTestConn("Host")
	hostDropped := false
	host.Cancel = func() { hostDropped = true }
	r, err := reg.CreateRoom(ModeHeadToHead, host)
	require.NoError(t, err)

	guest := newTestConn("Guest")
	guestDropped := false
	guest.Cancel = func() { guestDropped = true }
	_, _, err = reg.Join(r.Code, guest)
	require.NoError(t, err)
	drain(host)
	drain(guest)

	clock.Advance(31 * time.Minute)
	reg.Sweep()

	_, ok := reg.Get(r.Code)
	assert.False(t, ok)
	assert.True(t, hostDropped)
	assert.True(t, guestDropped)

	// The closure notice is queued before the socket is dropped.
	msgs := drain(guest)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "room_closed", msgs[len(msgs)-1]["type"])
}

func TestSweepFiresDeleteCallbacks(t *testing.T) {
	reg, clock := newTestRegistry(t)
	deleted := []string{}
	reg.OnDelete(func(code string) { deleted = append(deleted, code) })

	host := newTestConn("Host")
	r, err := reg.CreateRoom(ModeAuction, host)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	reg.Sweep()
	assert.Equal(t, []string{r.Code}, deleted)
}

func TestListAvailableFiltersByMode(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.CreateRoom(ModeAuction, newTestConn("A"))
	require.NoError(t, err)
	r2, err := reg.CreateRoom(ModeHeadToHead, newTestConn("B"))
	require.NoError(t, err)

	// A full room is not listed.
	full, err := reg.CreateRoom(ModeHeadToHead, newTestConn("C"))
	require.NoError(t, err)
	_, _, err = reg.Join(full.Code, newTestConn("D"))
	require.NoError(t, err)

	list := reg.ListAvailable("head_to_head")
	require.Len(t, list, 1)
	assert.Equal(t, r2.Code, list[0].Code)
	assert.Equal(t, 1, list[0].Players)
	assert.Equal(t, 2, list[0].Capacity)
}

func TestJoinIsCaseNormalizedUpstream(t *testing.T) {
	// The registry stores upper-case codes; the validator normalizes input
	// before Join is called. Lower-case lookups miss by design.
	reg, _ := newTestRegistry(t)
	r, err := reg.CreateRoom(ModeAuction, newTestConn("Host"))
	require.NoError(t, err)

	_, _, err = reg.Join(strings.ToLower(r.Code), newTestConn("Sam"))
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, _, err = reg.Join(r.Code, newTestConn("Sam"))
	assert.NoError(t, err)
}
