// internal/room/room.go

// Package room holds the authoritative in-memory session state: the Room
// entity, its members, and the Registry that owns their lifecycle. All
// mutation of a single room happens under that room's mutex; events for
// different rooms proceed independently.
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/validate"
)

// Mode is the fixed play mode of a room, set at creation.
type Mode string

const (
	ModeHeadToHead Mode = "head_to_head"
	ModeTournament Mode = "tournament"
	ModeAuction    Mode = "auction"
)

// Capacity returns the player cap for the mode.
func (m Mode) Capacity() int {
	if m == ModeTournament {
		return 10
	}
	return 2
}

// sideLetters is the fixed side ordering; joins take the first unused letter.
const sideLetters = "ABCDEFGHIJ"

// Player is one member of a room. Side is the per-room slot letter, distinct
// from the connection behind it. Players keep join order in Room.Players.
type Player struct {
	Conn      *Conn
	Side      string
	Ready     bool
	Franchise string
	Roster    []validate.RosterEntry
}

// MatchSnapshot is a proposed or accepted representation of match progress.
// The core understands exactly four fields plus the terminal flag; Extra is
// carried opaquely for the clients.
type MatchSnapshot struct {
	Score       int                    `json:"score"`
	Wickets     int                    `json:"wickets"`
	BallsBowled int                    `json:"ballsBowled"`
	Innings     int                    `json:"innings"`
	MatchOver   bool                   `json:"isMatchOver"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Room is the unit of isolation for one match or auction session.
type Room struct {
	Code     string
	Mode     Mode
	HostConn uuid.UUID // uuid.Nil when the room is empty

	// Players in join order; at most Mode.Capacity(), unique per side letter.
	Players []*Player

	// Snapshot is the last accepted match state, nil until the host reports.
	Snapshot *MatchSnapshot

	CreatedAt    time.Time
	LastActivity time.Time

	// EmptySince is set when the last player leaves and cleared on join;
	// the sweep uses it for the empty-grace policy.
	EmptySince time.Time

	// Mu serializes all mutation of this room, including sweep and timer
	// callbacks. The registry's own lock only guards the room maps.
	Mu sync.Mutex
}

// PlayerByConnUnsafe finds a member by connection id. Assumes lock is held.
func (r *Room) PlayerByConnUnsafe(id uuid.UUID) *Player {
	for _, p := range r.Players {
		if p.Conn.ID == id {
			return p
		}
	}
	return nil
}

// nextSideUnsafe returns the first unused side letter, or "" when every slot
// up to capacity is taken. Assumes lock is held.
func (r *Room) nextSideUnsafe() string {
	used := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		used[p.Side] = true
	}
	for i := 0; i < r.Mode.Capacity(); i++ {
		side := string(sideLetters[i])
		if !used[side] {
			return side
		}
	}
	return ""
}

// BroadcastAllUnsafe sends msg to every member. Assumes lock is held; the
// underlying writes never block.
func (r *Room) BroadcastAllUnsafe(msg events.Msg) {
	for _, p := range r.Players {
		p.Conn.Write(msg)
	}
}

// BroadcastOthersUnsafe sends msg to every member except the named
// connection. Assumes lock is held.
func (r *Room) BroadcastOthersUnsafe(exclude uuid.UUID, msg events.Msg) {
	for _, p := range r.Players {
		if p.Conn.ID != exclude {
			p.Conn.Write(msg)
		}
	}
}

// StatePayloadUnsafe renders the room for broadcast. Assumes lock is held.
func (r *Room) StatePayloadUnsafe() events.Msg {
	players := make([]events.Msg, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, events.Msg{
			"side":      p.Side,
			"name":      p.Conn.Name,
			"is_host":   p.Conn.ID == r.HostConn,
			"is_ready":  p.Ready,
			"franchise": p.Franchise,
			"roster":    append([]validate.RosterEntry(nil), p.Roster...),
		})
	}
	return events.Msg{
		"type":    "room_state",
		"code":    r.Code,
		"mode":    string(r.Mode),
		"players": players,
	}
}

// TouchUnsafe records activity of any kind. Assumes lock is held.
func (r *Room) TouchUnsafe(now time.Time) {
	r.LastActivity = now
}
