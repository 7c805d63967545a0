// internal/room/registry.go
package room

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/events"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNoSideAvailable = errors.New("no side available")
	ErrAlreadyInRoom   = errors.New("connection already in a room")

	// ErrCodeSpaceExhausted means code generation kept colliding with live
	// rooms past the retry budget. This is a service-level failure, not a
	// per-request one; callers report "try again" and the condition is
	// logged as an error.
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// RegistryConfig holds the lifecycle tunables for the room sweep.
type RegistryConfig struct {
	SweepInterval     time.Duration
	EmptyGracePeriod  time.Duration
	InactivityTimeout time.Duration
}

// Summary is one row of a room listing.
type Summary struct {
	Code     string `json:"code"`
	Mode     string `json:"mode"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
}

// Registry owns every live room. Its lock guards only the two maps; room
// state is guarded by each room's own mutex, so operations on different
// rooms never contend.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	byConn map[uuid.UUID]string

	cfg   RegistryConfig
	clock clockwork.Clock
	log   *logrus.Logger
	rng   *rand.Rand

	// onDelete callbacks run after a room is removed, letting other
	// components (the auction coordinator) release per-room state.
	onDelete []func(code string)
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig, clock clockwork.Clock, log *logrus.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[uuid.UUID]string),
		cfg:    cfg,
		clock:  clock,
		log:    log,
		rng:    rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// OnDelete registers a callback invoked (outside all locks) whenever a room
// is removed, for whatever reason.
func (reg *Registry) OnDelete(fn func(code string)) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.onDelete = append(reg.onDelete, fn)
}

// CreateRoom builds a room with a fresh code and the creator as host/side A.
func (reg *Registry) CreateRoom(mode Mode, host *Conn) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, taken := reg.byConn[host.ID]; taken {
		return nil, ErrAlreadyInRoom
	}

	code := ""
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := randomCode(reg.rng)
		if _, exists := reg.rooms[candidate]; !exists {
			code = candidate
			break
		}
	}
	if code == "" {
		reg.log.WithField("attempts", maxCodeAttempts).Error("room code generation exhausted retry budget")
		return nil, ErrCodeSpaceExhausted
	}

	now := reg.clock.Now()
	r := &Room{
		Code:         code,
		Mode:         mode,
		HostConn:     host.ID,
		Players:      []*Player{{Conn: host, Side: "A"}},
		CreatedAt:    now,
		LastActivity: now,
	}
	reg.rooms[code] = r
	reg.byConn[host.ID] = code

	reg.log.WithFields(logrus.Fields{
		"code": code,
		"mode": mode,
		"host": host.ID,
	}).Info("room created")
	return r, nil
}

// Join adds a connection to the room, assigning the next unused side letter
// in the fixed ordering. The capacity check and the insert are one atomic
// step; a failed join leaves the room untouched.
func (reg *Registry) Join(code string, conn *Conn) (*Room, string, error) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return nil, "", ErrRoomNotFound
	}
	if _, taken := reg.byConn[conn.ID]; taken {
		reg.mu.Unlock()
		return nil, "", ErrAlreadyInRoom
	}

	r.Mu.Lock()
	if len(r.Players) >= r.Mode.Capacity() {
		r.Mu.Unlock()
		reg.mu.Unlock()
		return nil, "", ErrRoomFull
	}
	side := r.nextSideUnsafe()
	if side == "" {
		r.Mu.Unlock()
		reg.mu.Unlock()
		return nil, "", ErrNoSideAvailable
	}

	r.Players = append(r.Players, &Player{Conn: conn, Side: side})
	r.EmptySince = time.Time{}
	r.TouchUnsafe(reg.clock.Now())
	reg.byConn[conn.ID] = code
	reg.mu.Unlock()

	payload := r.StatePayloadUnsafe()
	payload["joined"] = conn.Name
	r.BroadcastAllUnsafe(payload)
	r.Mu.Unlock()

	reg.log.WithFields(logrus.Fields{
		"code": code,
		"conn": conn.ID,
		"side": side,
	}).Info("player joined room")
	return r, side, nil
}

// Leave removes the connection from whatever room it occupies. If the leaver
// held host, host passes deterministically to the next remaining player in
// join order; an emptied room is left for the sweep rather than deleted
// inline.
func (reg *Registry) Leave(connID uuid.UUID) {
	reg.mu.Lock()
	code, ok := reg.byConn[connID]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.byConn, connID)
	r := reg.rooms[code]
	reg.mu.Unlock()
	if r == nil {
		return
	}

	r.Mu.Lock()
	idx := -1
	for i, p := range r.Players {
		if p.Conn.ID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.Mu.Unlock()
		return
	}
	leaver := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	wasHost := r.HostConn == connID

	now := reg.clock.Now()
	r.TouchUnsafe(now)

	if len(r.Players) == 0 {
		r.HostConn = uuid.Nil
		r.EmptySince = now
		r.Mu.Unlock()
		reg.log.WithFields(logrus.Fields{"code": code, "conn": connID}).Info("room emptied, awaiting sweep")
		return
	}

	if wasHost {
		r.HostConn = r.Players[0].Conn.ID
		r.BroadcastAllUnsafe(events.Msg{
			"type":      "host_change",
			"host_side": r.Players[0].Side,
			"host_name": r.Players[0].Conn.Name,
		})
	}
	payload := r.StatePayloadUnsafe()
	payload["left"] = leaver.Conn.Name
	r.BroadcastAllUnsafe(payload)
	r.Mu.Unlock()

	reg.log.WithFields(logrus.Fields{
		"code":     code,
		"conn":     connID,
		"was_host": wasHost,
	}).Info("player left room")
}

// Get returns a live room by exact (already normalized) code.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// RoomByConn returns the room a connection currently occupies.
func (reg *Registry) RoomByConn(connID uuid.UUID) (*Room, bool) {
	reg.mu.Lock()
	code, ok := reg.byConn[connID]
	if !ok {
		reg.mu.Unlock()
		return nil, false
	}
	r, ok := reg.rooms[code]
	reg.mu.Unlock()
	return r, ok
}

// Touch updates a room's last-activity stamp.
func (reg *Registry) Touch(code string) {
	r, ok := reg.Get(code)
	if !ok {
		return
	}
	r.Mu.Lock()
	r.TouchUnsafe(reg.clock.Now())
	r.Mu.Unlock()
}

// ListAvailable returns joinable rooms, optionally filtered by mode.
func (reg *Registry) ListAvailable(mode string) []Summary {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	out := []Summary{}
	for _, r := range rooms {
		r.Mu.Lock()
		n := len(r.Players)
		cap := r.Mode.Capacity()
		m := string(r.Mode)
		r.Mu.Unlock()
		if n == 0 || n >= cap {
			continue
		}
		if mode != "" && mode != m {
			continue
		}
		out = append(out, Summary{Code: r.Code, Mode: m, Players: n, Capacity: cap})
	}
	return out
}

// Sweep deletes rooms that have been empty past the grace period or
// untouched past the inactivity timeout, releasing every connection
// back-reference and disconnecting any remaining member. The expiry check
// and the map deletion happen under the registry lock so a concurrent Join
// can never land in a room the sweep is about to delete.
func (reg *Registry) Sweep() {
	now := reg.clock.Now()

	reg.mu.Lock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.Unlock()

	for _, code := range codes {
		reg.mu.Lock()
		r, still := reg.rooms[code]
		if !still {
			reg.mu.Unlock()
			continue
		}

		r.Mu.Lock()
		reason := ""
		if len(r.Players) == 0 && !r.EmptySince.IsZero() && now.Sub(r.EmptySince) >= reg.cfg.EmptyGracePeriod {
			reason = "empty past grace period"
		} else if now.Sub(r.LastActivity) >= reg.cfg.InactivityTimeout {
			reason = "inactive past timeout"
		}
		if reason == "" {
			r.Mu.Unlock()
			reg.mu.Unlock()
			continue
		}
		members := make([]*Conn, 0, len(r.Players))
		for _, p := range r.Players {
			members = append(members, p.Conn)
		}
		r.BroadcastAllUnsafe(events.Msg{"type": "room_closed", "code": r.Code})
		r.Mu.Unlock()

		delete(reg.rooms, code)
		for _, c := range members {
			if reg.byConn[c.ID] == code {
				delete(reg.byConn, c.ID)
			}
		}
		callbacks := append([]func(string){}, reg.onDelete...)
		reg.mu.Unlock()

		for _, fn := range callbacks {
			fn(code)
		}
		// Members still attached to a swept room are stale sockets; drop
		// them after the room_closed frame is queued.
		for _, c := range members {
			if c.Cancel != nil {
				c.Cancel()
			}
		}
		reg.log.WithFields(logrus.Fields{"code": code, "reason": reason}).Info("room swept")
	}
}

// Run drives the periodic sweep until the context is cancelled.
func (reg *Registry) Run(ctx context.Context) {
	ticker := reg.clock.NewTicker(reg.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			reg.Sweep()
		}
	}
}
