// internal/room/actions.go
package room

import (
	"github.com/google/uuid"

	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/validate"
)

// SetReady flips a member's ready flag and broadcasts the room state with an
// all-ready marker.
func (reg *Registry) SetReady(connID uuid.UUID, ready bool) error {
	r, ok := reg.RoomByConn(connID)
	if !ok {
		return ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.PlayerByConnUnsafe(connID)
	if p == nil {
		return ErrRoomNotFound
	}
	if p.Ready == ready {
		return nil
	}
	p.Ready = ready
	r.TouchUnsafe(reg.clock.Now())

	allReady := len(r.Players) >= 2
	for _, member := range r.Players {
		if !member.Ready {
			allReady = false
			break
		}
	}
	payload := r.StatePayloadUnsafe()
	payload["all_ready"] = allReady
	r.BroadcastAllUnsafe(payload)
	return nil
}

// UpdateTeam records a member's franchise selection and roster, then
// broadcasts the room state. The roster has already passed validation.
func (reg *Registry) UpdateTeam(connID uuid.UUID, franchise string, roster []validate.RosterEntry) error {
	r, ok := reg.RoomByConn(connID)
	if !ok {
		return ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.PlayerByConnUnsafe(connID)
	if p == nil {
		return ErrRoomNotFound
	}
	p.Franchise = franchise
	p.Roster = roster
	r.TouchUnsafe(reg.clock.Now())
	r.BroadcastAllUnsafe(r.StatePayloadUnsafe())
	return nil
}

// Chat relays a validated chat line to every member of the sender's room.
func (reg *Registry) Chat(connID uuid.UUID, msg string) error {
	r, ok := reg.RoomByConn(connID)
	if !ok {
		return ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.PlayerByConnUnsafe(connID)
	if p == nil {
		return ErrRoomNotFound
	}
	r.TouchUnsafe(reg.clock.Now())
	r.BroadcastAllUnsafe(events.Msg{
		"type": "chat",
		"side": p.Side,
		"name": p.Conn.Name,
		"msg":  msg,
		"ts":   reg.clock.Now().Unix(),
	})
	return nil
}
