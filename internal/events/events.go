// internal/events/events.go
package events

import "encoding/json"

// Type enumerates every inbound event the service understands. Inbound frames
// carry a string tag which is parsed into this enum before dispatch, so an
// unrecognized tag is rejected up front instead of silently falling through a
// string-keyed handler table.
type Type int

const (
	TypeUnknown Type = iota
	TypeCreateRoom
	TypeJoinRoom
	TypeLeaveRoom
	TypeListRooms
	TypeSetReady
	TypeTeamUpdate
	TypeChat
	TypeStateUpdate
	TypeAuctionStart
	TypeBid
	TypePass
	TypeTimerExpiry
	TypeNextLot
)

var typeNames = map[Type]string{
	TypeCreateRoom:   "create_room",
	TypeJoinRoom:     "join_room",
	TypeLeaveRoom:    "leave_room",
	TypeListRooms:    "list_rooms",
	TypeSetReady:     "set_ready",
	TypeTeamUpdate:   "team_update",
	TypeChat:         "chat",
	TypeStateUpdate:  "state_update",
	TypeAuctionStart: "auction_start",
	TypeBid:          "bid",
	TypePass:         "pass",
	TypeTimerExpiry:  "timer_expiry",
	TypeNextLot:      "next_lot",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// Parse maps a wire tag to its event type. The second return is false for
// tags this service does not speak.
func Parse(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// Class groups event types for rate-limiting purposes. Several wire events
// share one admission budget (all auction actions count against "bid", all
// lobby mutations against "room_action").
type Class string

const (
	ClassCreate     Class = "create"
	ClassJoin       Class = "join"
	ClassRoomAction Class = "room_action"
	ClassChat       Class = "chat"
	ClassState      Class = "state"
	ClassBid        Class = "bid"
	ClassList       Class = "list"
)

// RateClass returns the admission-control class for the event type.
func (t Type) RateClass() Class {
	switch t {
	case TypeCreateRoom:
		return ClassCreate
	case TypeJoinRoom:
		return ClassJoin
	case TypeLeaveRoom, TypeSetReady, TypeTeamUpdate:
		return ClassRoomAction
	case TypeChat:
		return ClassChat
	case TypeStateUpdate:
		return ClassState
	case TypeAuctionStart, TypeBid, TypePass, TypeTimerExpiry, TypeNextLot:
		return ClassBid
	case TypeListRooms:
		return ClassList
	default:
		return Class(t.String())
	}
}

// Envelope is the wire shape of every inbound frame: a type tag plus a
// type-specific payload left raw until the dispatcher knows how to decode it.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Msg is an outbound message. Kept as a loose map so broadcast payloads can
// be assembled in place, matching the frame shape clients already consume.
type Msg = map[string]interface{}
