// internal/router/router.go

// Package router is the single entry point for inbound client events:
// admission control first, then validation, then the owning component, with
// every event class handled by an explicit match. Replies go only to the
// sender; broadcasts happen inside the components.
package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/auction"
	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/match"
	"github.com/anayv/crease/internal/ratelimit"
	"github.com/anayv/crease/internal/room"
	"github.com/anayv/crease/internal/validate"
)

// Router fans validated, rate-limited events out to the registry, the
// reconciler, and the auction coordinator.
type Router struct {
	Limiter    *ratelimit.Limiter
	Rooms      *room.Registry
	Reconciler *match.Reconciler
	Auctions   *auction.Coordinator
	Log        *logrus.Logger
}

func New(limiter *ratelimit.Limiter, rooms *room.Registry, rec *match.Reconciler, auc *auction.Coordinator, log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{Limiter: limiter, Rooms: rooms, Reconciler: rec, Auctions: auc, Log: log}
}

type createPayload struct {
	Mode string `json:"mode"`
}

type joinPayload struct {
	Code string `json:"code"`
}

type listPayload struct {
	Mode string `json:"mode,omitempty"`
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

type teamPayload struct {
	Franchise string                 `json:"franchise,omitempty"`
	Roster    []validate.RosterEntry `json:"roster,omitempty"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type statePayload struct {
	Score       int                    `json:"score"`
	Wickets     int                    `json:"wickets"`
	BallsBowled int                    `json:"ballsBowled"`
	Innings     int                    `json:"innings"`
	MatchOver   bool                   `json:"isMatchOver"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

type bidPayload struct {
	Amount int `json:"amount"`
}

// Dispatch handles one inbound frame for a connection and returns the reply
// for the sender, or nil when no reply is due (accepted broadcasty events,
// silently dropped stale updates).
func (rt *Router) Dispatch(ctx context.Context, conn *room.Conn, env events.Envelope) events.Msg {
	typ, known := events.Parse(env.Type)
	if !known {
		return errorMsg("unknown_event", "unrecognized event type")
	}

	if d := rt.Limiter.Allow(conn.ID, typ.RateClass()); !d.Allowed {
		return events.Msg{
			"type":         "rate_limited",
			"event":        typ.String(),
			"retryAfterMs": d.RetryAfter.Milliseconds(),
		}
	}

	switch typ {
	case events.TypeCreateRoom:
		return rt.createRoom(conn, env.Payload)
	case events.TypeJoinRoom:
		return rt.joinRoom(conn, env.Payload)
	case events.TypeLeaveRoom:
		rt.Rooms.Leave(conn.ID)
		return events.Msg{"type": "room_left"}
	case events.TypeListRooms:
		var p listPayload
		if err := decode(env.Payload, &p); err != nil {
			return errorMsg("validation", "malformed payload")
		}
		return events.Msg{"type": "room_list", "rooms": rt.Rooms.ListAvailable(p.Mode)}
	case events.TypeSetReady:
		var p readyPayload
		if err := decode(env.Payload, &p); err != nil {
			return errorMsg("validation", "malformed payload")
		}
		return rt.reply(typ, rt.Rooms.SetReady(conn.ID, p.Ready))
	case events.TypeTeamUpdate:
		return rt.teamUpdate(conn, env.Payload)
	case events.TypeChat:
		return rt.chat(conn, env.Payload)
	case events.TypeStateUpdate:
		return rt.stateUpdate(conn, env.Payload)
	case events.TypeAuctionStart:
		code, msg := rt.roomCodeFor(conn)
		if msg != nil {
			return msg
		}
		return rt.reply(typ, rt.Auctions.Start(ctx, code, conn.ID))
	case events.TypeBid:
		return rt.bid(conn, env.Payload)
	case events.TypePass:
		code, msg := rt.roomCodeFor(conn)
		if msg != nil {
			return msg
		}
		return rt.reply(typ, rt.Auctions.Pass(code, conn.ID))
	case events.TypeTimerExpiry:
		code, msg := rt.roomCodeFor(conn)
		if msg != nil {
			return msg
		}
		return rt.reply(typ, rt.Auctions.ResolveTimer(code, conn.ID))
	case events.TypeNextLot:
		code, msg := rt.roomCodeFor(conn)
		if msg != nil {
			return msg
		}
		return rt.reply(typ, rt.Auctions.NextLot(code, conn.ID))
	default:
		return errorMsg("unknown_event", "unrecognized event type")
	}
}

func (rt *Router) createRoom(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p createPayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	mode, err := validate.GameMode(p.Mode)
	if err != nil {
		return rejectMsg(err)
	}
	r, err := rt.Rooms.CreateRoom(room.Mode(mode), conn)
	if err != nil {
		return rt.roomErr(err)
	}
	return events.Msg{"type": "room_created", "code": r.Code, "side": "A", "mode": mode}
}

func (rt *Router) joinRoom(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p joinPayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	code, err := validate.RoomCode(p.Code)
	if err != nil {
		return rejectMsg(err)
	}
	_, side, err := rt.Rooms.Join(code, conn)
	if err != nil {
		return rt.roomErr(err)
	}
	return events.Msg{"type": "room_joined", "code": code, "side": side}
}

func (rt *Router) teamUpdate(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p teamPayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	roster, err := validate.Roster(p.Roster)
	if err != nil {
		return rejectMsg(err)
	}
	franchise := p.Franchise
	if franchise != "" {
		if franchise, err = validate.PlayerName(franchise); err != nil {
			return rejectMsg(err)
		}
	}
	return rt.reply(events.TypeTeamUpdate, rt.Rooms.UpdateTeam(conn.ID, franchise, roster))
}

func (rt *Router) chat(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p chatPayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	msg, err := validate.ChatMessage(p.Message)
	if err != nil {
		return rejectMsg(err)
	}
	return rt.reply(events.TypeChat, rt.Rooms.Chat(conn.ID, msg))
}

func (rt *Router) stateUpdate(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p statePayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	if err := validate.Snapshot(p.Score, p.Wickets, p.BallsBowled, p.Innings); err != nil {
		return rejectMsg(err)
	}
	code, msg := rt.roomCodeFor(conn)
	if msg != nil {
		return msg
	}
	snap := room.MatchSnapshot{
		Score:       p.Score,
		Wickets:     p.Wickets,
		BallsBowled: p.BallsBowled,
		Innings:     p.Innings,
		MatchOver:   p.MatchOver,
		Extra:       p.Extra,
	}
	err := rt.Reconciler.ProposeState(code, conn.ID, snap)
	if errors.Is(err, match.ErrStale) {
		// Out-of-order delivery from the one authoritative sender is
		// ordinary network jitter, not a user-facing failure.
		return nil
	}
	return rt.reply(events.TypeStateUpdate, err)
}

func (rt *Router) bid(conn *room.Conn, raw json.RawMessage) events.Msg {
	var p bidPayload
	if err := decode(raw, &p); err != nil {
		return errorMsg("validation", "malformed payload")
	}
	amount, err := validate.BidAmount(p.Amount)
	if err != nil {
		return rejectMsg(err)
	}
	code, msg := rt.roomCodeFor(conn)
	if msg != nil {
		return msg
	}
	return rt.reply(events.TypeBid, rt.Auctions.PlaceBid(code, conn.ID, amount))
}

// roomCodeFor resolves the sender's current room, replying with a not-found
// error when the connection is roomless.
func (rt *Router) roomCodeFor(conn *room.Conn) (string, events.Msg) {
	r, ok := rt.Rooms.RoomByConn(conn.ID)
	if !ok {
		return "", errorMsg("not_found", "not in a room")
	}
	return r.Code, nil
}

// reply maps a component error to the sender's reply; nil means the event
// was applied and its effects were broadcast.
func (rt *Router) reply(typ events.Type, err error) events.Msg {
	if err == nil {
		return nil
	}
	return rt.componentErr(typ, err)
}

func (rt *Router) roomErr(err error) events.Msg {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return errorMsg("not_found", "room not found")
	case errors.Is(err, room.ErrRoomFull):
		return errorMsg("capacity", "room is full")
	case errors.Is(err, room.ErrNoSideAvailable):
		return errorMsg("capacity", "no side available")
	case errors.Is(err, room.ErrAlreadyInRoom):
		return errorMsg("conflict", "already in a room")
	case errors.Is(err, room.ErrCodeSpaceExhausted):
		// Generation exhaustion is a service-level failure; the caller
		// just gets "try again".
		return errorMsg("unavailable", "could not allocate a room code, try again")
	default:
		return errorMsg("internal", "internal error")
	}
}

func (rt *Router) componentErr(typ events.Type, err error) events.Msg {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return errorMsg("not_found", "room not found")
	case errors.Is(err, match.ErrNotHost), errors.Is(err, auction.ErrNotHost):
		return errorMsg("authorization", "host-only action")
	case errors.Is(err, auction.ErrWrongSide):
		return errorMsg("authorization", "cannot act for another side")
	case errors.Is(err, auction.ErrBadPhase), errors.Is(err, auction.ErrNoAuction),
		errors.Is(err, auction.ErrAuctionRunning), errors.Is(err, auction.ErrNotAuctionRoom):
		return errorMsg("conflict", err.Error())
	case errors.Is(err, auction.ErrBidOffLadder):
		return errorMsg("validation", err.Error())
	case errors.Is(err, auction.ErrInsufficientPurse), errors.Is(err, auction.ErrSquadFull):
		return errorMsg("capacity", err.Error())
	default:
		rt.Log.WithFields(logrus.Fields{"event": typ.String(), "error": err}).Warn("unmapped component error")
		return errorMsg("internal", "internal error")
	}
}

func decode(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

func errorMsg(code, message string) events.Msg {
	return events.Msg{"type": "error", "code": code, "message": message}
}

// rejectMsg renders a validation failure for the sender.
func rejectMsg(err error) events.Msg {
	return errorMsg("validation", err.Error())
}
