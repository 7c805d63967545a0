// internal/auction/coordinator.go
package auction

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/room"
)

// Coordinator owns every room's auction state. All mutation happens under
// the owning room's mutex; the coordinator's own lock only guards the state
// map, so auctions in different rooms never contend.
type Coordinator struct {
	mu     sync.Mutex
	states map[string]*State

	Rooms    *room.Registry
	Source   LotSource
	Settings Settings
	Clock    clockwork.Clock
	Log      *logrus.Logger
}

// NewCoordinator wires the coordinator and registers room-deletion cleanup
// so a swept room tears down its auction and any pending timer.
func NewCoordinator(rooms *room.Registry, source LotSource, settings Settings, clock clockwork.Clock, log *logrus.Logger) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Coordinator{
		states:   make(map[string]*State),
		Rooms:    rooms,
		Source:   source,
		Settings: settings,
		Clock:    clock,
		Log:      log,
	}
	rooms.OnDelete(c.Drop)
	return c
}

func (c *Coordinator) state(code string) *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[code]
}

// Drop discards a room's auction state and cancels any pending advance.
// Safe to call for rooms that never started an auction.
func (c *Coordinator) Drop(code string) {
	c.mu.Lock()
	st := c.states[code]
	delete(c.states, code)
	c.mu.Unlock()
	if st != nil && st.advanceTimer != nil {
		st.advanceTimer.Stop()
	}
}

// StateFor returns the live auction state for a room, if any.
func (c *Coordinator) StateFor(code string) (*State, bool) {
	st := c.state(code)
	return st, st != nil
}

// Start opens the auction: host only, auction rooms only, once per room.
// The lot queue is fetched before the room lock is taken so the external
// lookup never blocks other room traffic.
func (c *Coordinator) Start(ctx context.Context, code string, connID uuid.UUID) error {
	if st := c.state(code); st != nil {
		return ErrAuctionRunning
	}

	lots, err := c.Source.Lots(ctx)
	if err != nil {
		return err
	}

	r, ok := c.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Mode != room.ModeAuction {
		return ErrNotAuctionRoom
	}
	if r.HostConn != connID {
		return ErrNotHost
	}

	c.mu.Lock()
	if _, exists := c.states[code]; exists {
		c.mu.Unlock()
		return ErrAuctionRunning
	}
	st := &State{
		Phase:  PhaseWaiting,
		Queue:  lots,
		Passed: make(map[string]bool),
		Teams:  make(map[string]*Team),
	}
	for _, p := range r.Players {
		st.Teams[p.Side] = &Team{Side: p.Side, Purse: c.Settings.Purse}
	}
	c.states[code] = st
	c.mu.Unlock()

	c.Log.WithFields(logrus.Fields{"code": code, "lots": len(lots)}).Info("auction started")
	r.TouchUnsafe(c.Clock.Now())
	c.advanceUnsafe(r, st)
	return nil
}

// PlaceBid applies one raise. The amount must sit exactly on the ladder, the
// side's purse must cover the bid while still affording the floor price for
// every remaining mandatory slot, and the squad must be under the cap. A
// rejected bid changes nothing.
func (c *Coordinator) PlaceBid(code string, connID uuid.UUID, amount int) error {
	r, ok := c.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := c.state(code)
	if st == nil {
		return ErrNoAuction
	}
	if st.Phase != PhaseBidding {
		return ErrBadPhase
	}
	p := r.PlayerByConnUnsafe(connID)
	if p == nil {
		return ErrWrongSide
	}
	team := st.Teams[p.Side]
	if team == nil {
		return ErrWrongSide
	}

	required := st.CurrentLot.BasePrice
	if st.CurrentBidderSide != "" {
		required = st.CurrentBid + Increment(st.CurrentBid)
	}
	if amount != required {
		return ErrBidOffLadder
	}
	if len(team.Squad) >= c.Settings.SquadCap {
		return ErrSquadFull
	}
	mandatoryLeft := c.Settings.SquadMin - len(team.Squad) - 1
	if mandatoryLeft < 0 {
		mandatoryLeft = 0
	}
	if team.Purse-amount < c.Settings.FloorPrice*mandatoryLeft {
		return ErrInsufficientPurse
	}

	st.CurrentBid = amount
	st.CurrentBidderSide = p.Side
	st.BidHistory = append(st.BidHistory, Bid{Side: p.Side, Amount: amount, At: c.Clock.Now().Unix()})
	delete(st.Passed, p.Side)
	r.TouchUnsafe(c.Clock.Now())
	c.broadcastUnsafe(r, st)
	return nil
}

// Pass records a side bowing out of the active lot. When every side has
// passed with no bid on the board, the lot resolves unsold immediately.
func (c *Coordinator) Pass(code string, connID uuid.UUID) error {
	r, ok := c.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := c.state(code)
	if st == nil {
		return ErrNoAuction
	}
	if st.Phase != PhaseBidding {
		return ErrBadPhase
	}
	p := r.PlayerByConnUnsafe(connID)
	if p == nil {
		return ErrWrongSide
	}
	if _, ok := st.Teams[p.Side]; !ok {
		return ErrWrongSide
	}

	st.Passed[p.Side] = true
	r.TouchUnsafe(c.Clock.Now())

	if st.CurrentBidderSide == "" && len(st.Passed) == len(st.Teams) {
		c.resolveUnsafe(r, st)
		return nil
	}
	c.broadcastUnsafe(r, st)
	return nil
}

// ResolveTimer settles the active lot when the bidding window runs out.
// Only the host triggers this; the lot goes to the highest bidder, or to the
// set-aside unsold list if nobody bid.
func (c *Coordinator) ResolveTimer(code string, connID uuid.UUID) error {
	r, ok := c.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := c.state(code)
	if st == nil {
		return ErrNoAuction
	}
	if r.HostConn != connID {
		return ErrNotHost
	}
	if st.Phase != PhaseBidding {
		return ErrBadPhase
	}

	r.TouchUnsafe(c.Clock.Now())
	c.resolveUnsafe(r, st)
	return nil
}

// NextLot lets the host move off the sold screen without waiting out the
// full advance delay.
func (c *Coordinator) NextLot(code string, connID uuid.UUID) error {
	r, ok := c.Rooms.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := c.state(code)
	if st == nil {
		return ErrNoAuction
	}
	if r.HostConn != connID {
		return ErrNotHost
	}
	if st.Phase != PhaseSold {
		return ErrBadPhase
	}

	if st.advanceTimer != nil {
		st.advanceTimer.Stop()
		st.advanceTimer = nil
	}
	st.timerGen++
	r.TouchUnsafe(c.Clock.Now())
	c.advanceUnsafe(r, st)
	return nil
}

// resolveUnsafe settles the current lot, moves to sold, and schedules the
// delayed advance. Assumes the room lock is held.
func (c *Coordinator) resolveUnsafe(r *room.Room, st *State) {
	lot := *st.CurrentLot
	if st.CurrentBidderSide == "" {
		st.Unsold = append(st.Unsold, lot)
		c.Log.WithFields(logrus.Fields{"code": r.Code, "lot": lot.ID}).Info("lot unsold")
	} else {
		team := st.Teams[st.CurrentBidderSide]
		team.Purse -= st.CurrentBid
		team.Squad = append(team.Squad, Acquisition{Lot: lot, Price: st.CurrentBid})
		c.Log.WithFields(logrus.Fields{
			"code":  r.Code,
			"lot":   lot.ID,
			"side":  st.CurrentBidderSide,
			"price": st.CurrentBid,
		}).Info("lot sold")
	}

	st.Phase = PhaseSold
	c.broadcastUnsafe(r, st)
	c.scheduleAdvanceUnsafe(r, st)
}

// scheduleAdvanceUnsafe arms the sold-screen timer. The generation counter
// makes a timer that outlives its lot (or its room) fire as a no-op.
func (c *Coordinator) scheduleAdvanceUnsafe(r *room.Room, st *State) {
	st.timerGen++
	gen := st.timerGen
	code := r.Code
	st.advanceTimer = c.Clock.AfterFunc(c.Settings.AdvanceDelay, func() {
		c.advanceAfterDelay(code, gen)
	})
}

// advanceAfterDelay is the timer callback. The room may have been swept and
// the auction dropped while the timer was pending, so everything is
// re-checked before any state is touched.
func (c *Coordinator) advanceAfterDelay(code string, gen int) {
	r, ok := c.Rooms.Get(code)
	if !ok {
		return
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := c.state(code)
	if st == nil || st.timerGen != gen || st.Phase != PhaseSold {
		return
	}
	st.advanceTimer = nil
	c.advanceUnsafe(r, st)
}

// advanceUnsafe opens the next lot, re-queues the unsold list once at the
// flattened accelerated base price when the main queue runs dry, or
// completes the auction when both are empty. Assumes the room lock is held.
func (c *Coordinator) advanceUnsafe(r *room.Room, st *State) {
	if len(st.Queue) == 0 && len(st.Unsold) > 0 && !st.accelerated {
		requeued := make([]Lot, 0, len(st.Unsold))
		for _, lot := range st.Unsold {
			lot.BasePrice = c.Settings.AcceleratedBase
			requeued = append(requeued, lot)
		}
		st.Queue = requeued
		st.Unsold = nil
		st.accelerated = true
		c.Log.WithFields(logrus.Fields{"code": r.Code, "lots": len(requeued)}).Info("accelerated pass queued")
	}

	if len(st.Queue) == 0 {
		st.Phase = PhaseComplete
		st.CurrentLot = nil
		st.CurrentBidderSide = ""
		st.BidHistory = nil
		c.broadcastUnsafe(r, st)
		c.Log.WithField("code", r.Code).Info("auction complete")
		return
	}

	lot := st.Queue[0]
	st.Queue = st.Queue[1:]
	st.CurrentLot = &lot
	st.CurrentBid = lot.BasePrice
	st.CurrentBidderSide = ""
	st.BidHistory = nil
	st.Passed = make(map[string]bool)
	st.Phase = PhaseBidding
	c.broadcastUnsafe(r, st)
}

// broadcastUnsafe fans the full auction state out to the room. The payload
// is a copy: outbound frames are marshaled by the write pumps after the room
// lock is released. Assumes the room lock is held.
func (c *Coordinator) broadcastUnsafe(r *room.Room, st *State) {
	r.BroadcastAllUnsafe(events.Msg{
		"type": "auction_state",
		"code": r.Code,
		// The bidding window is host-driven; this tells clients what
		// countdown to render.
		"bid_timer_ms": c.Settings.BidTimer.Milliseconds(),
		"auction":      st.snapshotUnsafe(),
	})
}

// snapshotUnsafe returns a detached copy of the broadcastable state.
// Assumes the room lock is held.
func (st *State) snapshotUnsafe() State {
	out := State{
		Phase:             st.Phase,
		Queue:             append([]Lot(nil), st.Queue...),
		Unsold:            append([]Lot(nil), st.Unsold...),
		CurrentBid:        st.CurrentBid,
		CurrentBidderSide: st.CurrentBidderSide,
		BidHistory:        append([]Bid(nil), st.BidHistory...),
		Passed:            make(map[string]bool, len(st.Passed)),
		Teams:             make(map[string]*Team, len(st.Teams)),
	}
	if st.CurrentLot != nil {
		lot := *st.CurrentLot
		out.CurrentLot = &lot
	}
	for side, passed := range st.Passed {
		out.Passed[side] = passed
	}
	for side, team := range st.Teams {
		out.Teams[side] = &Team{
			Side:  team.Side,
			Purse: team.Purse,
			Squad: append([]Acquisition(nil), team.Squad...),
		}
	}
	return out
}
