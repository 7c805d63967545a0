// internal/auction/types.go

// Package auction drives the per-room bidding state machine: lot queue,
// increment ladder, purse accounting, and timer-driven resolution.
package auction

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// Phase is the auction state machine position.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseBidding  Phase = "bidding"
	PhaseSold     Phase = "sold"
	PhaseComplete Phase = "complete"
)

var (
	ErrNotHost           = errors.New("only the host drives auction phases")
	ErrWrongSide         = errors.New("cannot bid on behalf of another side")
	ErrBadPhase          = errors.New("action not valid in current auction phase")
	ErrNoAuction         = errors.New("no auction running in this room")
	ErrAuctionRunning    = errors.New("auction already running")
	ErrBidOffLadder      = errors.New("bid must sit exactly on the increment ladder")
	ErrInsufficientPurse = errors.New("insufficient purse for bid and remaining mandatory slots")
	ErrSquadFull         = errors.New("squad has reached the roster cap")
	ErrNotAuctionRoom    = errors.New("room mode is not auction")
)

// Lot is a single player up for bid.
type Lot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	BasePrice int    `json:"basePrice"`
}

// Bid is one accepted raise in the active lot's history.
type Bid struct {
	Side   string `json:"side"`
	Amount int    `json:"amount"`
	At     int64  `json:"at"`
}

// Acquisition records one lot won by a side at its hammer price.
type Acquisition struct {
	Lot   Lot `json:"lot"`
	Price int `json:"price"`
}

// Team is one side's purse and acquired squad. Purse never goes negative and
// the squad never exceeds the cap; both are enforced at bid time.
type Team struct {
	Side  string        `json:"side"`
	Purse int           `json:"purse"`
	Squad []Acquisition `json:"squad"`
}

// State is the full per-room auction state, created at auction start and
// destroyed with the room.
type State struct {
	Phase             Phase            `json:"phase"`
	Queue             []Lot            `json:"queue"`
	Unsold            []Lot            `json:"unsold"`
	CurrentLot        *Lot             `json:"currentLot,omitempty"`
	CurrentBid        int              `json:"currentBid"`
	CurrentBidderSide string           `json:"currentBidderSide,omitempty"`
	BidHistory        []Bid            `json:"bidHistory"`
	Passed            map[string]bool  `json:"passed"`
	Teams             map[string]*Team `json:"teams"`

	// accelerated is set once the unsold list has been re-queued at the
	// flattened base price; there is only ever one accelerated pass.
	accelerated bool

	// advanceTimer is the pending sold-screen advance; timerGen guards
	// against a stale timer firing after the lot already moved on.
	advanceTimer clockwork.Timer
	timerGen     int
}

// Settings are the fixed economics of an auction.
type Settings struct {
	Purse           int           // starting budget per side
	SquadCap        int           // hard maximum acquisitions per side
	SquadMin        int           // mandatory minimum a side must be able to fill
	FloorPrice      int           // cheapest possible price per remaining mandatory slot
	AcceleratedBase int           // flattened base price for the accelerated pass
	AdvanceDelay    time.Duration // pause on the sold screen before the next lot
	BidTimer        time.Duration // advisory bidding window clients render per lot
}

// DefaultSettings mirrors a standard franchise auction: a 1000-unit purse,
// eleven mandatory slots, floor price of 5.
func DefaultSettings() Settings {
	return Settings{
		Purse:           1000,
		SquadCap:        18,
		SquadMin:        11,
		FloorPrice:      5,
		AcceleratedBase: 20,
		AdvanceDelay:    4 * time.Second,
		BidTimer:        15 * time.Second,
	}
}

// LotSource supplies the lot queue at auction start. The players package
// implements this against the external player-data proxy.
type LotSource interface {
	Lots(ctx context.Context) ([]Lot, error)
}

// LotSourceFunc adapts a plain function to a LotSource.
type LotSourceFunc func(ctx context.Context) ([]Lot, error)

func (f LotSourceFunc) Lots(ctx context.Context) ([]Lot, error) { return f(ctx) }
