package domain

import (
	"time"
)

// Auction is the durable record for a single sealed-bid auction.
// Bids is keyed by bidder identity: one live bid per bidder, a later
// bid from the same identity replaces the earlier one.
type Auction struct {
	ID           uint64
	Owner        string
	Title        string
	Description  string
	ReservePrice int64
	StartTime    time.Time
	EndTime      time.Time
	State        AuctionState
	Bids         map[string]Bid
	Outcome      *Outcome
}

// Bid is a bidder's private valuation. PlacedAt is used only as a
// settlement tie-break, never for display ordering.
type Bid struct {
	Bidder   string
	Amount   int64
	PlacedAt time.Time
}

// Outcome is written exactly once when an auction ends. An empty
// Winner means the auction closed without a qualifying bid.
type Outcome struct {
	Winner string `json:"winner"`
	Price  int64  `json:"price"`
}

func (o Outcome) HasWinner() bool {
	return o.Winner != ""
}

type AuctionState int

const (
	StateActive AuctionState = iota
	StateEnded
)

func (s AuctionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Expired reports whether the bidding window has elapsed. An expired
// auction stays in StateActive until its owner settles it.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Clone returns a deep copy so store snapshots never alias live records.
func (a *Auction) Clone() *Auction {
	cp := *a
	if a.Bids != nil {
		cp.Bids = make(map[string]Bid, len(a.Bids))
		for bidder, bid := range a.Bids {
			cp.Bids[bidder] = bid
		}
	}
	if a.Outcome != nil {
		outcome := *a.Outcome
		cp.Outcome = &outcome
	}
	return &cp
}

type LifecycleEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AuctionID uint64    `json:"auction_id"`
	Owner     string    `json:"owner,omitempty"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventType string

const (
	AuctionCreated EventType = "auction_created"
	AuctionEnded   EventType = "auction_ended"
)
