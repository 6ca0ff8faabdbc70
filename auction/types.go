package auction

import (
	"time"

	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
)

// Status is the lifecycle phase of an auction.
type Status string

const (
	// StatusPending means the auction exists but its start time has not
	// been reached; bids are rejected.
	StatusPending Status = "pending"

	// StatusActive means the auction accepts bids.
	StatusActive Status = "active"

	// StatusEnded is terminal: resolved by timeout, by the seller, or
	// cancelled via emergency stop.
	StatusEnded Status = "ended"
)

// Bid is one accepted bid submission. Immutable once recorded; owned by
// the auction's ledger.
type Bid struct {
	Bidder    crypto.PublicKey `json:"bidder"`
	Amount    fhe.Handle       `json:"amount"`
	Timestamp time.Time        `json:"timestamp"`
}

// auctionState is the authoritative per-auction record. Mutated only by
// the house under its lock.
type auctionState struct {
	id         uint64
	seller     crypto.PublicKey
	itemName   string
	startPrice uint64
	startTime  time.Time

	bids        []Bid
	lastBidTime time.Time
	leader      leaderState

	ended      bool
	settled    bool
	endTime    time.Time
	winner     crypto.PublicKey // nil until resolved, nil forever if no bids
	finalPrice uint64
}

// status derives the lifecycle phase at the given instant.
func (a *auctionState) status(now time.Time) Status {
	switch {
	case a.ended:
		return StatusEnded
	case now.Before(a.startTime):
		return StatusPending
	default:
		return StatusActive
	}
}

// timedOut reports whether the inactivity window has elapsed.
func (a *auctionState) timedOut(now time.Time, timeout time.Duration) bool {
	return now.After(a.lastBidTime.Add(timeout))
}

// Snapshot is a point-in-time, read-only view of an auction. Identities
// are hex-encoded public keys; Winner is empty until resolution and stays
// empty if the auction ended without a winner.
type Snapshot struct {
	ID          uint64     `json:"id"`
	Seller      string     `json:"seller"`
	ItemName    string     `json:"item_name"`
	StartPrice  uint64     `json:"start_price"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      Status     `json:"status"`
	Winner      string     `json:"winner,omitempty"`
	FinalPrice  uint64     `json:"final_price"`
	BidCount    int        `json:"bid_count"`
	LastBidTime time.Time  `json:"last_bid_time"`
	Settled     bool       `json:"settled"`
	// HighestBid is the opaque handle of the encrypted running maximum;
	// zero before the first bid. It cannot be decrypted by observers.
	HighestBid fhe.Handle `json:"highest_bid,omitempty"`
}

// snapshot captures the auction's externally visible state at now.
func (a *auctionState) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		ID:          a.id,
		Seller:      a.seller.String(),
		ItemName:    a.itemName,
		StartPrice:  a.startPrice,
		StartTime:   a.startTime,
		Status:      a.status(now),
		FinalPrice:  a.finalPrice,
		BidCount:    len(a.bids),
		LastBidTime: a.lastBidTime,
		Settled:     a.settled,
		HighestBid:  a.leader.highest,
	}
	if a.ended {
		endTime := a.endTime
		s.EndTime = &endTime
	}
	if a.winner != nil {
		s.Winner = a.winner.String()
	}
	return s
}
