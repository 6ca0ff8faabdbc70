package auction

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the auction event stream.
type EventType string

const (
	EventAuctionCreated EventType = "auction_created"
	EventBidPlaced      EventType = "bid_placed"
	EventAuctionEnded   EventType = "auction_ended"
)

// AuctionCreatedData carries the creation event payload.
type AuctionCreatedData struct {
	Seller     string    `json:"seller"`
	ItemName   string    `json:"item_name"`
	StartPrice uint64    `json:"start_price"`
	StartTime  time.Time `json:"start_time"`
}

// BidPlacedData carries the bid acceptance payload. The amount is
// deliberately absent; only the fact of the bid is observable.
type BidPlacedData struct {
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionEndedData carries the resolution payload. Winner is empty when
// the auction ended without one.
type AuctionEndedData struct {
	Winner     string `json:"winner,omitempty"`
	FinalPrice uint64 `json:"final_price"`
}

// Event is one entry in the append-only, globally ordered event log.
// Exactly one of the payload fields is set, matching Type.
type Event struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	AuctionID uint64    `json:"auction_id"`
	Timestamp time.Time `json:"timestamp"`

	Created *AuctionCreatedData `json:"created,omitempty"`
	Bid     *BidPlacedData      `json:"bid,omitempty"`
	Ended   *AuctionEndedData   `json:"ended,omitempty"`
}

func newEvent(seq uint64, typ EventType, auctionID uint64, ts time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Seq:       seq,
		Type:      typ,
		AuctionID: auctionID,
		Timestamp: ts,
	}
}

// EventSink receives committed events. Sinks are invoked after the state
// transition is durable in the house; a slow or failing sink must not
// block or fail the write path, so implementations are expected to hand
// off quickly.
type EventSink interface {
	PublishEvent(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// PublishEvent implements EventSink.
func (f EventSinkFunc) PublishEvent(ev Event) { f(ev) }
