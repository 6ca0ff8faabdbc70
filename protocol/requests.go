package protocol

import (
	"github.com/RobertxMiller/SafeBid/fhe"
)

// CreateAuctionRequest opens a new auction. The signer becomes the seller.
type CreateAuctionRequest struct {
	ItemName   string `json:"item_name"`
	StartPrice uint64 `json:"start_price"`
	// StartTime is a Unix timestamp in seconds; bids are accepted from
	// this instant on.
	StartTime int64 `json:"start_time"`
}

// PlaceBidRequest submits an encrypted bid. The signer is the bidder.
type PlaceBidRequest struct {
	AuctionID uint64     `json:"auction_id"`
	Amount    fhe.Handle `json:"amount"`
	Proof     fhe.Proof  `json:"proof"`
}

// EndAuctionRequest resolves an auction after the inactivity timeout.
// Seller-only.
type EndAuctionRequest struct {
	AuctionID uint64 `json:"auction_id"`
}

// EmergencyStopRequest cancels an active auction with no winner.
// Seller-only.
type EmergencyStopRequest struct {
	AuctionID uint64 `json:"auction_id"`
}

// CompletePurchaseRequest settles a resolved auction. The signer must be
// the winner; Payment is the attached plaintext amount.
type CompletePurchaseRequest struct {
	AuctionID uint64 `json:"auction_id"`
	Payment   uint64 `json:"payment"`
}

// CreateAuctionResponse carries the assigned auction id.
type CreateAuctionResponse struct {
	AuctionID uint64 `json:"auction_id"`
}

// PlaceBidResponse acknowledges an accepted bid.
type PlaceBidResponse struct {
	AuctionID uint64 `json:"auction_id"`
	BidIndex  int    `json:"bid_index"`
	// Timestamp is the acceptance time as a Unix timestamp in seconds.
	Timestamp int64 `json:"timestamp"`
}

// CheckEndResponse reports whether the call resolved the auction.
type CheckEndResponse struct {
	Resolved bool `json:"resolved"`
}

// ErrorResponse is the JSON error body for failed operations. Code is the
// stable error identifier from the auction package taxonomy.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncryptRequest asks the service's development encrypt endpoint to seal
// a plaintext bid for the given owner. Production clients encrypt against
// the capability's own public parameters instead.
type EncryptRequest struct {
	Plain uint32 `json:"plain"`
	Owner string `json:"owner"`
}

// EncryptResponse returns the sealed handle and its validity proof.
type EncryptResponse struct {
	Handle fhe.Handle `json:"handle"`
	Proof  fhe.Proof  `json:"proof"`
}
