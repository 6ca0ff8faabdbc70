// Package auction implements the sealed-bid auction core: the lifecycle
// state machine, the per-auction bid ledger, encrypted leader tracking,
// and post-resolution settlement.
//
// Bid amounts are never visible to this package. Each accepted bid is an
// opaque handle from the fhe capability; the running maximum and the
// identity of the leading bidder are maintained through encrypted
// comparison and conditional selection, and the single decryption in an
// auction's life reveals only the ledger index of the winning bid, at
// resolution time, to the auction authority.
//
// The AuctionHouse serializes every state-changing operation behind one
// lock, giving the total order and all-or-nothing semantics the rest of
// the system assumes. Read-only queries return point-in-time snapshots.
//
// Auctions resolve on inactivity: once BidTimeout elapses after the last
// accepted bid (or after startTime if no bid arrived), anyone may trigger
// resolution. The contractual settlement price is always the start price;
// bids only pick the winner.
package auction
