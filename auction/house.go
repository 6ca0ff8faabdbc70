package auction

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
)

// DefaultBidTimeout is the inactivity window after which an auction
// becomes eligible for resolution.
const DefaultBidTimeout = 600 * time.Second

// Config carries the house's tunables. Zero values fall back to the
// defaults.
type Config struct {
	// BidTimeout is the per-auction inactivity window. It applies
	// uniformly to every auction the house manages.
	BidTimeout time.Duration

	// Clock supplies wall-clock time; tests inject a fake.
	Clock Clock

	// Log receives structured operation logs. Nil disables logging.
	Log *slog.Logger
}

// AuctionHouse owns every auction and serializes all state-changing
// operations behind a single lock, so any interleaving of concurrent
// calls observes a total order with no partial mutation.
type AuctionHouse struct {
	cap      fhe.Capability
	treasury Treasury
	clock    Clock
	timeout  time.Duration
	log      *slog.Logger

	// authority is the house's own identity: the only party ever granted
	// decryption of leader-index handles.
	authorityKey crypto.PrivateKey
	authority    crypto.PublicKey

	mu       sync.RWMutex
	auctions []*auctionState
	events   []Event
	sinks    []EventSink
}

// NewAuctionHouse creates a house over the given capability and treasury.
// A fresh authority keypair is generated per instance; it never leaves
// the process.
func NewAuctionHouse(capability fhe.Capability, treasury Treasury, cfg Config) (*AuctionHouse, error) {
	if capability == nil {
		return nil, fmt.Errorf("capability cannot be nil")
	}
	if treasury == nil {
		return nil, fmt.Errorf("treasury cannot be nil")
	}

	authority, authorityKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating authority keypair: %w", err)
	}

	if cfg.BidTimeout <= 0 {
		cfg.BidTimeout = DefaultBidTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &AuctionHouse{
		cap:          capability,
		treasury:     treasury,
		clock:        cfg.Clock,
		timeout:      cfg.BidTimeout,
		log:          cfg.Log,
		authorityKey: authorityKey,
		authority:    authority,
	}, nil
}

// Authority returns the house's public identity.
func (h *AuctionHouse) Authority() crypto.PublicKey {
	return h.authority
}

// BidTimeout returns the configured inactivity window.
func (h *AuctionHouse) BidTimeout() time.Duration {
	return h.timeout
}

// AddSink registers an event sink. Sinks receive every event committed
// after registration, in order.
func (h *AuctionHouse) AddSink(sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// CreateAuction validates the listing and allocates the next sequential
// auction id, starting at 0. The signer becomes the seller. The start
// price doubles as the fixed settlement price; startTime must be in the
// future and is also the initial value of the inactivity clock.
func (h *AuctionHouse) CreateAuction(seller crypto.PublicKey, itemName string, startPrice uint64, startTime time.Time) (uint64, error) {
	if len(seller) == 0 {
		return 0, fmt.Errorf("%w: missing seller identity", ErrInvalidInput)
	}
	if itemName == "" {
		return 0, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}
	if startPrice == 0 {
		return 0, fmt.Errorf("%w: start price must be positive", ErrInvalidInput)
	}

	h.mu.Lock()
	now := h.clock.Now()
	if !startTime.After(now) {
		h.mu.Unlock()
		return 0, fmt.Errorf("%w: start time must be in the future", ErrInvalidInput)
	}

	id := uint64(len(h.auctions))
	a := &auctionState{
		id:          id,
		seller:      crypto.NewPublicKeyFromBytes(seller),
		itemName:    itemName,
		startPrice:  startPrice,
		startTime:   startTime,
		lastBidTime: startTime,
	}
	h.auctions = append(h.auctions, a)

	ev := newEvent(uint64(len(h.events)), EventAuctionCreated, id, now)
	ev.Created = &AuctionCreatedData{
		Seller:     a.seller.String(),
		ItemName:   itemName,
		StartPrice: startPrice,
		StartTime:  startTime,
	}
	h.events = append(h.events, ev)
	sinks := h.sinks
	h.mu.Unlock()

	h.log.Info("auction created", "id", id, "seller", a.seller.String(), "startPrice", startPrice)
	dispatch(sinks, ev)
	return id, nil
}

// PlaceBid admits an encrypted bid into the ledger. The proof is checked
// before anything is recorded; a valid bid advances the inactivity clock
// and folds into the encrypted leader state. The bidder keeps the right
// to decrypt their own submitted handle.
func (h *AuctionHouse) PlaceBid(bidder crypto.PublicKey, auctionID uint64, amount fhe.Handle, proof fhe.Proof) (int, time.Time, error) {
	h.mu.Lock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		h.mu.Unlock()
		return 0, time.Time{}, err
	}

	now := h.clock.Now()
	if a.status(now) != StatusActive {
		h.mu.Unlock()
		return 0, time.Time{}, fmt.Errorf("%w: auction %d is %s", ErrNotActive, auctionID, a.status(now))
	}
	if a.seller.Equal(bidder) {
		h.mu.Unlock()
		return 0, time.Time{}, fmt.Errorf("%w: seller cannot bid on own auction", ErrForbidden)
	}

	if err := h.cap.Verify(amount, proof); err != nil {
		h.mu.Unlock()
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEncryption, err)
	}

	// Fold the bid into the leader state before touching the ledger; a
	// capability failure must leave the auction unchanged.
	idx := len(a.bids)
	leader := a.leader
	if err := leader.applyBid(h.cap, h.authority, amount, idx); err != nil {
		h.mu.Unlock()
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEncryption, err)
	}

	if err := h.cap.Grant(amount, bidder); err != nil {
		h.mu.Unlock()
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEncryption, err)
	}

	a.leader = leader
	a.bids = append(a.bids, Bid{
		Bidder:    crypto.NewPublicKeyFromBytes(bidder),
		Amount:    amount,
		Timestamp: now,
	})
	a.lastBidTime = now

	ev := newEvent(uint64(len(h.events)), EventBidPlaced, auctionID, now)
	ev.Bid = &BidPlacedData{
		Bidder:    a.bids[idx].Bidder.String(),
		Timestamp: now,
	}
	h.events = append(h.events, ev)
	sinks := h.sinks
	h.mu.Unlock()

	h.log.Info("bid placed", "auction", auctionID, "bidder", ev.Bid.Bidder, "index", idx)
	dispatch(sinks, ev)
	return idx, now, nil
}

// CheckAuctionEnd opportunistically resolves a timed-out auction. Anyone
// may call it; it reports whether this call performed the resolution.
// Calling it on an already ended auction, or before the inactivity window
// elapses, is a no-op.
func (h *AuctionHouse) CheckAuctionEnd(auctionID uint64) (bool, error) {
	h.mu.Lock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}

	now := h.clock.Now()
	if a.ended || !a.timedOut(now, h.timeout) {
		h.mu.Unlock()
		return false, nil
	}

	ev, err := h.resolveLocked(a, now)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}
	sinks := h.sinks
	h.mu.Unlock()

	h.log.Info("auction resolved by timeout check", "auction", auctionID, "winner", ev.Ended.Winner)
	dispatch(sinks, ev)
	return true, nil
}

// EndAuction is the seller's resolution path. It applies the same
// inactivity rule as CheckAuctionEnd but fails loudly when called too
// early. Ending an already ended auction is a no-op.
func (h *AuctionHouse) EndAuction(caller crypto.PublicKey, auctionID uint64) error {
	h.mu.Lock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	if !a.seller.Equal(caller) {
		h.mu.Unlock()
		return fmt.Errorf("%w: only the seller may end the auction", ErrForbidden)
	}
	if a.ended {
		h.mu.Unlock()
		return nil
	}

	now := h.clock.Now()
	if !a.timedOut(now, h.timeout) {
		h.mu.Unlock()
		return fmt.Errorf("%w: wait for the bid timeout to elapse", ErrTooEarly)
	}

	ev, err := h.resolveLocked(a, now)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	sinks := h.sinks
	h.mu.Unlock()

	h.log.Info("auction ended by seller", "auction", auctionID, "winner", ev.Ended.Winner)
	dispatch(sinks, ev)
	return nil
}

// EmergencyStop cancels an active auction immediately, bypassing the
// timeout. It is the only resolution path that discards bids: the auction
// ends with no winner and a zero final price, and nothing is decrypted.
func (h *AuctionHouse) EmergencyStop(caller crypto.PublicKey, auctionID uint64) error {
	h.mu.Lock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	if !a.seller.Equal(caller) {
		h.mu.Unlock()
		return fmt.Errorf("%w: only the seller may stop the auction", ErrForbidden)
	}

	now := h.clock.Now()
	if a.status(now) != StatusActive {
		h.mu.Unlock()
		return fmt.Errorf("%w: auction %d is %s", ErrAlreadyEnded, auctionID, a.status(now))
	}

	a.ended = true
	a.endTime = now
	a.winner = nil
	a.finalPrice = 0

	ev := newEvent(uint64(len(h.events)), EventAuctionEnded, auctionID, now)
	ev.Ended = &AuctionEndedData{FinalPrice: 0}
	h.events = append(h.events, ev)
	sinks := h.sinks
	h.mu.Unlock()

	h.log.Warn("auction emergency-stopped", "auction", auctionID)
	dispatch(sinks, ev)
	return nil
}

// CompletePurchase settles a resolved auction. Only the winner may pay;
// the seller receives exactly the final price and any excess is refunded
// to the caller in the same atomic disbursement. A transfer failure
// aborts settlement, leaving the auction ended but unpaid for retry.
func (h *AuctionHouse) CompletePurchase(caller crypto.PublicKey, auctionID uint64, payment uint64) error {
	h.mu.Lock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		h.mu.Unlock()
		return err
	}

	if !a.ended {
		h.mu.Unlock()
		return fmt.Errorf("%w: auction %d has not ended", ErrNotEnded, auctionID)
	}
	if a.settled {
		h.mu.Unlock()
		return fmt.Errorf("%w: auction %d", ErrAlreadySettled, auctionID)
	}
	if a.winner == nil || !a.winner.Equal(caller) {
		h.mu.Unlock()
		return fmt.Errorf("%w", ErrNotWinner)
	}
	if payment < a.finalPrice {
		h.mu.Unlock()
		return fmt.Errorf("%w: need %d, got %d", ErrInsufficientPayment, a.finalPrice, payment)
	}

	payments := []Payment{{To: a.seller, Amount: a.finalPrice}}
	if excess := payment - a.finalPrice; excess > 0 {
		payments = append(payments, Payment{To: crypto.NewPublicKeyFromBytes(caller), Amount: excess})
	}
	if err := h.treasury.Disburse(payments); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	a.settled = true
	price := a.finalPrice
	h.mu.Unlock()

	h.log.Info("purchase completed", "auction", auctionID, "price", price)
	return nil
}

// resolveLocked performs the shared resolution rule: freeze the winner
// (via the single authorized decrypt of the leader index) and the
// contractual price, which is always the start price when a winner
// exists. Caller holds the write lock.
func (h *AuctionHouse) resolveLocked(a *auctionState, now time.Time) (Event, error) {
	var winner crypto.PublicKey
	if len(a.bids) > 0 {
		idx, err := a.leader.winnerIndex(h.cap, h.authority)
		if err != nil {
			return Event{}, fmt.Errorf("resolving winner: %w", err)
		}
		if idx < 0 || idx >= len(a.bids) {
			return Event{}, fmt.Errorf("resolving winner: leader index %d out of range", idx)
		}
		winner = a.bids[idx].Bidder
	}

	a.ended = true
	a.endTime = now
	a.winner = winner
	if winner != nil {
		a.finalPrice = a.startPrice
	}

	ev := newEvent(uint64(len(h.events)), EventAuctionEnded, a.id, now)
	ev.Ended = &AuctionEndedData{FinalPrice: a.finalPrice}
	if winner != nil {
		ev.Ended.Winner = winner.String()
	}
	h.events = append(h.events, ev)
	return ev, nil
}

func (h *AuctionHouse) lookupLocked(auctionID uint64) (*auctionState, error) {
	if auctionID >= uint64(len(h.auctions)) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, auctionID)
	}
	return h.auctions[auctionID], nil
}

func dispatch(sinks []EventSink, ev Event) {
	for _, sink := range sinks {
		sink.PublishEvent(ev)
	}
}

// GetAuction returns a point-in-time snapshot.
func (h *AuctionHouse) GetAuction(auctionID uint64) (Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		return Snapshot{}, err
	}
	return a.snapshot(h.clock.Now()), nil
}

// GetBidCount returns the number of accepted bids.
func (h *AuctionHouse) GetBidCount(auctionID uint64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		return 0, err
	}
	return len(a.bids), nil
}

// GetTotalAuctions returns how many auctions have ever been created.
func (h *AuctionHouse) GetTotalAuctions() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return uint64(len(h.auctions))
}

// GetHighestBid returns the opaque handle of the encrypted running
// maximum. Zero handle before the first bid.
func (h *AuctionHouse) GetHighestBid(auctionID uint64) (fhe.Handle, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, err := h.lookupLocked(auctionID)
	if err != nil {
		return fhe.ZeroHandle, err
	}
	return a.leader.highest, nil
}

// ListAuctions returns snapshots of every auction, ordered by id.
func (h *AuctionHouse) ListAuctions() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.clock.Now()
	out := make([]Snapshot, len(h.auctions))
	for i, a := range h.auctions {
		out[i] = a.snapshot(now)
	}
	return out
}

// Events returns the event history for one auction, in commit order.
func (h *AuctionHouse) Events(auctionID uint64) ([]Event, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, err := h.lookupLocked(auctionID); err != nil {
		return nil, err
	}

	var out []Event
	for _, ev := range h.events {
		if ev.AuctionID == auctionID {
			out = append(out, ev)
		}
	}
	return out, nil
}
