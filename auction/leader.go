package auction

import (
	"fmt"

	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
)

// leaderState tracks, without any plaintext comparison, the encrypted
// running maximum bid and the encrypted ledger index of the bid holding
// it. The index - not the amount - is what resolution decrypts to name
// the winner.
type leaderState struct {
	// highest is the encrypted running maximum. Monotonically
	// non-decreasing under the capability's ordering; zero handle until
	// the first bid.
	highest fhe.Handle

	// leaderIdx is the encrypted index into the bid ledger of the
	// currently leading bid. Decryptable only by the auction authority,
	// and only read at resolution.
	leaderIdx fhe.Handle
}

// applyBid folds an accepted bid into the leader state. All capability
// operations complete before any field is assigned, so a failure leaves
// the state untouched.
//
// The comparison result is itself encrypted, so the leading identity
// cannot be updated with a plaintext branch. Instead both the maximum and
// the leader index are swapped through Select under the same encrypted
// condition; a strictly higher bid carries its index along with its
// amount, and an equal or lower bid leaves both unchanged.
func (l *leaderState) applyBid(cap fhe.Capability, authority crypto.PublicKey, amount fhe.Handle, idx int) error {
	if l.highest.IsZero() {
		// First bid seeds the maximum directly and owns index 0.
		encIdx, _, err := cap.Encrypt(uint32(idx), authority)
		if err != nil {
			return fmt.Errorf("encrypting leader index: %w", err)
		}
		l.highest = amount
		l.leaderIdx = encIdx
		return nil
	}

	isHigher, err := cap.GreaterThan(amount, l.highest)
	if err != nil {
		return fmt.Errorf("comparing bid to running maximum: %w", err)
	}

	newHighest, err := cap.Select(isHigher, amount, l.highest)
	if err != nil {
		return fmt.Errorf("selecting running maximum: %w", err)
	}

	encIdx, _, err := cap.Encrypt(uint32(idx), authority)
	if err != nil {
		return fmt.Errorf("encrypting leader index: %w", err)
	}

	newLeader, err := cap.Select(isHigher, encIdx, l.leaderIdx)
	if err != nil {
		return fmt.Errorf("selecting leader index: %w", err)
	}

	l.highest = newHighest
	l.leaderIdx = newLeader
	return nil
}

// winnerIndex reveals the ledger index of the leading bid. Called exactly
// once, at resolution, by the house acting as the auction authority.
func (l *leaderState) winnerIndex(cap fhe.Capability, authority crypto.PublicKey) (int, error) {
	if l.leaderIdx.IsZero() {
		return 0, fmt.Errorf("no bids recorded")
	}

	// Select results carry no grants; authorize the authority before the
	// one decryption this auction will ever see.
	if err := cap.Grant(l.leaderIdx, authority); err != nil {
		return 0, fmt.Errorf("granting leader index: %w", err)
	}

	idx, err := cap.Decrypt(l.leaderIdx, authority)
	if err != nil {
		return 0, fmt.Errorf("decrypting leader index: %w", err)
	}
	return int(idx), nil
}
