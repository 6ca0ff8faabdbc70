package auction

import (
	"sync"

	"github.com/RobertxMiller/SafeBid/crypto"
)

// Payment is one balance movement in a settlement.
type Payment struct {
	To     crypto.PublicKey
	Amount uint64
}

// Treasury moves settlement funds. Disburse must apply all payments or
// none; a failed disbursement aborts the whole settlement operation.
type Treasury interface {
	Disburse(payments []Payment) error
	Balance(party crypto.PublicKey) uint64
}

// BalanceBook is the in-memory Treasury. Safe for concurrent use.
type BalanceBook struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewBalanceBook creates an empty balance book.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{balances: make(map[string]uint64)}
}

// Disburse credits every payment atomically.
func (b *BalanceBook) Disburse(payments []Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range payments {
		b.balances[p.To.String()] += p.Amount
	}
	return nil
}

// Balance returns the recorded balance for a party.
func (b *BalanceBook) Balance(party crypto.PublicKey) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[party.String()]
}
