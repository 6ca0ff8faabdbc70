package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/RobertxMiller/SafeBid/auction"
	"github.com/RobertxMiller/SafeBid/crypto"
)

// FakeClock is a manually advanced clock for deterministic timeout tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at the given instant.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to an absolute instant.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// MustGenerateKey returns a fresh keypair, failing the test on error.
func MustGenerateKey(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()

	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return pub, priv
}

// EventRecorder is an auction.EventSink that records everything it
// receives, in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []auction.Event
}

// PublishEvent implements auction.EventSink.
func (r *EventRecorder) PublishEvent(ev auction.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []auction.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auction.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching the given type.
func (r *EventRecorder) OfType(typ auction.EventType) []auction.Event {
	var out []auction.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
