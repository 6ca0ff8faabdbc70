package auction_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertxMiller/SafeBid/auction"
	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
	"github.com/RobertxMiller/SafeBid/testutil"
)

// resolveWithWinner drives an auction to Ended with the given bidder as
// winner and returns the auction id.
func resolveWithWinner(t *testing.T, f *houseFixture, startPrice uint64, winner crypto.PublicKey) uint64 {
	t.Helper()

	id := f.createActive(t, startPrice)
	f.bid(t, id, winner, 500)
	f.clock.Advance(601 * time.Second)
	resolved, err := f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	require.True(t, resolved)
	return id
}

func TestCompletePurchase_Preconditions(t *testing.T) {
	f := newHouseFixture(t)
	winner, _ := testutil.MustGenerateKey(t)
	stranger, _ := testutil.MustGenerateKey(t)

	// Unknown auction.
	err := f.house.CompletePurchase(winner, 9, 10)
	assert.ErrorIs(t, err, auction.ErrNotFound)

	// Not ended yet.
	active := f.createActive(t, 10)
	err = f.house.CompletePurchase(winner, active, 10)
	assert.ErrorIs(t, err, auction.ErrNotEnded)

	id := resolveWithWinner(t, f, 10, winner)

	// Only the winner may pay.
	err = f.house.CompletePurchase(stranger, id, 10)
	assert.ErrorIs(t, err, auction.ErrNotWinner)
	err = f.house.CompletePurchase(f.sellerPub, id, 10)
	assert.ErrorIs(t, err, auction.ErrNotWinner)

	// Underpayment.
	err = f.house.CompletePurchase(winner, id, 9)
	assert.ErrorIs(t, err, auction.ErrInsufficientPayment)
	assert.Zero(t, f.treasury.Balance(f.sellerPub))
}

func TestCompletePurchase_ExactPayment(t *testing.T) {
	f := newHouseFixture(t)
	winner, _ := testutil.MustGenerateKey(t)
	id := resolveWithWinner(t, f, 10, winner)

	require.NoError(t, f.house.CompletePurchase(winner, id, 10))
	assert.Equal(t, uint64(10), f.treasury.Balance(f.sellerPub))
	assert.Zero(t, f.treasury.Balance(winner))

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.True(t, snap.Settled)
}

func TestCompletePurchase_RefundsExcess(t *testing.T) {
	f := newHouseFixture(t)
	winner, _ := testutil.MustGenerateKey(t)
	id := resolveWithWinner(t, f, 10, winner)

	require.NoError(t, f.house.CompletePurchase(winner, id, 25))
	assert.Equal(t, uint64(10), f.treasury.Balance(f.sellerPub))
	assert.Equal(t, uint64(15), f.treasury.Balance(winner))
}

func TestCompletePurchase_OnlyOnce(t *testing.T) {
	f := newHouseFixture(t)
	winner, _ := testutil.MustGenerateKey(t)
	id := resolveWithWinner(t, f, 10, winner)

	require.NoError(t, f.house.CompletePurchase(winner, id, 10))
	err := f.house.CompletePurchase(winner, id, 10)
	assert.ErrorIs(t, err, auction.ErrAlreadySettled)
	assert.Equal(t, uint64(10), f.treasury.Balance(f.sellerPub))
}

func TestCompletePurchase_NoWinnerAfterEmergencyStop(t *testing.T) {
	f := newHouseFixture(t)
	bidder, _ := testutil.MustGenerateKey(t)

	id := f.createActive(t, 10)
	f.bid(t, id, bidder, 500)
	require.NoError(t, f.house.EmergencyStop(f.sellerPub, id))

	for _, caller := range []crypto.PublicKey{bidder, f.sellerPub} {
		err := f.house.CompletePurchase(caller, id, 10)
		assert.ErrorIs(t, err, auction.ErrNotWinner)
	}
}

// failingTreasury rejects every disbursement.
type failingTreasury struct{}

func (failingTreasury) Disburse([]auction.Payment) error {
	return errors.New("ledger unavailable")
}

func (failingTreasury) Balance(crypto.PublicKey) uint64 { return 0 }

func TestCompletePurchase_TransferFailureLeavesUnsettled(t *testing.T) {
	capability, err := fhe.NewLocalCapability()
	require.NoError(t, err)

	clock := testutil.NewFakeClock(testEpoch)
	house, err := auction.NewAuctionHouse(capability, failingTreasury{}, auction.Config{Clock: clock})
	require.NoError(t, err)

	seller, _ := testutil.MustGenerateKey(t)
	winner, _ := testutil.MustGenerateKey(t)

	id, err := house.CreateAuction(seller, "item", 10, clock.Now().Add(time.Second))
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	h, proof, err := capability.Encrypt(100, winner)
	require.NoError(t, err)
	_, _, err = house.PlaceBid(winner, id, h, proof)
	require.NoError(t, err)

	clock.Advance(auction.DefaultBidTimeout + time.Second)
	_, err = house.CheckAuctionEnd(id)
	require.NoError(t, err)

	err = house.CompletePurchase(winner, id, 10)
	assert.ErrorIs(t, err, auction.ErrTransferFailed)

	// The auction stays ended-but-unpaid so settlement can be retried.
	snap, err := house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, snap.Status)
	assert.False(t, snap.Settled)
}
