package auction_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertxMiller/SafeBid/auction"
	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
	"github.com/RobertxMiller/SafeBid/testutil"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type houseFixture struct {
	house    *auction.AuctionHouse
	cap      *fhe.LocalCapability
	treasury *auction.BalanceBook
	clock    *testutil.FakeClock

	sellerPub crypto.PublicKey
}

func newHouseFixture(t *testing.T) *houseFixture {
	t.Helper()

	capability, err := fhe.NewLocalCapability()
	require.NoError(t, err)

	clock := testutil.NewFakeClock(testEpoch)
	treasury := auction.NewBalanceBook()

	house, err := auction.NewAuctionHouse(capability, treasury, auction.Config{
		BidTimeout: 600 * time.Second,
		Clock:      clock,
	})
	require.NoError(t, err)

	sellerPub, _ := testutil.MustGenerateKey(t)

	return &houseFixture{
		house:     house,
		cap:       capability,
		treasury:  treasury,
		clock:     clock,
		sellerPub: sellerPub,
	}
}

// createActive creates an auction starting 100s from now and advances the
// clock past the start time.
func (f *houseFixture) createActive(t *testing.T, startPrice uint64) uint64 {
	t.Helper()

	id, err := f.house.CreateAuction(f.sellerPub, "test item", startPrice, f.clock.Now().Add(100*time.Second))
	require.NoError(t, err)
	f.clock.Advance(101 * time.Second)
	return id
}

// bid encrypts amount for the given bidder and places it.
func (f *houseFixture) bid(t *testing.T, id uint64, bidder crypto.PublicKey, amount uint32) int {
	t.Helper()

	h, proof, err := f.cap.Encrypt(amount, bidder)
	require.NoError(t, err)
	idx, _, err := f.house.PlaceBid(bidder, id, h, proof)
	require.NoError(t, err)
	return idx
}

func TestCreateAuction_SequentialIDs(t *testing.T) {
	f := newHouseFixture(t)

	for want := uint64(0); want < 5; want++ {
		id, err := f.house.CreateAuction(f.sellerPub, "item", 10, f.clock.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, uint64(5), f.house.GetTotalAuctions())
}

func TestCreateAuction_Validation(t *testing.T) {
	f := newHouseFixture(t)

	tests := []struct {
		name       string
		itemName   string
		startPrice uint64
		startTime  time.Time
	}{
		{"empty item name", "", 10, testEpoch.Add(time.Hour)},
		{"zero start price", "item", 0, testEpoch.Add(time.Hour)},
		{"start time in the past", "item", 10, testEpoch.Add(-time.Second)},
		{"start time equals now", "item", 10, testEpoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.house.CreateAuction(f.sellerPub, tt.itemName, tt.startPrice, tt.startTime)
			assert.ErrorIs(t, err, auction.ErrInvalidInput)
		})
	}

	assert.Equal(t, uint64(0), f.house.GetTotalAuctions())
}

func TestCreateAuction_StartsPending(t *testing.T) {
	f := newHouseFixture(t)

	id, err := f.house.CreateAuction(f.sellerPub, "item", 10, testEpoch.Add(time.Hour))
	require.NoError(t, err)

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusPending, snap.Status)
	assert.Equal(t, f.sellerPub.String(), snap.Seller)
	assert.Equal(t, snap.StartTime, snap.LastBidTime)
	assert.Empty(t, snap.Winner)
	assert.Zero(t, snap.FinalPrice)
	assert.True(t, snap.HighestBid.IsZero())
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	f := newHouseFixture(t)
	bidder, _ := testutil.MustGenerateKey(t)

	h, proof, err := f.cap.Encrypt(5, bidder)
	require.NoError(t, err)
	_, _, err = f.house.PlaceBid(bidder, 42, h, proof)
	assert.ErrorIs(t, err, auction.ErrNotFound)
}

func TestPlaceBid_BeforeStartTime(t *testing.T) {
	f := newHouseFixture(t)
	bidder, _ := testutil.MustGenerateKey(t)

	id, err := f.house.CreateAuction(f.sellerPub, "item", 10, testEpoch.Add(100*time.Second))
	require.NoError(t, err)

	h, proof, err := f.cap.Encrypt(5, bidder)
	require.NoError(t, err)
	_, _, err = f.house.PlaceBid(bidder, id, h, proof)
	assert.ErrorIs(t, err, auction.ErrNotActive)

	// At the start instant the auction is active.
	f.clock.Advance(100 * time.Second)
	_, _, err = f.house.PlaceBid(bidder, id, h, proof)
	assert.NoError(t, err)
}

func TestPlaceBid_SellerCannotBid(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)

	h, proof, err := f.cap.Encrypt(5, f.sellerPub)
	require.NoError(t, err)
	_, _, err = f.house.PlaceBid(f.sellerPub, id, h, proof)
	assert.ErrorIs(t, err, auction.ErrForbidden)

	count, err := f.house.GetBidCount(id)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPlaceBid_InvalidProofNeverRecorded(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)

	h, proof, err := f.cap.Encrypt(5, bidder)
	require.NoError(t, err)

	tampered := append(fhe.Proof{}, proof...)
	tampered[0] ^= 0xff
	_, _, err = f.house.PlaceBid(bidder, id, h, tampered)
	assert.ErrorIs(t, err, auction.ErrInvalidEncryption)

	count, err := f.house.GetBidCount(id)
	require.NoError(t, err)
	assert.Zero(t, count)

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, snap.StartTime, snap.LastBidTime)
}

func TestPlaceBid_AdvancesLastBidTimeAndCount(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)

	for i := 1; i <= 3; i++ {
		f.clock.Advance(30 * time.Second)
		idx := f.bid(t, id, bidder, uint32(i*100))
		assert.Equal(t, i-1, idx)

		snap, err := f.house.GetAuction(id)
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now(), snap.LastBidTime)
		assert.Equal(t, i, snap.BidCount)
	}
}

func TestPlaceBid_BidderMayDecryptOwnBid(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	other, _ := testutil.MustGenerateKey(t)

	h, proof, err := f.cap.Encrypt(777, bidder)
	require.NoError(t, err)
	_, _, err = f.house.PlaceBid(bidder, id, h, proof)
	require.NoError(t, err)

	plain, err := f.cap.Decrypt(h, bidder)
	require.NoError(t, err)
	assert.Equal(t, uint32(777), plain)

	// No other party can read the bid, and nobody can read the running
	// maximum.
	_, err = f.cap.Decrypt(h, other)
	assert.ErrorIs(t, err, fhe.ErrNotAuthorized)

	highest, err := f.house.GetHighestBid(id)
	require.NoError(t, err)
	_, err = f.cap.Decrypt(highest, other)
	assert.ErrorIs(t, err, fhe.ErrNotAuthorized)
}

func TestCheckAuctionEnd_RespectsTimeout(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	f.bid(t, id, bidder, 100)

	// Exactly at lastBidTime + timeout the window has not elapsed yet.
	f.clock.Advance(600 * time.Second)
	resolved, err := f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	assert.False(t, resolved)

	f.clock.Advance(time.Second)
	resolved, err = f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	assert.True(t, resolved)

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, snap.Status)
	assert.Equal(t, bidder.String(), snap.Winner)
	assert.Equal(t, uint64(10), snap.FinalPrice)
}

func TestCheckAuctionEnd_NoBidsNoWinner(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)

	f.clock.Advance(601 * time.Second)
	resolved, err := f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	assert.True(t, resolved)

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Empty(t, snap.Winner)
	assert.Zero(t, snap.FinalPrice)
	require.NotNil(t, snap.EndTime)
	assert.Equal(t, f.clock.Now(), *snap.EndTime)
}

func TestResolution_Idempotent(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	f.bid(t, id, bidder, 100)

	f.clock.Advance(601 * time.Second)
	resolved, err := f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	require.True(t, resolved)

	before, err := f.house.GetAuction(id)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	resolved, err = f.house.CheckAuctionEnd(id)
	require.NoError(t, err)
	assert.False(t, resolved)

	require.NoError(t, f.house.EndAuction(f.sellerPub, id))

	after, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, before.Winner, after.Winner)
	assert.Equal(t, before.FinalPrice, after.FinalPrice)
	assert.Equal(t, *before.EndTime, *after.EndTime)
}

func TestEndAuction_SellerOnlyAndTooEarly(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	f.bid(t, id, bidder, 100)

	stranger, _ := testutil.MustGenerateKey(t)
	err := f.house.EndAuction(stranger, id)
	assert.ErrorIs(t, err, auction.ErrForbidden)

	err = f.house.EndAuction(f.sellerPub, id)
	assert.ErrorIs(t, err, auction.ErrTooEarly)

	f.clock.Advance(601 * time.Second)
	require.NoError(t, f.house.EndAuction(f.sellerPub, id))
}

func TestEmergencyStop(t *testing.T) {
	f := newHouseFixture(t)
	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	f.bid(t, id, bidder, 100)

	stranger, _ := testutil.MustGenerateKey(t)
	assert.ErrorIs(t, f.house.EmergencyStop(stranger, id), auction.ErrForbidden)

	// Stops immediately, ignoring the timeout, and discards all bids.
	require.NoError(t, f.house.EmergencyStop(f.sellerPub, id))

	snap, err := f.house.GetAuction(id)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, snap.Status)
	assert.Empty(t, snap.Winner)
	assert.Zero(t, snap.FinalPrice)

	assert.ErrorIs(t, f.house.EmergencyStop(f.sellerPub, id), auction.ErrAlreadyEnded)
}

func TestEmergencyStop_PendingAuction(t *testing.T) {
	f := newHouseFixture(t)

	id, err := f.house.CreateAuction(f.sellerPub, "item", 10, testEpoch.Add(time.Hour))
	require.NoError(t, err)

	// A pending auction is not active and cannot be stopped.
	assert.ErrorIs(t, f.house.EmergencyStop(f.sellerPub, id), auction.ErrAlreadyEnded)
}

func TestLeaderTracking_HighestBidWins(t *testing.T) {
	f := newHouseFixture(t)

	alice, _ := testutil.MustGenerateKey(t)
	bob, _ := testutil.MustGenerateKey(t)
	carol, _ := testutil.MustGenerateKey(t)

	tests := []struct {
		name    string
		bids    []uint32
		bidders []crypto.PublicKey
		winner  crypto.PublicKey
	}{
		{"ascending", []uint32{100, 200, 300}, []crypto.PublicKey{alice, bob, carol}, carol},
		{"descending keeps first leader", []uint32{300, 200, 100}, []crypto.PublicKey{alice, bob, carol}, alice},
		{"equal bid does not displace leader", []uint32{200, 200}, []crypto.PublicKey{alice, bob}, alice},
		{"middle bidder wins", []uint32{100, 900, 500}, []crypto.PublicKey{alice, bob, carol}, bob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := f.createActive(t, 10)
			for i, amount := range tt.bids {
				f.bid(t, id, tt.bidders[i], amount)
			}

			f.clock.Advance(601 * time.Second)
			resolved, err := f.house.CheckAuctionEnd(id)
			require.NoError(t, err)
			require.True(t, resolved)

			snap, err := f.house.GetAuction(id)
			require.NoError(t, err)
			assert.Equal(t, tt.winner.String(), snap.Winner)
		})
	}
}

func TestEvents_OrderedPerAuction(t *testing.T) {
	f := newHouseFixture(t)
	recorder := &testutil.EventRecorder{}
	f.house.AddSink(recorder)

	id := f.createActive(t, 10)
	bidder, _ := testutil.MustGenerateKey(t)
	f.bid(t, id, bidder, 100)
	f.clock.Advance(601 * time.Second)
	_, err := f.house.CheckAuctionEnd(id)
	require.NoError(t, err)

	events, err := f.house.Events(id)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, auction.EventAuctionCreated, events[0].Type)
	assert.Equal(t, auction.EventBidPlaced, events[1].Type)
	assert.Equal(t, auction.EventAuctionEnded, events[2].Type)
	assert.Equal(t, bidder.String(), events[1].Bid.Bidder)
	assert.Equal(t, bidder.String(), events[2].Ended.Winner)

	// Sink saw the same stream.
	require.Len(t, recorder.Events(), 3)
	assert.Equal(t, events[0].ID, recorder.Events()[0].ID)
}

func TestQueries_UnknownAuction(t *testing.T) {
	f := newHouseFixture(t)

	_, err := f.house.GetAuction(9)
	assert.ErrorIs(t, err, auction.ErrNotFound)
	_, err = f.house.GetBidCount(9)
	assert.ErrorIs(t, err, auction.ErrNotFound)
	_, err = f.house.GetHighestBid(9)
	assert.ErrorIs(t, err, auction.ErrNotFound)
	_, err = f.house.Events(9)
	assert.ErrorIs(t, err, auction.ErrNotFound)
	_, err = f.house.CheckAuctionEnd(9)
	assert.ErrorIs(t, err, auction.ErrNotFound)
}
