package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertxMiller/SafeBid/protocol"
	"github.com/RobertxMiller/SafeBid/testutil"
)

func TestSignedEnvelope_Recover(t *testing.T) {
	pub, priv := testutil.MustGenerateKey(t)

	req := &protocol.CreateAuctionRequest{ItemName: "painting", StartPrice: 10, StartTime: 1750000000}
	signed, err := protocol.NewSigned(priv, req)
	require.NoError(t, err)

	obj, signer, err := signed.Recover()
	require.NoError(t, err)
	assert.Equal(t, pub, signer)
	assert.Equal(t, req, obj)
}

func TestSignedEnvelope_RejectsTamperedObject(t *testing.T) {
	_, priv := testutil.MustGenerateKey(t)

	signed, err := protocol.NewSigned(priv, &protocol.CreateAuctionRequest{ItemName: "painting", StartPrice: 10})
	require.NoError(t, err)

	signed.Object.StartPrice = 999
	_, _, err = signed.Recover()
	assert.Error(t, err)
}

func TestSignedEnvelope_RejectsSwappedKey(t *testing.T) {
	_, priv := testutil.MustGenerateKey(t)
	otherPub, _ := testutil.MustGenerateKey(t)

	signed, err := protocol.NewSigned(priv, &protocol.EndAuctionRequest{AuctionID: 3})
	require.NoError(t, err)

	// Signature covers the public key, so claiming another signer fails.
	signed.PublicKey = otherPub
	_, _, err = signed.Recover()
	assert.Error(t, err)
}

func TestSignedEnvelope_JSONRoundtrip(t *testing.T) {
	_, priv := testutil.MustGenerateKey(t)

	signed, err := protocol.NewSigned(priv, &protocol.CompletePurchaseRequest{AuctionID: 1, Payment: 10})
	require.NoError(t, err)

	data, err := protocol.SerializeMessage(signed)
	require.NoError(t, err)

	decoded, err := protocol.UnmarshalMessage[protocol.Signed[protocol.CompletePurchaseRequest]](data)
	require.NoError(t, err)

	obj, _, err := decoded.Recover()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), obj.AuctionID)
	assert.Equal(t, uint64(10), obj.Payment)
}
