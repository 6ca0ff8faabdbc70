package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertxMiller/SafeBid/crypto"
)

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("sealed bid submission")
	sig, err := crypto.Sign(priv, msg)
	require.NoError(t, err)

	assert.True(t, sig.Verify(pub, msg))
	assert.False(t, sig.Verify(pub, []byte("different message")))

	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	assert.False(t, sig.Verify(otherPub, msg))
}

func TestPublicKeyEqual(t *testing.T) {
	pub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	other, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	assert.True(t, pub.Equal(crypto.NewPublicKeyFromBytes(pub)))
	assert.False(t, pub.Equal(other))
	assert.False(t, pub.Equal(nil))
}

func TestPublicKeyHexRoundtrip(t *testing.T) {
	pub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := crypto.NewPublicKeyFromString(pub.String())
	require.NoError(t, err)
	assert.True(t, pub.Equal(parsed))

	_, err = crypto.NewPublicKeyFromString("not-hex")
	assert.Error(t, err)

	_, err = crypto.NewPublicKeyFromString("abcd")
	assert.Error(t, err)
}

func TestPrivateKeyDerivesPublicKey(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	derived, err := priv.PublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(derived))

	_, err = crypto.PrivateKey([]byte("short")).PublicKey()
	assert.Error(t, err)
}
