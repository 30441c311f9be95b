package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("a knotcoin transaction signing hash, 32 bytes or otherwise")
	sig := priv.Sign(msg)
	assert.Len(t, sig, SignatureSize)

	pub, err := PublicKeyFromBytes(priv.Pub.Bytes())
	require.NoError(t, err)
	assert.True(t, Verify(pub, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("original message")
	sig := priv.Sign(msg)

	pub, err := PublicKeyFromBytes(priv.Pub.Bytes())
	require.NoError(t, err)
	assert.False(t, Verify(pub, []byte("tampered message"), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv1, err := GenerateKey()
	require.NoError(t, err)
	priv2, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("some message")
	sig := priv1.Sign(msg)

	pub2, err := PublicKeyFromBytes(priv2.Pub.Bytes())
	require.NoError(t, err)
	assert.False(t, Verify(pub2, msg, sig))
}

func TestPublicKeyFromBytesRejectsWrongSize(t *testing.T) {
	_, err := PublicKeyFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}
