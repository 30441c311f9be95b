package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/crypto"
)

func signedTestTx(t *testing.T) *Transaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.DeriveAddress(priv.Pub.Bytes())

	tx := &Transaction{
		Version:         TxVersion,
		Sender:          sender,
		SenderPublicKey: priv.Pub.Bytes(),
		Recipient:       sender,
		Amount:          0,
		Fee:             5,
		Nonce:           1,
		Timestamp:       1700000000,
		HasReferrer:     true,
		ReferrerAddress: sender,
	}
	tx.Sign(priv)
	return tx
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	tx := signedTestTx(t)
	decoded, err := DecodeTransaction(tx.Encode())
	require.NoError(t, err)

	assert.Equal(t, tx.Sender, decoded.Sender)
	assert.Equal(t, tx.Recipient, decoded.Recipient)
	assert.Equal(t, tx.Amount, decoded.Amount)
	assert.Equal(t, tx.Fee, decoded.Fee)
	assert.Equal(t, tx.Nonce, decoded.Nonce)
	assert.Equal(t, tx.HasReferrer, decoded.HasReferrer)
	assert.Equal(t, tx.ReferrerAddress, decoded.ReferrerAddress)
	assert.Equal(t, tx.Signature, decoded.Signature)
	assert.Equal(t, tx.ID(), decoded.ID())
}

func TestTransactionVerifySignature(t *testing.T) {
	tx := signedTestTx(t)
	assert.True(t, tx.VerifySignature())

	tx.Amount = 999 // tamper after signing
	assert.False(t, tx.VerifySignature())
}

func TestTransactionIDChangesWithSignature(t *testing.T) {
	tx := signedTestTx(t)
	id1 := tx.ID()

	priv2, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx.Sign(priv2) // different key produces a different signature
	id2 := tx.ID()

	assert.NotEqual(t, id1, id2)
}

func TestDecodeTruncatedTransactionFails(t *testing.T) {
	tx := signedTestTx(t)
	enc := tx.Encode()
	_, err := DecodeTransaction(enc[:len(enc)-1])
	assert.Error(t, err)
}
