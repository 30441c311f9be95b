package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
)

// newSignedTx builds a structurally-valid, signed transaction for pool tests.
func newSignedTx(t *testing.T, priv *crypto.PrivateKey, nonce, amount, fee uint64) *types.Transaction {
	t.Helper()
	sender := crypto.DeriveAddress(priv.Pub.Bytes())
	var recipient common.Address
	recipient[0] = 0xAB

	tx := &types.Transaction{
		Version:         types.TxVersion,
		Sender:          sender,
		SenderPublicKey: priv.Pub.Bytes(),
		Recipient:       recipient,
		Amount:          amount,
		Fee:             fee,
		Nonce:           nonce,
		Timestamp:       1,
	}
	tx.Sign(priv)
	return tx
}

func TestPoolAddAndGetTopTransactions(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	tx := newSignedTx(t, priv, 1, 100, 10)
	require.NoError(t, p.Add(tx))

	top := p.GetTopTransactions(10)
	require.Len(t, top, 1)
	assert.Equal(t, tx.ID(), top[0].ID())
}

func TestPoolRejectsDuplicateTxID(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	tx := newSignedTx(t, priv, 1, 100, 10)
	require.NoError(t, p.Add(tx))
	assert.ErrorIs(t, p.Add(tx), ErrAlreadyKnown)
}

func TestPoolRejectsFeeBelowMinimum(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	tx := newSignedTx(t, priv, 1, 100, 0)
	assert.ErrorIs(t, p.Add(tx), ErrFeeTooLow)
}

// TestReplaceByFeeAdmission follows spec.md §8 scenario 4: sender s, nonce 5,
// fee 100; same (s,5) at fee 110 (>= 110%) is accepted; fee 112 on top of
// that (110*1.10=121) is rejected.
func TestReplaceByFeeAdmission(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	tx1 := newSignedTx(t, priv, 5, 100, 100)
	require.NoError(t, p.Add(tx1))
	assert.Equal(t, 1, p.Size())

	tx2 := newSignedTx(t, priv, 5, 100, 110)
	require.NoError(t, p.Add(tx2))
	assert.Equal(t, 1, p.Size(), "replacement must evict the original, not grow the pool")

	top := p.GetTopTransactions(10)
	require.Len(t, top, 1)
	assert.Equal(t, tx2.ID(), top[0].ID())

	tx3 := newSignedTx(t, priv, 5, 100, 112)
	assert.ErrorIs(t, p.Add(tx3), ErrReplaceUnderpriced)
	assert.Equal(t, 1, p.Size())

	top = p.GetTopTransactions(10)
	require.Len(t, top, 1)
	assert.Equal(t, tx2.ID(), top[0].ID(), "underpriced replacement must leave the existing entry in place")
}

func TestGetTopTransactionsOrdersByFeePerByteDescending(t *testing.T) {
	privLow, err := crypto.GenerateKey()
	require.NoError(t, err)
	privHigh, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	low := newSignedTx(t, privLow, 1, 100, 1)
	high := newSignedTx(t, privHigh, 1, 100, 1000)
	require.NoError(t, p.Add(low))
	require.NoError(t, p.Add(high))

	top := p.GetTopTransactions(10)
	require.Len(t, top, 2)
	assert.Equal(t, high.ID(), top[0].ID())
	assert.Equal(t, low.ID(), top[1].ID())
}

func TestRemoveConfirmedDropsEntries(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := New()
	tx := newSignedTx(t, priv, 1, 100, 10)
	require.NoError(t, p.Add(tx))
	p.RemoveConfirmed([]common.Hash{tx.ID()})
	assert.Equal(t, 0, p.Size())
}

func TestHighestPendingNonceForSender(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.DeriveAddress(priv.Pub.Bytes())

	p := New()
	require.NoError(t, p.Add(newSignedTx(t, priv, 1, 100, 10)))
	require.NoError(t, p.Add(newSignedTx(t, priv, 2, 100, 10)))

	max, found := p.HighestPendingNonceForSender(sender)
	assert.True(t, found)
	assert.Equal(t, uint64(2), max)

	var other common.Address
	other[0] = 0x01
	_, found = p.HighestPendingNonceForSender(other)
	assert.False(t, found)
}
