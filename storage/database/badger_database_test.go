package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
)

func newTestManager(t *testing.T) DBManager {
	t.Helper()
	db, err := NewBadgerDBManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestGetAccountMissingReturnsNil(t *testing.T) {
	db := newTestManager(t)
	acc, err := db.GetAccount(common.Address{1})
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestPutGetAccountRoundTrip(t *testing.T) {
	db := newTestManager(t)
	addr := common.Address{2}
	require.NoError(t, db.PutAccount(addr, &types.AccountState{Balance: 42, Nonce: 3}))

	acc, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, uint64(42), acc.Balance)
	assert.Equal(t, uint64(3), acc.Nonce)
}

func TestIterAccountsVisitsAllPutAccounts(t *testing.T) {
	db := newTestManager(t)
	addrs := []common.Address{{1}, {2}, {3}}
	for i, a := range addrs {
		require.NoError(t, db.PutAccount(a, &types.AccountState{Balance: uint64(i + 1)}))
	}

	seen := make(map[common.Address]uint64)
	require.NoError(t, db.IterAccounts(func(addr common.Address, acc *types.AccountState) bool {
		seen[addr] = acc.Balance
		return true
	}))
	assert.Len(t, seen, 3)
	assert.Equal(t, uint64(1), seen[addrs[0]])
}

func TestGetTipMissingReportsNotOk(t *testing.T) {
	db := newTestManager(t)
	_, ok, err := db.GetTip()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchCommitIsAtomicAcrossFamilies(t *testing.T) {
	db := newTestManager(t)
	addr := common.Address{9}
	block := &types.Block{Header: &types.Header{Version: 1, Height: 1}}

	b := db.NewBatch()
	b.PutAccount(addr, &types.AccountState{Balance: 7})
	b.PutHeightIndex(1, block.Hash())
	b.SetTip(block.Hash())
	require.NoError(t, b.Commit())

	acc, err := db.GetAccount(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), acc.Balance)

	hash, ok, err := db.GetBlockHashByHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Hash(), hash)

	tip, ok, err := db.GetTip()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Hash(), tip)
}

func TestReferralIndexRoundTrip(t *testing.T) {
	db := newTestManager(t)
	code := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	addr := common.Address{5}

	b := db.NewBatch()
	b.PutReferralIndex(code, addr)
	require.NoError(t, b.Commit())

	got, ok, err := db.GetAddressByReferralCode(code)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestGovernanceParamsRoundTrip(t *testing.T) {
	db := newTestManager(t)
	_, ok, err := db.GetGovernanceParams()
	require.NoError(t, err)
	assert.False(t, ok)

	want := GovernanceParamsRecord{PoncRounds: 512, CapBps: 1000, RetargetSecs: 3600}
	require.NoError(t, db.SetGovernanceParams(want))

	got, ok, err := db.GetGovernanceParams()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestGovernanceTallyAndVoteFlags(t *testing.T) {
	db := newTestManager(t)
	proposal := [32]byte{1}
	voter := common.Address{3}

	has, err := db.HasGovernanceVote(proposal, voter)
	require.NoError(t, err)
	assert.False(t, has)

	b := db.NewBatch()
	b.PutGovernanceTally(proposal, 100)
	b.PutGovernanceVote(proposal, voter)
	require.NoError(t, b.Commit())

	tally, err := db.GetGovernanceTally(proposal)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tally)

	has, err = db.HasGovernanceVote(proposal, voter)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGenesisHashRoundTrip(t *testing.T) {
	db := newTestManager(t)
	_, ok, err := db.GetGenesisHash()
	require.NoError(t, err)
	assert.False(t, ok)

	want := common.Hash{7, 7, 7}
	require.NoError(t, db.SetGenesisHash(want))

	got, ok, err := db.GetGenesisHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestHasBlockReflectsBatchedPut(t *testing.T) {
	db := newTestManager(t)
	block := &types.Block{Header: &types.Header{Version: 1, Height: 0}}

	ok, err := db.HasBlock(block.Hash())
	require.NoError(t, err)
	assert.False(t, ok)

	b := db.NewBatch()
	b.PutBlock(block)
	require.NoError(t, b.Commit())

	ok, err = db.HasBlock(block.Hash())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.GetBlock(block.Hash())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, block.Hash(), got.Hash())
}
