package blockchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus/ponc"
	"github.com/knotcoin/knotcoin/reward"
	"github.com/knotcoin/knotcoin/storage/database"
)

func newTestDB(t *testing.T) database.DBManager {
	t.Helper()
	db, err := database.NewBadgerDBManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func addr(b byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = b
	return a
}

// mineBlock fills in nonce/hash so the block solves MaximumEasyTarget, which
// is satisfied at nonce 0, and applies it through the full state machine.
func mineBlock(t *testing.T, db database.DBManager, parent *types.Block, miner common.Address, timestamp uint32, pendingReferrer *common.Address) *types.Block {
	t.Helper()
	header := &types.Header{
		Version:          HeaderVersion,
		PreviousHash:     parent.Hash(),
		MerkleRoot:       types.MerkleRoot(nil),
		Timestamp:        timestamp,
		DifficultyTarget: MaximumEasyTarget,
		Nonce:            0,
		Height:           parent.Height() + 1,
		MinerAddress:     miner,
	}
	block := &types.Block{Header: header}

	engine := ponc.New()
	_, err := ApplyBlock(db, engine, block, pendingReferrer, time.Unix(int64(timestamp)+1, 0))
	require.NoError(t, err)
	return block
}

func TestGenesisOnlyScenario(t *testing.T) {
	db := newTestDB(t)
	miner := addr(1)

	genesis, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     miner,
	})
	require.NoError(t, err)
	require.NoError(t, ApplyGenesis(db, genesis))

	acc, err := db.GetAccount(miner)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), acc.Balance)
	assert.Equal(t, uint64(0), acc.LastMinedHeight)

	tip, ok, err := db.GetTip()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, genesis.Hash(), tip)

	hash, ok, err := db.GetBlockHashByHeight(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, genesis.Hash(), hash)
}

func TestApplyBlockRejectsAlreadyKnown(t *testing.T) {
	db := newTestDB(t)
	miner := addr(1)
	genesis, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     miner,
	})
	require.NoError(t, err)
	require.NoError(t, ApplyGenesis(db, genesis))

	err = ApplyGenesis(db, genesis)
	assert.ErrorIs(t, err, ErrAlreadyKnown)
}

// TestReferralBonusInWindow follows spec.md §8 scenario 2: R mines block 1,
// M's first block (2) binds M to referrer R (no bonus yet, since the bind
// happens after the reward step of the block that creates it), and M's
// second mined block (3) credits R with 5% of the base reward while M still
// receives the block's full, undeducted base reward.
func TestReferralBonusInWindow(t *testing.T) {
	db := newTestDB(t)
	genesisMiner := addr(1)
	r := addr(2)
	m := addr(3)

	genesis, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     genesisMiner,
	})
	require.NoError(t, err)
	require.NoError(t, ApplyGenesis(db, genesis))

	block1 := mineBlock(t, db, genesis, r, genesis.Header.Timestamp+100, nil)
	block2 := mineBlock(t, db, block1, m, block1.Header.Timestamp+100, &r)

	mAfterBlock2, err := db.GetAccount(m)
	require.NoError(t, err)
	assert.True(t, mAfterBlock2.HasReferrer)
	assert.Equal(t, r, mAfterBlock2.Referrer)

	rAfterBlock2, err := db.GetAccount(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rAfterBlock2.TotalReferralBonusEarned)

	mBalanceBefore := mAfterBlock2.Balance

	block3 := mineBlock(t, db, block2, m, block2.Header.Timestamp+100, nil)
	base3 := reward.BaseReward(uint64(block3.Height()))

	mAfterBlock3, err := db.GetAccount(m)
	require.NoError(t, err)
	assert.Equal(t, mBalanceBefore+base3, mAfterBlock3.Balance, "miner must receive the full, undeducted base reward")

	rAfterBlock3, err := db.GetAccount(r)
	require.NoError(t, err)
	assert.Equal(t, base3*500/10000, rAfterBlock3.TotalReferralBonusEarned)
}

func TestMedianTimePastRejectsBlockInPast(t *testing.T) {
	db := newTestDB(t)
	genesisMiner := addr(1)
	genesis, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     genesisMiner,
	})
	require.NoError(t, err)
	require.NoError(t, ApplyGenesis(db, genesis))

	header := &types.Header{
		Version:          HeaderVersion,
		PreviousHash:     genesis.Hash(),
		MerkleRoot:       types.MerkleRoot(nil),
		Timestamp:        genesis.Header.Timestamp, // equal to MTP, not after it
		DifficultyTarget: MaximumEasyTarget,
		Nonce:            0,
		Height:           1,
		MinerAddress:     addr(2),
	}
	block := &types.Block{Header: header}

	_, err = ApplyBlock(db, ponc.New(), block, nil, time.Unix(int64(header.Timestamp)+1, 0))
	assert.ErrorIs(t, err, ErrBlockInPast)
}

func TestApplyBlockRejectsFarFutureTimestamp(t *testing.T) {
	db := newTestDB(t)
	genesisMiner := addr(1)
	genesis, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     genesisMiner,
	})
	require.NoError(t, err)
	require.NoError(t, ApplyGenesis(db, genesis))

	header := &types.Header{
		Version:          HeaderVersion,
		PreviousHash:     genesis.Hash(),
		MerkleRoot:       types.MerkleRoot(nil),
		Timestamp:        genesis.Header.Timestamp + 100_000,
		DifficultyTarget: MaximumEasyTarget,
		Nonce:            0,
		Height:           1,
		MinerAddress:     addr(2),
	}
	block := &types.Block{Header: header}

	_, err = ApplyBlock(db, ponc.New(), block, nil, time.Unix(int64(genesis.Header.Timestamp), 0))
	assert.ErrorIs(t, err, ErrBlockTooFarInFuture)
}

func TestGenesisRejectsSentinelMiner(t *testing.T) {
	_, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     common.BytesToAddress(sentinelBytes()),
	})
	assert.ErrorIs(t, err, ErrGenesisSentinelMiner)
}

func sentinelBytes() []byte {
	b := make([]byte, common.AddressLength)
	for i := range b {
		b[i] = 0xff
	}
	return b
}

func TestGenesisRejectsZeroMiner(t *testing.T) {
	_, err := BuildGenesisBlock(GenesisConfig{
		Timestamp:        1,
		DifficultyTarget: MaximumEasyTarget,
		MinerAddress:     common.Address{},
	})
	assert.ErrorIs(t, err, ErrGenesisZeroMiner)
}
