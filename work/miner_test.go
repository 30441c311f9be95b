package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/blockchain"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/storage/database"
)

func newTestDB(t *testing.T) database.DBManager {
	t.Helper()
	db, err := database.NewBadgerDBManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestNewMinerStartsNotRunning(t *testing.T) {
	m := NewMiner(newTestDB(t), mempool.New())
	assert.False(t, m.IsMining())
	assert.Equal(t, float64(0), m.HashRate())
}

func TestStopOnNeverStartedMinerIsNoop(t *testing.T) {
	m := NewMiner(newTestDB(t), mempool.New())
	m.Stop() // must not panic despite no quit channel ever being created
	assert.False(t, m.IsMining())
}

func TestBuildTemplateFailsWithoutGenesis(t *testing.T) {
	m := NewMiner(newTestDB(t), mempool.New())
	_, _, err := m.buildTemplate()
	assert.ErrorIs(t, err, ErrNoTip)
}

func TestBuildTemplateExtendsTip(t *testing.T) {
	db := newTestDB(t)
	miner := common.Address{1}

	genesis, err := blockchain.BuildGenesisBlock(blockchain.GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: blockchain.MaximumEasyTarget,
		MinerAddress:     miner,
	})
	require.NoError(t, err)
	require.NoError(t, blockchain.ApplyGenesis(db, genesis))

	m := NewMiner(db, mempool.New())
	m.minerAddress = common.Address{2}

	block, rounds, err := m.buildTemplate()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), block.Height())
	assert.Equal(t, genesis.Hash(), block.PreviousHash())
	assert.Equal(t, common.Address{2}, block.Header.MinerAddress)
	assert.Greater(t, rounds, uint32(0))
}

func TestStartTwiceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	miner := common.Address{1}
	genesis, err := blockchain.BuildGenesisBlock(blockchain.GenesisConfig{
		Timestamp:        1_700_000_000,
		DifficultyTarget: blockchain.MaximumEasyTarget,
		MinerAddress:     miner,
	})
	require.NoError(t, err)
	require.NoError(t, blockchain.ApplyGenesis(db, genesis))

	m := NewMiner(db, mempool.New())
	require.NoError(t, m.Start(common.Address{2}, 1, nil))
	assert.True(t, m.IsMining())

	require.NoError(t, m.Start(common.Address{3}, 1, nil)) // no-op: already running
	assert.Equal(t, common.Address{2}, m.minerAddress)

	m.Stop()
	assert.False(t, m.IsMining())
}
