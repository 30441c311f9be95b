package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/storage/database"
)

func newTestDB(t *testing.T) database.DBManager {
	t.Helper()
	db, err := database.NewBadgerDBManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestGetMissingAccountReadsAsZeroValue(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	var addr common.Address
	addr[common.AddressLength-1] = 7

	acc, err := s.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Balance)
	assert.False(t, acc.HasReferrer)
}

func TestGetCachesAcrossCalls(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	var addr common.Address
	addr[common.AddressLength-1] = 1

	acc1, err := s.Get(addr)
	require.NoError(t, err)
	acc1.Balance = 100
	s.MarkDirty(addr)

	acc2, err := s.Get(addr)
	require.NoError(t, err)
	assert.Same(t, acc1, acc2)
	assert.Equal(t, uint64(100), acc2.Balance)
}

func TestDirtyAddressesTracksOnlyMarked(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	var addrA, addrB common.Address
	addrA[common.AddressLength-1] = 1
	addrB[common.AddressLength-1] = 2

	_, err := s.Get(addrA)
	require.NoError(t, err)
	_, err = s.Get(addrB)
	require.NoError(t, err)
	s.MarkDirty(addrA)

	dirty := s.DirtyAddresses()
	assert.Equal(t, []common.Address{addrA}, dirty)
}

func TestGetReadsThroughToPersistedAccount(t *testing.T) {
	db := newTestDB(t)
	var addr common.Address
	addr[common.AddressLength-1] = 3

	require.NoError(t, db.PutAccount(addr, &types.AccountState{Balance: 55}))

	s := New(db)
	acc, err := s.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(55), acc.Balance)
}

func TestAccountReturnsCachedCopyWithoutTouchingStore(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	var addr common.Address
	addr[common.AddressLength-1] = 9

	assert.Nil(t, s.Account(addr))

	_, err := s.Get(addr)
	require.NoError(t, err)
	assert.NotNil(t, s.Account(addr))
}
