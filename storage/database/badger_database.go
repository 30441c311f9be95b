// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/log"
)

const gcThreshold = int64(1 << 30) // 1GB
const sizeGCTickerTime = 1 * time.Minute

// badgerManager is the badger-backed DBManager (C2). SyncWrites is enabled
// so every Batch.Commit blocks until the WAL fsync barrier clears, matching
// the durability requirement in spec.md §4.1.
type badgerManager struct {
	dir string
	db  *badger.DB

	gcTicker *time.Ticker
	logger   log.Logger
}

func getBadgerDBDefaultOptions(dbDir string) badger.Options {
	opts := badger.DefaultOptions
	opts.Dir = dbDir
	opts.ValueDir = dbDir
	opts.SyncWrites = true
	return opts
}

// NewBadgerDBManager opens (creating if necessary) a badger-backed chain
// store rooted at dbDir.
func NewBadgerDBManager(dbDir string) (DBManager, error) {
	l := log.NewModuleLogger(log.Storage).NewWith("dbDir", dbDir)

	if fi, err := os.Stat(dbDir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("database: dbDir is not a directory: %v", dbDir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("database: failed to create dbDir %v: %v", dbDir, err)
		}
	} else {
		return nil, fmt.Errorf("database: failed to stat dbDir %v: %v", dbDir, err)
	}

	db, err := badger.Open(getBadgerDBDefaultOptions(dbDir))
	if err != nil {
		return nil, fmt.Errorf("database: failed to open badger at %v: %v", dbDir, err)
	}

	m := &badgerManager{
		dir:      dbDir,
		db:       db,
		logger:   l,
		gcTicker: time.NewTicker(sizeGCTickerTime),
	}
	go m.runValueLogGC()
	return m, nil
}

// runValueLogGC periodically reclaims badger's value log once it has grown
// by more than gcThreshold since the last pass.
func (m *badgerManager) runValueLogGC() {
	_, lastSize := m.db.Size()
	for range m.gcTicker.C {
		_, currSize := m.db.Size()
		if currSize-lastSize < gcThreshold {
			continue
		}
		if err := m.db.RunValueLogGC(0.5); err != nil {
			m.logger.Error("value log gc failed", "err", err)
			continue
		}
		_, lastSize = m.db.Size()
	}
}

func (m *badgerManager) Close() {
	m.gcTicker.Stop()
	if err := m.db.Close(); err != nil {
		m.logger.Error("failed to close database", "err", err)
		return
	}
	m.logger.Info("database closed")
}

func (m *badgerManager) Compact() error {
	return m.db.RunValueLogGC(0.5)
}

func (m *badgerManager) get(key []byte) ([]byte, bool, error) {
	txn := m.db.NewTransaction(false)
	defer txn.Discard()
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := item.Value()
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (m *badgerManager) put(key, value []byte) error {
	txn := m.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Set(key, value); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (m *badgerManager) GetAccount(addr common.Address) (*types.AccountState, error) {
	v, ok, err := m.get(familyKey(FamilyAccounts, addr[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return types.DecodeAccountState(v), nil
}

func (m *badgerManager) PutAccount(addr common.Address, acc *types.AccountState) error {
	return m.put(familyKey(FamilyAccounts, addr[:]), acc.Encode())
}

func (m *badgerManager) IterAccounts(fn func(addr common.Address, acc *types.AccountState) bool) error {
	txn := m.db.NewTransaction(false)
	defer txn.Discard()

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := []byte{byte(FamilyAccounts)}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.Key()
		v, err := item.Value()
		if err != nil {
			return err
		}
		addr := common.BytesToAddress(key[1:])
		if !fn(addr, types.DecodeAccountState(v)) {
			break
		}
	}
	return nil
}

func (m *badgerManager) GetBlock(hash common.Hash) (*types.Block, error) {
	v, ok, err := m.get(familyKey(FamilyBlocks, hash[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return types.DecodeBlock(v)
}

func (m *badgerManager) HasBlock(hash common.Hash) (bool, error) {
	_, ok, err := m.get(familyKey(FamilyBlocks, hash[:]))
	return ok, err
}

func (m *badgerManager) GetBlockHashByHeight(height uint32) (common.Hash, bool, error) {
	v, ok, err := m.get(familyKey(FamilyHeights, heightKey(height)))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v), true, nil
}

func (m *badgerManager) GetTip() (common.Hash, bool, error) {
	v, ok, err := m.get(familyKey(FamilyMeta, metaKeyTip))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v), true, nil
}

func (m *badgerManager) GetAddressByReferralCode(code [8]byte) (common.Address, bool, error) {
	v, ok, err := m.get(familyKey(FamilyReferralIndex, referralCodeKey(code)))
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return common.BytesToAddress(v), true, nil
}

func (m *badgerManager) GetGovernanceTally(proposal [32]byte) (uint64, error) {
	v, ok, err := m.get(familyKey(FamilyGovTallies, proposalKey(proposal)))
	if err != nil || !ok {
		return 0, err
	}
	var tally uint64
	for i := 0; i < len(v) && i < 8; i++ {
		tally |= uint64(v[i]) << (8 * uint(i))
	}
	return tally, nil
}

func (m *badgerManager) HasGovernanceVote(proposal [32]byte, voter common.Address) (bool, error) {
	_, ok, err := m.get(familyKey(FamilyGovVotes, voteKey(proposal, voter)))
	return ok, err
}

func (m *badgerManager) GetGovernanceParams() (GovernanceParamsRecord, bool, error) {
	v, ok, err := m.get(familyKey(FamilyMeta, metaKeyGovernance))
	if err != nil || !ok {
		return GovernanceParamsRecord{}, ok, err
	}
	return decodeGovernanceParamsRecord(v), true, nil
}

func (m *badgerManager) SetGovernanceParams(p GovernanceParamsRecord) error {
	return m.put(familyKey(FamilyMeta, metaKeyGovernance), p.encode())
}

func (m *badgerManager) GetGenesisHash() (common.Hash, bool, error) {
	v, ok, err := m.get(familyKey(FamilyMeta, metaKeyGenesis))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v), true, nil
}

func (m *badgerManager) SetGenesisHash(h common.Hash) error {
	return m.put(familyKey(FamilyMeta, metaKeyGenesis), h[:])
}

func (m *badgerManager) NewBatch() Batch {
	return &badgerBatch{txn: m.db.NewTransaction(true)}
}

// badgerBatch stages every family's writes on a single badger.Txn so
// Commit applies (and fsyncs, since SyncWrites is on) all of them as one
// atomic unit, per spec.md §4.1's cross-family atomicity requirement.
type badgerBatch struct {
	txn  *badger.Txn
	errs []error
}

func (b *badgerBatch) set(key, value []byte) {
	if err := b.txn.Set(key, value); err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *badgerBatch) PutBlock(block *types.Block) {
	b.set(familyKey(FamilyBlocks, block.Hash().Bytes()), block.Encode())
}

func (b *badgerBatch) PutHeightIndex(height uint32, hash common.Hash) {
	b.set(familyKey(FamilyHeights, heightKey(height)), hash[:])
}

func (b *badgerBatch) PutAccount(addr common.Address, acc *types.AccountState) {
	b.set(familyKey(FamilyAccounts, addr[:]), acc.Encode())
}

func (b *badgerBatch) PutReferralIndex(code [8]byte, addr common.Address) {
	b.set(familyKey(FamilyReferralIndex, referralCodeKey(code)), addr[:])
}

func (b *badgerBatch) PutGovernanceTally(proposal [32]byte, tally uint64) {
	v := make([]byte, 8)
	for i := 0; i < 8; i++ {
		v[i] = byte(tally >> (8 * uint(i)))
	}
	b.set(familyKey(FamilyGovTallies, proposalKey(proposal)), v)
}

func (b *badgerBatch) PutGovernanceVote(proposal [32]byte, voter common.Address) {
	b.set(familyKey(FamilyGovVotes, voteKey(proposal, voter)), []byte{1})
}

func (b *badgerBatch) SetTip(hash common.Hash) {
	b.set(familyKey(FamilyMeta, metaKeyTip), hash[:])
}

func (b *badgerBatch) Commit() error {
	defer b.txn.Discard()
	if len(b.errs) > 0 {
		return b.errs[0]
	}
	return b.txn.Commit(nil)
}
