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

// Package state is the account-state view used by one apply_block call: a
// read-through cache over the chain store, staging every dirty account in
// memory so a whole block's worth of debits/credits/referral bindings can
// be assembled before anything is written, then flushed onto the store's
// Batch in one shot. This mirrors the klaytn state package's StateDB
// acting as the mutable working set in front of the trie database, with
// the trie replaced by the flat account family in database.DBManager.
package state

import (
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/storage/database"
)

// AccountStore is the dirty-tracking working set for one block application.
// It is not safe for concurrent use; one AccountStore is created per
// apply_block call and discarded afterward (§5: "no suspension may occur"
// within one block-apply call, so no locking is needed internally).
type AccountStore struct {
	db    database.DBManager
	cache map[common.Address]*types.AccountState
	dirty map[common.Address]bool
}

func New(db database.DBManager) *AccountStore {
	return &AccountStore{
		db:    db,
		cache: make(map[common.Address]*types.AccountState),
		dirty: make(map[common.Address]bool),
	}
}

// Get returns the account state for addr, reading through to the store on
// first access and caching a mutable copy. A missing account reads as the
// zero value, per spec.md §3's "a missing account is semantically equal to
// all-zero".
func (s *AccountStore) Get(addr common.Address) (*types.AccountState, error) {
	if acc, ok := s.cache[addr]; ok {
		return acc, nil
	}
	acc, err := s.db.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.AccountState{}
	}
	s.cache[addr] = acc
	return acc, nil
}

// MarkDirty records that the account returned by a prior Get has been
// mutated in place and must be flushed on Commit.
func (s *AccountStore) MarkDirty(addr common.Address) {
	s.dirty[addr] = true
}

// DirtyAddresses returns every address mutated since the store was created,
// in no particular order; the caller (the C5 apply pipeline) sorts or
// iterates as needed before staging onto a Batch.
func (s *AccountStore) DirtyAddresses() []common.Address {
	out := make([]common.Address, 0, len(s.dirty))
	for addr := range s.dirty {
		out = append(out, addr)
	}
	return out
}

// Account returns the in-memory working copy without touching the store,
// used by the apply pipeline once every account involved has already been
// loaded via Get.
func (s *AccountStore) Account(addr common.Address) *types.AccountState {
	return s.cache[addr]
}
