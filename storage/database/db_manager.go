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

// Package database is the chain store (C2): an embedded ordered KV holding
// blocks, the height->hash index, account states, the referral-code index,
// governance tallies/votes, and metadata (tip, params), with atomic
// multi-family batches. Families are modeled as key prefixes within one
// badger instance (badger has no native column-family concept), grounded
// on klaytn's storage/database/db_manager.go family partitioning.
package database

import (
	"encoding/binary"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
)

// Family is a named partition of the key space.
type Family byte

const (
	FamilyBlocks        Family = 'b'
	FamilyHeights       Family = 'h'
	FamilyAccounts      Family = 'a'
	FamilyMeta          Family = 'm'
	FamilyReferralIndex Family = 'r'
	FamilyGovTallies    Family = 't'
	FamilyGovVotes      Family = 'v'
)

func familyKey(f Family, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(f)
	copy(out[1:], key)
	return out
}

// Well-known keys within FamilyMeta.
var (
	metaKeyTip        = []byte("tip")
	metaKeyGovernance = []byte("governance")
	metaKeyGenesis    = []byte("genesis")
)

// DBManager is the chain store's public interface (C2). Every write that
// must be atomic with other writes goes through a Batch and Batch.Commit,
// never through the individual setters below (those are conveniences for
// single-key reads/writes used outside of block application, e.g. RPC
// reads or node bootstrap).
type DBManager interface {
	Close()

	GetAccount(addr common.Address) (*types.AccountState, error)
	PutAccount(addr common.Address, acc *types.AccountState) error
	IterAccounts(fn func(addr common.Address, acc *types.AccountState) bool) error

	GetBlock(hash common.Hash) (*types.Block, error)
	HasBlock(hash common.Hash) (bool, error)
	GetBlockHashByHeight(height uint32) (common.Hash, bool, error)

	GetTip() (common.Hash, bool, error)

	GetAddressByReferralCode(code [8]byte) (common.Address, bool, error)

	GetGovernanceTally(proposal [32]byte) (uint64, error)
	HasGovernanceVote(proposal [32]byte, voter common.Address) (bool, error)

	GetGovernanceParams() (p GovernanceParamsRecord, ok bool, err error)
	SetGovernanceParams(p GovernanceParamsRecord) error

	GetGenesisHash() (common.Hash, bool, error)
	SetGenesisHash(h common.Hash) error

	// NewBatch starts a new atomic multi-family write. All writes staged on
	// the batch become visible together, with the WAL flushed before
	// Commit returns, or none of them become visible at all.
	NewBatch() Batch

	Compact() error
}

// GovernanceParamsRecord is the persisted form of params.GovernanceParams.
type GovernanceParamsRecord struct {
	PoncRounds   uint32
	CapBps       uint32
	RetargetSecs uint64
}

func (g GovernanceParamsRecord) encode() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.PoncRounds)
	binary.LittleEndian.PutUint32(buf[4:8], g.CapBps)
	binary.LittleEndian.PutUint64(buf[8:16], g.RetargetSecs)
	return buf
}

func decodeGovernanceParamsRecord(b []byte) GovernanceParamsRecord {
	var g GovernanceParamsRecord
	if len(b) >= 4 {
		g.PoncRounds = binary.LittleEndian.Uint32(b[0:4])
	}
	if len(b) >= 8 {
		g.CapBps = binary.LittleEndian.Uint32(b[4:8])
	}
	if len(b) >= 16 {
		g.RetargetSecs = binary.LittleEndian.Uint64(b[8:16])
	}
	return g
}

// Batch accumulates writes across every family and commits them as one
// atomic, durably-flushed unit (spec.md §4.1's "one batch writing the
// block bytes, the height->hash entry, updated account rows, referral
// index entries, tally updates, vote-exists flags, and the new tip MUST
// commit as one atomic unit").
type Batch interface {
	PutBlock(block *types.Block)
	PutHeightIndex(height uint32, hash common.Hash)
	PutAccount(addr common.Address, acc *types.AccountState)
	PutReferralIndex(code [8]byte, addr common.Address)
	PutGovernanceTally(proposal [32]byte, tally uint64)
	PutGovernanceVote(proposal [32]byte, voter common.Address)
	SetTip(hash common.Hash)

	// Commit flushes every staged write as one atomic unit with a durable
	// WAL fsync barrier. On error, none of the staged writes are visible.
	Commit() error
}

func heightKey(height uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], height) // big-endian so iteration order == height order
	return b[:]
}

func referralCodeKey(code [8]byte) []byte  { return code[:] }
func proposalKey(proposal [32]byte) []byte { return proposal[:] }

func voteKey(proposal [32]byte, voter common.Address) []byte {
	out := make([]byte, 32+common.AddressLength)
	copy(out, proposal[:])
	copy(out[32:], voter[:])
	return out
}
