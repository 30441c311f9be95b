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

package blockchain

import (
	"errors"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/reward"
	"github.com/knotcoin/knotcoin/storage/database"
)

// HeaderVersion is the wire version of every block header this node emits.
const HeaderVersion = 1

// GenesisConfig describes the single, network-wide genesis block. Every
// node on the same network MUST derive the identical genesis hash from
// the identical config.
type GenesisConfig struct {
	Timestamp        uint32
	DifficultyTarget [32]byte
	MinerAddress     common.Address
}

var (
	// ErrGenesisSentinelMiner is returned when the configured genesis miner
	// is the all-0xFF placeholder (spec.md Open Question (b)).
	ErrGenesisSentinelMiner = errors.New("blockchain: genesis miner address is the placeholder sentinel")
	// ErrGenesisZeroMiner is returned when the configured genesis miner is
	// the all-zero burn address.
	ErrGenesisZeroMiner = errors.New("blockchain: genesis miner address is the zero/burn address")
)

// BuildGenesisBlock constructs the height-0 block: previous_hash=0,
// merkle_root=0, no transactions, and the configured fixed timestamp,
// maximum-easy target and miner address.
func BuildGenesisBlock(cfg GenesisConfig) (*types.Block, error) {
	if cfg.MinerAddress == common.BytesToAddress(params.GenesisAllFFSentinel[:]) {
		return nil, ErrGenesisSentinelMiner
	}
	if cfg.MinerAddress.IsZero() {
		return nil, ErrGenesisZeroMiner
	}

	header := &types.Header{
		Version:          HeaderVersion,
		PreviousHash:     common.Hash{},
		MerkleRoot:       common.Hash{},
		Timestamp:        cfg.Timestamp,
		DifficultyTarget: cfg.DifficultyTarget,
		Nonce:            0,
		Height:           0,
		MinerAddress:     cfg.MinerAddress,
	}
	return &types.Block{Header: header, Transactions: nil}, nil
}

// MaximumEasyTarget is the all-0xFF 256-bit target used by genesis: every
// candidate hash satisfies it trivially.
var MaximumEasyTarget = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ApplyGenesis applies the genesis block directly (bypassing PoW/timestamp
// checks, which do not apply at height 0) and records its hash as the
// network's genesis hash.
func ApplyGenesis(db database.DBManager, block *types.Block) error {
	hash := block.Hash()
	if known, err := db.HasBlock(hash); err != nil {
		return err
	} else if known {
		return ErrAlreadyKnown
	}

	miner := &types.AccountState{
		Balance:          reward.BaseReward(0),
		LastMinedHeight:  0,
		TotalBlocksMined: 1,
	}

	batch := db.NewBatch()
	batch.PutBlock(block)
	batch.PutHeightIndex(0, hash)
	batch.PutAccount(block.Header.MinerAddress, miner)
	batch.SetTip(hash)
	if err := batch.Commit(); err != nil {
		return err
	}
	return db.SetGenesisHash(hash)
}
