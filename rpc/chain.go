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
//
// This file is derived from api/api_public_blockchain.go's PublicBlockChainAPI
// (2018/06/04): a thin method set over a Backend, one exported method per
// RPC call, returning plain structs the façade marshals to JSON.

package rpc

import (
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
)

// PublicBlockChainAPI exposes the chain-read group of spec.md §6's RPC
// surface: getblockcount, getblockhash, getblock, getblockbyheight,
// getrecentblocks, get_all_miners.
type PublicBlockChainAPI struct {
	b *Backend
}

func NewPublicBlockChainAPI(b *Backend) *PublicBlockChainAPI {
	return &PublicBlockChainAPI{b: b}
}

// BlockInfo is the JSON-facing view of a block: the header fields plus
// derived hashes and a decimal-rendered miner address, so the façade never
// has to reach back into blockchain/types itself.
type BlockInfo struct {
	Hash             string   `json:"hash"`
	PreviousHash     string   `json:"previousHash"`
	MerkleRoot       string   `json:"merkleRoot"`
	Height           uint32   `json:"height"`
	Timestamp        uint32   `json:"timestamp"`
	Nonce            uint64   `json:"nonce"`
	DifficultyTarget string   `json:"difficultyTarget"`
	Miner            string   `json:"miner"`
	TxCount          int      `json:"txCount"`
	TxIDs            []string `json:"txIds"`
}

func toBlockInfo(b *types.Block) *BlockInfo {
	txids := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		txids[i] = tx.ID().Hex()
	}
	target := common.BytesToHash(b.Header.DifficultyTarget[:])
	return &BlockInfo{
		Hash:             b.Hash().Hex(),
		PreviousHash:     b.Header.PreviousHash.Hex(),
		MerkleRoot:       b.Header.MerkleRoot.Hex(),
		Height:           b.Height(),
		Timestamp:        b.Header.Timestamp,
		Nonce:            b.Header.Nonce,
		DifficultyTarget: target.Hex(),
		Miner:            crypto.EncodeAddress(b.Header.MinerAddress),
		TxCount:          len(b.Transactions),
		TxIDs:            txids,
	}
}

// GetBlockCount returns the height of the current tip.
func (api *PublicBlockChainAPI) GetBlockCount() (uint32, *Error) {
	tip, ok, err := api.b.DB.GetTip()
	if err != nil {
		return 0, internal(err)
	}
	if !ok {
		return 0, internal(errNoTip)
	}
	blk, err := api.b.DB.GetBlock(tip)
	if err != nil {
		return 0, internal(err)
	}
	if blk == nil {
		return 0, internal(errNoTip)
	}
	return blk.Height(), nil
}

// GetBlockHash returns the block hash at height, hex-encoded.
func (api *PublicBlockChainAPI) GetBlockHash(height uint32) (string, *Error) {
	hash, ok, err := api.b.DB.GetBlockHashByHeight(height)
	if err != nil {
		return "", internal(err)
	}
	if !ok {
		return "", invalidParams("no block at that height")
	}
	return hash.Hex(), nil
}

// GetBlock looks up a block by its hex-encoded hash.
func (api *PublicBlockChainAPI) GetBlock(hashHex string) (*BlockInfo, *Error) {
	hash, err := common.HashFromHex(hashHex)
	if err != nil {
		return nil, invalidParams("malformed block hash")
	}
	blk, err := api.b.DB.GetBlock(hash)
	if err != nil {
		return nil, internal(err)
	}
	if blk == nil {
		return nil, invalidParams("unknown block hash")
	}
	return toBlockInfo(blk), nil
}

// GetBlockByHeight looks up a block by height.
func (api *PublicBlockChainAPI) GetBlockByHeight(height uint32) (*BlockInfo, *Error) {
	hash, ok, err := api.b.DB.GetBlockHashByHeight(height)
	if err != nil {
		return nil, internal(err)
	}
	if !ok {
		return nil, invalidParams("no block at that height")
	}
	return api.GetBlock(hash.Hex())
}

// GetRecentBlocks walks back from the tip returning up to n blocks, newest
// first.
func (api *PublicBlockChainAPI) GetRecentBlocks(n int) ([]*BlockInfo, *Error) {
	if n <= 0 {
		return nil, invalidParams("n must be positive")
	}
	tip, ok, err := api.b.DB.GetTip()
	if err != nil {
		return nil, internal(err)
	}
	if !ok {
		return nil, internal(errNoTip)
	}
	out := make([]*BlockInfo, 0, n)
	cur := tip
	for i := 0; i < n; i++ {
		blk, err := api.b.DB.GetBlock(cur)
		if err != nil {
			return nil, internal(err)
		}
		if blk == nil {
			break
		}
		out = append(out, toBlockInfo(blk))
		if blk.Height() == 0 {
			break
		}
		cur = blk.Header.PreviousHash
	}
	return out, nil
}

// MinerInfo summarizes one account's mining history, for get_all_miners.
type MinerInfo struct {
	Address          string `json:"address"`
	TotalBlocksMined uint64 `json:"totalBlocksMined"`
	LastMinedHeight  uint64 `json:"lastMinedHeight"`
	GovernanceWeight uint64 `json:"governanceWeight"`
}

// GetAllMiners iterates every account with a nonzero mined-block count.
// This walks the full account family; callers should expect O(accounts)
// cost, matching klaytn's equivalent account-iteration RPCs.
func (api *PublicBlockChainAPI) GetAllMiners() ([]*MinerInfo, *Error) {
	var out []*MinerInfo
	err := api.b.DB.IterAccounts(func(addr common.Address, acc *types.AccountState) bool {
		if acc.TotalBlocksMined > 0 {
			out = append(out, &MinerInfo{
				Address:          crypto.EncodeAddress(addr),
				TotalBlocksMined: acc.TotalBlocksMined,
				LastMinedHeight:  acc.LastMinedHeight,
				GovernanceWeight: acc.GovernanceWeight,
			})
		}
		return true
	})
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}
