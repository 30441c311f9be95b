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

package p2p

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/knotcoin/knotcoin/blockchain"
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus/ponc"
	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/storage/database"
)

// verifiedBlock pairs a parsed block with its sync-path PoW verdict, so the
// parallel verification stage can run ahead of the sequential apply stage
// without losing per-block identity.
type verifiedBlock struct {
	block *types.Block
	ok    bool
}

// handleBlocks implements the sync algorithm of spec.md §4.6 exactly:
// parse -> discard known -> sort ascending -> check parent presence ->
// parallel PoW verify -> re-sort -> sequential apply -> request more on
// success. db and pool are shared across all peers; engine verification is
// parallelised across params.MaxPoWThreads workers, each owning its own
// PONC engine (stateless verification, safe to parallelise per spec.md §4.2/§9).
func (n *Node) handleBlocks(from *Peer, body []byte) {
	blocks, err := decodeBlockList(body, params.MaxBlocksPerMessage)
	if err != nil {
		logger.Warn("dropping malformed Blocks message", "peer", from.RemoteAddr(), "err", err)
		return
	}
	if len(blocks) == 0 {
		return
	}

	// Discard blocks already present in the store.
	fresh := make([]*types.Block, 0, len(blocks))
	for _, b := range blocks {
		known, err := n.db.HasBlock(b.Hash())
		if err != nil {
			logger.Error("store error while checking known block", "err", err)
			return
		}
		if known {
			continue
		}
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		return
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Height() < fresh[j].Height() })

	// Verify parent presence; request missing ancestors and drop orphans
	// from this batch (they will arrive again once their parent does).
	pending := make([]*types.Block, 0, len(fresh))
	for _, b := range fresh {
		if b.Height() == 0 {
			pending = append(pending, b)
			continue
		}
		has, err := n.db.HasBlock(b.PreviousHash())
		if err != nil {
			logger.Error("store error while checking parent", "err", err)
			return
		}
		if !has {
			from.enqueue(Frame{Type: MsgGetBlocks, Body: encodeHashList([]common.Hash{b.PreviousHash()})})
			continue
		}
		pending = append(pending, b)
	}
	if len(pending) == 0 {
		return
	}

	verified := parallelVerifyPoW(n.db, pending)

	sort.Slice(verified, func(i, j int) bool { return verified[i].block.Height() < verified[j].block.Height() })

	applied := 0
	for _, v := range verified {
		if !v.ok {
			logger.Warn("sync block failed PoW verification", "height", v.block.Height(), "hash", v.block.Hash().Hex())
			continue
		}
		res, err := blockchain.ApplyBlock(n.db, ponc.New(), v.block, nil, time.Now())
		if err != nil {
			if errors.Is(err, blockchain.ErrAlreadyKnown) {
				continue
			}
			logger.Warn("sync stopped: block apply failed", "height", v.block.Height(), "err", err)
			break
		}
		n.pool.RemoveConfirmed(res.AppliedTxIDs)
		applied++
	}

	if applied > 0 {
		if tip, ok, err := n.db.GetTip(); err == nil && ok {
			n.broadcastNewTip(tip)
			n.requestHeaders(from, tip)
		}
	}
}

// parallelVerifyPoW runs stateless PoW verification for every block in
// blocks across a bounded worker pool (spec.md §5: "bounded at 8 threads as
// a consensus parameter"), one fresh ponc.Engine per verification since
// these blocks come from unrelated miner addresses (spec.md §9).
func parallelVerifyPoW(db database.DBManager, blocks []*types.Block) []verifiedBlock {
	govParams, ok, err := db.GetGovernanceParams()
	rounds := params.PoncRoundsDefault
	if err == nil && ok {
		rounds = govParams.PoncRounds
	}

	out := make([]verifiedBlock, len(blocks))
	sem := make(chan struct{}, params.MaxPoWThreads)
	var wg sync.WaitGroup

	for i, b := range blocks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, b *types.Block) {
			defer wg.Done()
			defer func() { <-sem }()

			engine := ponc.New()
			engine.InitializeScratchpad(b.PreviousHash(), b.Header.MinerAddress)
			engine.SetRounds(rounds)
			var computed common.Hash
			ok := engine.ComputeAndVerify(b.Header.Prefix(), b.Header.Nonce, b.Header.DifficultyTarget, &computed)
			out[i] = verifiedBlock{block: b, ok: ok}
		}(i, b)
	}
	wg.Wait()
	return out
}

// handleTx admits a gossiped transaction into the mempool and, on success,
// re-relays it to peers that have not yet seen it.
func (n *Node) handleTx(from *Peer, body []byte) {
	tx, err := types.DecodeTransaction(body)
	if err != nil {
		logger.Debug("dropping malformed Tx message", "peer", from.RemoteAddr(), "err", err)
		return
	}
	from.MarkTx(tx.ID())
	if err := n.pool.Add(tx); err != nil {
		if !errors.Is(err, mempool.ErrAlreadyKnown) {
			logger.Debug("mempool rejected relayed tx", "err", err)
		}
		return
	}
	n.BroadcastTx(tx, from)
}
