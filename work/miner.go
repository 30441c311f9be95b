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

package work

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/knotcoin/knotcoin/blockchain"
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus/ponc"
	"github.com/knotcoin/knotcoin/log"
	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/reward"
	"github.com/knotcoin/knotcoin/storage/database"
)

var logger = log.NewModuleLogger(log.Work)

var ErrNoTip = errors.New("work: chain store has no tip; genesis must be applied first")

// maxTxsPerBlock bounds how many mempool entries one template packs,
// independent of the pool's own size bound.
const maxTxsPerBlock = 5000

// Miner builds block templates from the current tip and mempool state and
// mines them across one CpuAgent per thread, applying whichever agent
// finds a solution first and discarding the rest.
type Miner struct {
	db   database.DBManager
	pool *mempool.Pool

	agents   []*CpuAgent
	resultCh chan *Result

	running int32
	quit    chan struct{}

	minerAddress common.Address
	referrer     *common.Address
}

func NewMiner(db database.DBManager, pool *mempool.Pool) *Miner {
	return &Miner{db: db, pool: pool}
}

// Start launches threads agents, each owning its own PoW engine, and begins
// feeding them templates built from minerAddress. referrer, if non-nil, is
// bound to minerAddress's account on its first mined block.
func (m *Miner) Start(minerAddress common.Address, threads int, referrer *common.Address) error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return nil
	}
	if threads < 1 {
		threads = 1
	}
	if threads > params.MaxPoWThreads {
		threads = params.MaxPoWThreads
	}

	m.minerAddress = minerAddress
	m.referrer = referrer
	m.resultCh = make(chan *Result, threads)
	m.quit = make(chan struct{})

	m.agents = make([]*CpuAgent, threads)
	for i := range m.agents {
		agent := NewCpuAgent(ponc.New())
		agent.SetReturnCh(m.resultCh)
		agent.Start()
		m.agents[i] = agent
	}

	go m.loop()
	logger.Info("mining started", "threads", threads, "miner", minerAddress.Hex())
	return nil
}

func (m *Miner) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	close(m.quit)
	for _, agent := range m.agents {
		agent.Stop()
	}
	m.agents = nil
	logger.Info("mining stopped")
}

func (m *Miner) IsMining() bool { return atomic.LoadInt32(&m.running) == 1 }

// HashRate sums every agent's reported hashrate.
func (m *Miner) HashRate() float64 {
	var total float64
	for _, agent := range m.agents {
		total += agent.GetHashRate()
	}
	return total
}

func (m *Miner) loop() {
	if err := m.dispatch(); err != nil {
		logger.Error("failed to build initial mining template", "err", err)
	}

	for {
		select {
		case <-m.quit:
			return
		case res := <-m.resultCh:
			if res == nil || res.Block == nil {
				continue
			}
			if _, err := blockchain.ApplyBlock(m.db, ponc.New(), res.Block, m.referrer, time.Now()); err != nil {
				if !errors.Is(err, blockchain.ErrAlreadyKnown) {
					logger.Warn("mined block failed to apply", "err", err, "height", res.Block.Height())
				}
			} else {
				txids := make([]common.Hash, len(res.Block.Transactions))
				for i, tx := range res.Block.Transactions {
					txids[i] = tx.ID()
				}
				m.pool.RemoveConfirmed(txids)
				logger.Info("mined block applied", "height", res.Block.Height(), "hash", res.Block.Hash().Hex())
			}
			if err := m.dispatch(); err != nil {
				logger.Error("failed to build next mining template", "err", err)
			}
		}
	}
}

// buildTemplate assembles the next block template extending the current
// tip: difficulty retarget every params.RetargetInterval blocks, the top
// pending mempool transactions, and the current governance-configured
// round count.
func (m *Miner) buildTemplate() (*types.Block, uint32, error) {
	tip, ok, err := m.db.GetTip()
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrNoTip
	}
	parent, err := m.db.GetBlock(tip)
	if err != nil {
		return nil, 0, err
	}
	if parent == nil {
		return nil, 0, ErrNoTip
	}

	govParams, ok, err := m.db.GetGovernanceParams()
	if err != nil {
		return nil, 0, err
	}
	def := params.DefaultGovernanceParams()
	rounds, retargetSecs := def.PoncRounds, def.RetargetSecs
	if ok {
		rounds, retargetSecs = govParams.PoncRounds, govParams.RetargetSecs
	}

	height := parent.Height() + 1
	target := parent.Header.DifficultyTarget
	if height%uint32(params.RetargetInterval) == 0 {
		start, err := m.ancestor(tip, uint32(params.RetargetInterval))
		if err == nil && start != nil {
			elapsed := uint64(parent.Header.Timestamp) - uint64(start.Header.Timestamp)
			target = reward.RetargetDifficulty(target, elapsed, retargetSecs)
		}
	}

	txs := m.pool.GetTopTransactions(maxTxsPerBlock)

	header := &types.Header{
		Version:          blockchain.HeaderVersion,
		PreviousHash:     tip,
		MerkleRoot:       types.MerkleRoot(txs),
		Timestamp:        uint32(time.Now().Unix()),
		DifficultyTarget: target,
		Nonce:            0,
		Height:           height,
		MinerAddress:     m.minerAddress,
	}
	return &types.Block{Header: header, Transactions: txs}, rounds, nil
}

// ancestor walks back n blocks from hash (inclusive of hash) and returns
// the block reached.
func (m *Miner) ancestor(hash common.Hash, n uint32) (*types.Block, error) {
	cur := hash
	var blk *types.Block
	for i := uint32(0); i <= n; i++ {
		b, err := m.db.GetBlock(cur)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return blk, nil
		}
		blk = b
		if b.Height() == 0 {
			break
		}
		cur = b.Header.PreviousHash
	}
	return blk, nil
}

func (m *Miner) dispatch() error {
	if len(m.agents) == 0 {
		return nil
	}
	block, rounds, err := m.buildTemplate()
	if err != nil {
		return err
	}
	task := &Task{Block: block, PoncRounds: rounds}
	for _, agent := range m.agents {
		agent.Work() <- task
	}
	return nil
}
