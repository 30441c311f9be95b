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

// Package work is the mining integration (C3's consumer): CpuAgent runs the
// nonce search inner loop against a stateful PoW engine, and Miner builds
// block templates from the mempool and dispatches them to one agent per
// worker thread.
package work

import (
	"sync"
	"sync/atomic"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus"
)

// pollInterval is how often, in nonces attempted, the mining loop polls its
// cooperative stop flag (spec.md §5: "checked at least every 10000 nonces").
const pollInterval = 10_000

// Task is one block template handed to an agent: every header field is
// fixed except Nonce, which the agent searches.
type Task struct {
	Block      *types.Block
	PoncRounds uint32
}

// Result is returned on an agent's return channel: Block is nil if mining
// was stopped before a solution was found.
type Result struct {
	Task  *Task
	Block *types.Block
}

// Agent mirrors klaytn's work.Agent: something the miner can hand work to
// and that reports back on a shared channel.
type Agent interface {
	Work() chan<- *Task
	SetReturnCh(chan<- *Result)
	Start()
	Stop()
	GetHashRate() float64
}

// CpuAgent owns one consensus.PoW engine (and therefore one scratchpad) and
// runs the nonce search for whatever Task arrives on its work channel,
// re-seeding the scratchpad once per template per spec.md §4.2 and §9.
type CpuAgent struct {
	mu sync.Mutex

	workCh        chan *Task
	stop          chan struct{}
	quitCurrentOp chan struct{}
	returnCh      chan<- *Result

	engine consensus.PoW

	isMining int32
}

func NewCpuAgent(engine consensus.PoW) *CpuAgent {
	return &CpuAgent{
		engine: engine,
		stop:   make(chan struct{}, 1),
		workCh: make(chan *Task, 1),
	}
}

func (a *CpuAgent) Work() chan<- *Task            { return a.workCh }
func (a *CpuAgent) SetReturnCh(ch chan<- *Result) { a.returnCh = ch }

func (a *CpuAgent) Start() {
	if !atomic.CompareAndSwapInt32(&a.isMining, 0, 1) {
		return
	}
	go a.update()
}

func (a *CpuAgent) Stop() {
	if !atomic.CompareAndSwapInt32(&a.isMining, 1, 0) {
		return
	}
	a.stop <- struct{}{}
done:
	for {
		select {
		case <-a.workCh:
		default:
			break done
		}
	}
}

func (a *CpuAgent) update() {
out:
	for {
		select {
		case task := <-a.workCh:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
			}
			a.quitCurrentOp = make(chan struct{})
			go a.mine(task, a.quitCurrentOp)
			a.mu.Unlock()
		case <-a.stop:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
				a.quitCurrentOp = nil
			}
			a.mu.Unlock()
			break out
		}
	}
}

// mine searches the nonce space for task.Block's header, polling stop
// every pollInterval nonces (never fewer, per the consensus parameter).
func (a *CpuAgent) mine(task *Task, stop <-chan struct{}) {
	header := *task.Block.Header
	a.engine.InitializeScratchpad(header.PreviousHash, header.MinerAddress)
	a.engine.SetRounds(task.PoncRounds)

	var nonce uint64
	var out common.Hash
	for {
		select {
		case <-stop:
			a.returnCh <- &Result{Task: task, Block: nil}
			return
		default:
		}

		for i := 0; i < pollInterval; i++ {
			if a.engine.ComputeAndVerify(header.Prefix(), nonce, header.DifficultyTarget, &out) {
				solved := header
				solved.Nonce = nonce
				a.returnCh <- &Result{Task: task, Block: &types.Block{Header: &solved, Transactions: task.Block.Transactions}}
				return
			}
			nonce++
		}
	}
}

func (a *CpuAgent) GetHashRate() float64 {
	if a.engine == nil {
		return 0
	}
	return a.engine.Hashrate()
}
