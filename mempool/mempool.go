// Copyright 2018 The klaytn Authors
// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from core/tx_pool.go (2018/06/04).
// Modified and improved for the klaytn development.

// Package mempool holds pending, not-yet-applied transactions (C6): a
// deduplicated map keyed by txid, a (sender, nonce) index supporting
// replace-by-fee, and a bounded size enforced by lowest-fee-per-byte
// eviction. All priority arithmetic is integer-only so two nodes with an
// identical pool agree on an identical top-N ordering.
package mempool

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/knotcoin/knotcoin/params"
	"github.com/rcrowley/go-metrics"
)

var (
	ErrFeeTooLow          = errors.New("mempool: fee below minimum")
	ErrAlreadyKnown       = errors.New("mempool: transaction already known")
	ErrReplaceUnderpriced = errors.New("mempool: replacement fee too low")
	ErrBadSignature       = errors.New("mempool: signature does not verify")
	ErrBadSender          = errors.New("mempool: sender does not match derived address")
	ErrZeroAmount         = errors.New("mempool: zero amount on a non-signal, non-registration transfer")
	ErrMathOverflow       = errors.New("mempool: amount+fee overflows")
	ErrReferrerMisplaced  = errors.New("mempool: referrer field set on a non-first transaction")
)

var (
	admittedCounter = metrics.NewRegisteredCounter("mempool/admitted", nil)
	rejectedCounter = metrics.NewRegisteredCounter("mempool/rejected", nil)
	evictedCounter  = metrics.NewRegisteredCounter("mempool/evicted", nil)
	poolSizeGauge   = metrics.NewRegisteredGauge("mempool/size", nil)
)

type senderNonce struct {
	sender common.Address
	nonce  uint64
}

// entry is one pooled transaction plus its arrival time, used by
// PruneExpired.
type entry struct {
	tx          *types.Transaction
	txID        common.Hash
	feePerByte  uint64 // fee*10000/size, integer fixed-point
	size        int
	receivedAt  time.Time
}

// Pool is a deduplicated, fee-priority transaction pool. All exported
// methods lock internally and MUST NOT be called while already holding the
// pool's lock; hold times are lookup/update only, never across I/O, per the
// concurrency model.
type Pool struct {
	mu sync.Mutex

	byTxID       map[common.Hash]*entry
	bySenderNonce map[senderNonce]common.Hash

	maxSize int
}

func New() *Pool {
	return &Pool{
		byTxID:        make(map[common.Hash]*entry),
		bySenderNonce: make(map[senderNonce]common.Hash),
		maxSize:       params.MempoolMaxSize,
	}
}

func feePerByteScaled(fee uint64, size int) uint64 {
	if size <= 0 {
		return 0
	}
	return fee * 10000 / uint64(size)
}

// Add runs admission (spec.md §4.5 steps 1-6) and inserts tx if accepted.
func (p *Pool) Add(tx *types.Transaction) error {
	if err := validateStructure(tx); err != nil {
		return err
	}
	if tx.Fee < params.MinFee {
		return ErrFeeTooLow
	}

	txID := tx.ID()
	enc := tx.Encode()
	size := len(enc)
	feeScaled := feePerByteScaled(tx.Fee, size)
	sn := senderNonce{sender: tx.Sender, nonce: tx.Nonce}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byTxID[txID]; ok {
		rejectedCounter.Inc(1)
		return ErrAlreadyKnown
	}

	if existingID, ok := p.bySenderNonce[sn]; ok {
		existing := p.byTxID[existingID]
		bump := existing.tx.Fee / params.RBFBumpDivisor
		if bump < 1 {
			bump = 1
		}
		if tx.Fee < existing.tx.Fee+bump {
			rejectedCounter.Inc(1)
			return ErrReplaceUnderpriced
		}
		delete(p.byTxID, existingID)
	}

	p.byTxID[txID] = &entry{tx: tx, txID: txID, feePerByte: feeScaled, size: size, receivedAt: time.Now()}
	p.bySenderNonce[sn] = txID

	if len(p.byTxID) > p.maxSize {
		p.evictLowest()
	}

	admittedCounter.Inc(1)
	poolSizeGauge.Update(int64(len(p.byTxID)))
	return nil
}

// evictLowest removes the entry with the lowest feePerByte, tiebroken by
// the lexicographically smallest txid for a deterministic stable choice.
// Caller must hold p.mu.
func (p *Pool) evictLowest() {
	var worstID common.Hash
	var worst *entry
	first := true
	for id, e := range p.byTxID {
		if first || e.feePerByte < worst.feePerByte ||
			(e.feePerByte == worst.feePerByte && id.Hex() < worstID.Hex()) {
			worst, worstID, first = e, id, false
		}
	}
	if worst == nil {
		return
	}
	delete(p.byTxID, worstID)
	delete(p.bySenderNonce, senderNonce{sender: worst.tx.Sender, nonce: worst.tx.Nonce})
	evictedCounter.Inc(1)
}

// GetTopTransactions returns up to n pending transactions ordered by
// fee_per_byte_scaled descending, txid ascending on ties, without removing
// them.
func (p *Pool) GetTopTransactions(n int) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]*entry, 0, len(p.byTxID))
	for _, e := range p.byTxID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].feePerByte != entries[j].feePerByte {
			return entries[i].feePerByte > entries[j].feePerByte
		}
		return entries[i].txID.Hex() < entries[j].txID.Hex()
	})
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]*types.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].tx
	}
	return out
}

// RemoveConfirmed drops every txid in ids from the pool, called after a
// block applies.
func (p *Pool) RemoveConfirmed(ids []common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		e, ok := p.byTxID[id]
		if !ok {
			continue
		}
		delete(p.byTxID, id)
		delete(p.bySenderNonce, senderNonce{sender: e.tx.Sender, nonce: e.tx.Nonce})
	}
	poolSizeGauge.Update(int64(len(p.byTxID)))
}

// PruneExpired evicts pool entries older than maxAge, an addition beyond
// the base spec to bound unbounded memory growth from transactions that
// never confirm and are never replaced.
func (p *Pool) PruneExpired(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, e := range p.byTxID {
		if e.receivedAt.Before(cutoff) {
			delete(p.byTxID, id)
			delete(p.bySenderNonce, senderNonce{sender: e.tx.Sender, nonce: e.tx.Nonce})
		}
	}
	poolSizeGauge.Update(int64(len(p.byTxID)))
}

// HighestPendingNonceForSender returns the highest nonce currently pooled
// for addr and whether any transaction from addr is pooled at all.
func (p *Pool) HighestPendingNonceForSender(addr common.Address) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var max uint64
	found := false
	for sn := range p.bySenderNonce {
		if sn.sender == addr && (!found || sn.nonce > max) {
			max = sn.nonce
			found = true
		}
	}
	return max, found
}

// Size returns the current pool size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byTxID)
}

func validateStructure(tx *types.Transaction) error {
	if tx.Amount == 0 && !tx.IsGovernanceSignal() && !tx.IsReferralRegistration() {
		return ErrZeroAmount
	}
	if tx.Amount > ^uint64(0)-tx.Fee {
		return ErrMathOverflow
	}
	if crypto.DeriveAddress(tx.SenderPublicKey) != tx.Sender {
		return ErrBadSender
	}
	if tx.HasReferrer && tx.Nonce != 1 {
		return ErrReferrerMisplaced
	}
	if !tx.VerifySignature() {
		return ErrBadSignature
	}
	return nil
}
