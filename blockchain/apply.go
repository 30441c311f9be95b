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
// This file is derived from core/state_transition.go (2018/06/04).
// Modified and improved for the klaytn development.

// Package blockchain hosts the block-application state machine (C5): the
// single entry point every applied block, whether mined locally or
// received from a peer, must pass through.
//
// The State Transitioning Model
//
// Applying a block performs, in order:
//
//  1. Timestamp validation (height > 0 only): reject stale or far-future
//     blocks against the median-time-past of recent ancestors.
//  2. PoW validation: re-derive the scratchpad and verify the header's
//     nonce solves it under the current difficulty target.
//  3. Reward assembly: credit the miner's base reward and, if eligible,
//     the miner's referrer's bonus.
//  4. First-block referrer binding: optionally bind a pending referrer to
//     a miner mining their first block.
//  5. Transaction processing, in block order.
//  6. Fee sweep: accumulated fees move to the miner.
//  7. Commit: one atomic, durably-flushed batch.
//
// Any failure in steps 1-5 aborts with no writes committed.
package blockchain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/knotcoin/knotcoin/blockchain/state"
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/consensus"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/reward"
	"github.com/knotcoin/knotcoin/storage/database"
)

// Error taxonomy (spec.md §4.4).
var (
	ErrInsufficientBalance = errors.New("blockchain: insufficient balance")
	ErrDuplicateReferrer   = errors.New("blockchain: referrer already bound")
	ErrSelfReferral        = errors.New("blockchain: cannot refer self")
	ErrMathOverflow        = errors.New("blockchain: arithmetic overflow")
	ErrInvalidPoW          = errors.New("blockchain: proof of work does not satisfy target")
	ErrBlockInPast         = errors.New("blockchain: block timestamp not after median-time-past")
	ErrBlockTooFarInFuture = errors.New("blockchain: block timestamp too far in the future")
	ErrDatabaseError       = errors.New("blockchain: database error")
	ErrAlreadyKnown        = errors.New("blockchain: block already applied")
	ErrUnknownParent       = errors.New("blockchain: previous block not found")
	ErrNotTipExtension     = errors.New("blockchain: block does not extend the current tip")
)

// InvalidNonceError reports a sender nonce mismatch.
type InvalidNonceError struct {
	Expected uint64
	Got      uint64
}

func (e *InvalidNonceError) Error() string {
	return fmt.Sprintf("blockchain: invalid nonce: expected %d, got %d", e.Expected, e.Got)
}

// InvalidTransactionError names the specific structural rule a transaction
// violated.
type InvalidTransactionError struct {
	Kind string
}

func (e *InvalidTransactionError) Error() string {
	return "blockchain: invalid transaction: " + e.Kind
}

// ApplyResult is returned on a successful ApplyBlock call.
type ApplyResult struct {
	AppliedTxIDs  []common.Hash
	FeesCollected uint64
}

// ApplyBlock runs the seven-step state machine against block, using engine
// for PoW verification and db for all reads/the final commit. pendingReferrer,
// when non-nil, is the referrer a miner asked to be bound to on their first
// mined block (supplied out-of-band by generatetoaddress/start_mining, not
// carried by the block itself).
func ApplyBlock(db database.DBManager, engine consensus.Engine, block *types.Block, pendingReferrer *common.Address, now time.Time) (*ApplyResult, error) {
	hash := block.Hash()
	height := block.Height()

	if known, err := db.HasBlock(hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	} else if known {
		return nil, ErrAlreadyKnown
	}

	if height > 0 {
		tip, ok, err := db.GetTip()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		if !ok || tip != block.PreviousHash() {
			return nil, ErrNotTipExtension
		}

		mtp, err := medianTimePast(db, block.PreviousHash())
		if err != nil {
			return nil, err
		}
		if uint64(block.Header.Timestamp) <= uint64(mtp) {
			return nil, ErrBlockInPast
		}
		if uint64(block.Header.Timestamp) > uint64(now.Unix())+params.MaxFutureBlockTime {
			return nil, ErrBlockTooFarInFuture
		}
	}

	govParams, ok, err := db.GetGovernanceParams()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if !ok {
		def := params.DefaultGovernanceParams()
		govParams = database.GovernanceParamsRecord{PoncRounds: def.PoncRounds, CapBps: def.CapBps, RetargetSecs: def.RetargetSecs}
	}

	engine.InitializeScratchpad(block.PreviousHash(), block.Header.MinerAddress)
	engine.SetRounds(govParams.PoncRounds)
	var computed common.Hash
	if !engine.ComputeAndVerify(block.Header.Prefix(), block.Header.Nonce, block.Header.DifficultyTarget, &computed) {
		return nil, ErrInvalidPoW
	}
	if gotRoot := types.MerkleRoot(block.Transactions); gotRoot != block.Header.MerkleRoot {
		return nil, &InvalidTransactionError{Kind: "merkle root mismatch"}
	}

	st := state.New(db)

	minerAddr := block.Header.MinerAddress
	miner, err := st.Get(minerAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	base := reward.BaseReward(uint64(height))
	miner.Balance += base
	miner.LastMinedHeight = uint64(height)
	miner.TotalBlocksMined++
	recomputeMinerGovernanceWeight(miner, govParams.CapBps)
	st.MarkDirty(minerAddr)

	if miner.HasReferrer {
		referrer, err := st.Get(miner.Referrer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		bonus := reward.ReferralBonus(base, referrer.TotalBlocksMined, referrer.LastMinedHeight, uint64(height))
		if bonus > 0 {
			referrer.Balance += bonus
			referrer.TotalReferralBonusEarned += bonus
			recomputeReferrerGovernanceWeight(referrer, govParams.CapBps)
			st.MarkDirty(miner.Referrer)
		}
	}

	if pendingReferrer != nil && miner.TotalBlocksMined == 1 && !miner.HasReferrer {
		if *pendingReferrer == minerAddr {
			return nil, ErrSelfReferral
		}
		miner.HasReferrer = true
		miner.Referrer = *pendingReferrer
		st.MarkDirty(minerAddr)

		upstream, err := st.Get(*pendingReferrer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		upstream.TotalReferredMiners++
		recomputeReferrerGovernanceWeight(upstream, govParams.CapBps)
		st.MarkDirty(*pendingReferrer)
	}

	seenTxIDs := make(map[common.Hash]bool, len(block.Transactions))
	votedThisBlock := make(map[[32]byte]map[common.Address]bool)
	var totalFees uint64
	appliedTxIDs := make([]common.Hash, 0, len(block.Transactions))
	govTallyDelta := make(map[[32]byte]uint64)

	for _, tx := range block.Transactions {
		txID := tx.ID()
		if seenTxIDs[txID] {
			return nil, &InvalidTransactionError{Kind: "duplicate txid in block"}
		}
		seenTxIDs[txID] = true

		if err := validateTransactionStructure(tx); err != nil {
			return nil, err
		}

		sender, err := st.Get(tx.Sender)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		if tx.Nonce != sender.Nonce+1 {
			return nil, &InvalidNonceError{Expected: sender.Nonce + 1, Got: tx.Nonce}
		}
		if sender.Balance < tx.Amount+tx.Fee {
			return nil, ErrInsufficientBalance
		}

		sender.Balance -= tx.Amount + tx.Fee
		sender.Nonce = tx.Nonce
		st.MarkDirty(tx.Sender)

		recipient, err := st.Get(tx.Recipient)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		recipient.Balance += tx.Amount
		st.MarkDirty(tx.Recipient)

		totalFees += tx.Fee

		if tx.HasGovernanceData {
			proposal := tx.GovernanceData
			alreadyVoted, err := db.HasGovernanceVote(proposal, tx.Sender)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
			}
			if votedThisBlock[proposal] == nil {
				votedThisBlock[proposal] = make(map[common.Address]bool)
			}
			if !alreadyVoted && !votedThisBlock[proposal][tx.Sender] {
				votedThisBlock[proposal][tx.Sender] = true
				govTallyDelta[proposal] += sender.GovernanceWeight
			}
		}

		if tx.Nonce == 1 && tx.HasReferrer {
			if tx.ReferrerAddress == tx.Sender {
				return nil, ErrSelfReferral
			}
			if sender.HasReferrer {
				return nil, ErrDuplicateReferrer
			}
			sender.HasReferrer = true
			sender.Referrer = tx.ReferrerAddress
			st.MarkDirty(tx.Sender)

			upstream, err := st.Get(tx.ReferrerAddress)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
			}
			upstream.TotalReferredMiners++
			recomputeReferrerGovernanceWeight(upstream, govParams.CapBps)
			st.MarkDirty(tx.ReferrerAddress)
		}

		appliedTxIDs = append(appliedTxIDs, txID)
	}

	miner.Balance += totalFees

	batch := db.NewBatch()
	batch.PutBlock(block)
	batch.PutHeightIndex(height, hash)
	batch.SetTip(hash)

	dirty := st.DirtyAddresses()
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].Hex() < dirty[j].Hex() })
	for _, addr := range dirty {
		acc := st.Account(addr)
		batch.PutAccount(addr, acc)

		code := referralCode(addr)
		if _, ok, err := db.GetAddressByReferralCode(code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		} else if !ok {
			batch.PutReferralIndex(code, addr)
		}
	}

	for proposal, delta := range govTallyDelta {
		old, err := db.GetGovernanceTally(proposal)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		batch.PutGovernanceTally(proposal, old+delta)
		for voter := range votedThisBlock[proposal] {
			batch.PutGovernanceVote(proposal, voter)
		}
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return &ApplyResult{AppliedTxIDs: appliedTxIDs, FeesCollected: totalFees}, nil
}

// validateTransactionStructure performs every stateless structural check
// from spec.md §4.4 step 5, independent of account state.
func validateTransactionStructure(tx *types.Transaction) error {
	if tx.Fee < params.MinFee {
		return &InvalidTransactionError{Kind: "fee below minimum"}
	}
	if tx.Amount == 0 && !tx.IsGovernanceSignal() && !tx.IsReferralRegistration() {
		return &InvalidTransactionError{Kind: "zero amount on a non-signal, non-registration transfer"}
	}
	if tx.Amount > ^uint64(0)-tx.Fee {
		return ErrMathOverflow
	}
	if crypto.DeriveAddress(tx.SenderPublicKey) != tx.Sender {
		return &InvalidTransactionError{Kind: "sender does not match derived address"}
	}
	if tx.HasReferrer && tx.Nonce != 1 {
		return &InvalidTransactionError{Kind: "referrer field set on a non-first transaction"}
	}
	if !tx.VerifySignature() {
		return &InvalidTransactionError{Kind: "signature does not verify"}
	}
	return nil
}

// recomputeMinerGovernanceWeight overwrites an account's governance_weight
// from its total_blocks_mined alone, used whenever the account is credited
// as a block's miner.
func recomputeMinerGovernanceWeight(acc *types.AccountState, capBps uint32) {
	acc.GovernanceWeight = reward.GovernanceWeight(acc.TotalBlocksMined, capBps)
}

// recomputeReferrerGovernanceWeight overwrites an account's governance_weight
// from its total_referred_miners alone, used whenever the account is
// credited or bound as a referrer/upstream. The single field therefore
// reflects whichever role last touched the account, not a combined total.
func recomputeReferrerGovernanceWeight(acc *types.AccountState, capBps uint32) {
	acc.GovernanceWeight = reward.GovernanceWeight(acc.TotalReferredMiners, capBps)
}

func referralCode(addr common.Address) (code [8]byte) {
	h := crypto.Sha3_256(addr[:])
	copy(code[:], h[:8])
	return code
}

// medianTimePast computes the median of up to the last
// params.MedianTimePastWindow ancestor timestamps, walking back from
// parentHash inclusive.
func medianTimePast(db database.DBManager, parentHash common.Hash) (uint32, error) {
	timestamps := make([]uint32, 0, params.MedianTimePastWindow)
	cursor := parentHash
	for i := 0; i < params.MedianTimePastWindow; i++ {
		blk, err := db.GetBlock(cursor)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		if blk == nil {
			break
		}
		timestamps = append(timestamps, blk.Header.Timestamp)
		if blk.Header.Height == 0 {
			break
		}
		cursor = blk.Header.PreviousHash
	}
	if len(timestamps) == 0 {
		return 0, nil
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2], nil
}
