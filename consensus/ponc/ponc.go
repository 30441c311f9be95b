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

// Package ponc implements the memory-hard PoW mixing function (PONC):
// a per-block scratchpad seeded from (prev_hash, miner_address), mixed
// against a candidate header prefix and nonce for a governance-controlled
// number of rounds. Correctness does not depend on PONC being
// cryptographically novel, only on being deterministic, memory-bound and
// collision-resistant enough that hashes approximate a uniform draw below
// target (spec.md §4.2).
package ponc

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/pbnjay/memory"
)

// scratchpadWords is the number of 8-byte words in one engine's scratchpad.
// Sized relative to total system RAM (bounded) so the memory-hardness
// property holds on the machine actually running the node, rather than
// against a single hardcoded constant — grounded on the scratchpad-sizing
// note in the original FFI shim.
func scratchpadWords() int {
	const (
		floorWords = 1 << 14 // 128 KiB, never go below this
		ceilWords  = 1 << 20 // 8 MiB per engine, never go above this
		fraction   = 1 << 16 // use ~1/65536th of total RAM per engine
	)
	total := memory.TotalMemory()
	words := int(total / fraction / 8)
	if words < floorWords {
		words = floorWords
	}
	if words > ceilWords {
		words = ceilWords
	}
	return words
}

// Engine is a single-goroutine-owned PONC instance. Not safe for concurrent
// use; each mining thread and each sync-path verifier owns its own Engine.
type Engine struct {
	scratchpad []uint64
	rounds     uint32
	seeded     bool

	hashesDone uint64 // atomic, for Hashrate()
}

func New() *Engine {
	return &Engine{
		scratchpad: make([]uint64, scratchpadWords()),
		rounds:     512,
	}
}

func (e *Engine) SetRounds(n uint32) {
	if n < 256 {
		n = 256
	}
	if n > 2048 {
		n = 2048
	}
	e.rounds = n
}

// InitializeScratchpad deterministically fills the scratchpad from a SHA3-256
// counter-mode expansion of (prevHash, minerAddress), seeding the memory the
// mixing function will later churn through.
func (e *Engine) InitializeScratchpad(prevHash common.Hash, minerAddress common.Address) {
	var counter [8]byte
	seed := append(append([]byte(nil), prevHash[:]...), minerAddress[:]...)

	for i := 0; i < len(e.scratchpad); i += 4 {
		binary.LittleEndian.PutUint64(counter[:], uint64(i))
		block := crypto.Sha3_256(seed, counter[:])
		for j := 0; j < 4 && i+j < len(e.scratchpad); j++ {
			e.scratchpad[i+j] = binary.LittleEndian.Uint64(block[j*8 : j*8+8])
		}
	}
	e.seeded = true
}

// ComputeAndVerify runs the mixing function over headerPrefix||nonce against
// the scratchpad for e.rounds rounds, and reports whether the resulting hash
// is <= target interpreting both as big-endian 256-bit integers.
func (e *Engine) ComputeAndVerify(headerPrefix []byte, nonce uint64, target [32]byte, outHash *common.Hash) bool {
	h := e.mix(headerPrefix, nonce)
	atomic.AddUint64(&e.hashesDone, 1)
	if outHash != nil {
		*outHash = h
	}
	return !greaterThan(h, target)
}

func (e *Engine) mix(headerPrefix []byte, nonce uint64) common.Hash {
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], nonce)
	state := crypto.Sha3_256(headerPrefix, nb[:])

	n := uint64(len(e.scratchpad))
	if n == 0 {
		n = 1
	}
	for r := uint32(0); r < e.rounds; r++ {
		idx := binary.LittleEndian.Uint64(state[:8]) % n
		var word [8]byte
		if len(e.scratchpad) > 0 {
			binary.LittleEndian.PutUint64(word[:], e.scratchpad[idx])
			// fold the read word back in, so the round both depends on and
			// perturbs scratchpad contents: memory-hardness comes from this
			// read-modify-write coupling across `rounds` iterations.
			e.scratchpad[idx] ^= binary.LittleEndian.Uint64(state[24:32])
		}
		state = crypto.Sha3_256(state[:], word[:])
	}
	return state
}

func (e *Engine) Hashrate() float64 {
	return float64(atomic.LoadUint64(&e.hashesDone))
}

// greaterThan reports whether a, as a big-endian 256-bit integer, is
// strictly greater than b.
func greaterThan(a, b [32]byte) bool {
	for i := 0; i < 32; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
