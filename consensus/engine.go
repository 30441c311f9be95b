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

// Package consensus defines the narrow PoW engine contract (C3) that the
// state machine, mining agent and sync path all program against, in the
// shape of klaytn's consensus.Engine/consensus.PoW interfaces.
package consensus

import "github.com/knotcoin/knotcoin/common"

// Engine is a single PoW verifier/miner instance. It is stateful (it owns a
// scratchpad) and MUST NOT be shared between goroutines; callers create one
// Engine per mining thread or per sync-path verification worker.
type Engine interface {
	// InitializeScratchpad seeds the scratchpad deterministically from
	// (prevHash, minerAddress). MUST be called once per block template
	// before ComputeAndVerify.
	InitializeScratchpad(prevHash common.Hash, minerAddress common.Address)

	// SetRounds sets the mixing round count, clamped to [256,2048] by the
	// caller (governance bounds live in package params).
	SetRounds(n uint32)

	// ComputeAndVerify mixes headerPrefix||nonce against the scratchpad and
	// reports whether the resulting hash is <= target, treating both as
	// big-endian 256-bit integers. outHash receives the computed digest.
	ComputeAndVerify(headerPrefix []byte, nonce uint64, target [32]byte, outHash *common.Hash) bool
}

// PoW is implemented by engines that additionally report a hashrate
// estimate, mirroring klaytn's consensus.PoW.
type PoW interface {
	Engine
	Hashrate() float64
}
