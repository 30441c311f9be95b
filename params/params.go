// Copyright 2015 The go-ethereum Authors
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

// Package params collects the named consensus constants (C4/C5) in the
// teacher's style of params/protocol_params.go: one place naming every
// magic number that would otherwise be scattered through the core.
package params

const (
	// KnotsPerKOT is the smallest-unit scale: 1 KOT = 10^8 knots.
	KnotsPerKOT uint64 = 100_000_000

	// Reward phase boundaries, in block height.
	RewardPhase1End uint64 = 262_800
	RewardPhase2End uint64 = 525_600

	// ReferralBonusBps is 5% of the base reward, protocol-minted.
	ReferralBonusBps uint64 = 500

	// ReferrerActivityWindow is ~48h at 60s blocks (glossary).
	ReferrerActivityWindow uint64 = 2880

	// RetargetInterval is the number of blocks between difficulty retargets.
	RetargetInterval uint64 = 60

	// DefaultRetargetSecs is the expected wall-clock time for one retarget
	// window (60 blocks at a 60s target spacing).
	DefaultRetargetSecs uint64 = 3600

	// MedianTimePastWindow is the number of ancestor timestamps examined.
	MedianTimePastWindow = 11

	// MaxFutureBlockTime bounds how far into the future a block timestamp
	// may be, in seconds.
	MaxFutureBlockTime uint64 = 7200

	// PoncRoundsMin/Max bound the governance-controlled mixing round count.
	PoncRoundsMin uint32 = 256
	PoncRoundsMax uint32 = 2048
	// PoncRoundsDefault is used until governance sets a value.
	PoncRoundsDefault uint32 = 512

	// GovernanceCapBpsMin/Max/Default bound cap_bps.
	GovernanceCapBpsMin     uint32 = 500
	GovernanceCapBpsMax     uint32 = 2000
	GovernanceCapBpsDefault uint32 = 1000

	// MempoolMaxSize is the pool-bound eviction threshold (§4.5 step 5).
	MempoolMaxSize = 5000

	// MinFee is the minimum fee, both for mempool admission and block
	// structural validation (§4.4 step 5).
	MinFee uint64 = 1

	// RBFBumpDivisor implements "new fee >= existing * 110%"
	// as new_fee >= existing + max(existing/10, 1).
	RBFBumpDivisor uint64 = 10

	// MaxPoWThreads bounds the sync-path PoW-verification worker pool,
	// a fixed consensus parameter per spec.md §5.
	MaxPoWThreads = 8

	// MaxOutboundPeers/MaxInboundPeers are the P2P connection caps (§4.6).
	MaxOutboundPeers = 32
	MaxInboundPeers  = 128

	// MaxKnownAddresses bounds the persisted known-peer set (§4.6).
	MaxKnownAddresses = 2048
	// MaxGossipedAddresses bounds newly-learned entries per Addr broadcast.
	MaxGossipedAddresses = 64
	// MaxAddrEntries is the wire-level cap on one Addr message (§4.6 table).
	MaxAddrEntries = 1000

	// MaxHeadersPerMessage/MaxBlocksPerMessage are wire caps (§4.6 table).
	MaxHeadersPerMessage = 2000
	MaxBlocksPerMessage  = 500

	// MaxFrameSize is the hard cap on one framed P2P message (§4.6).
	MaxFrameSize = 1 << 20 // 1 MiB

	// HandshakeTimeoutSecs bounds the Version->Challenge->Response->Verack
	// exchange.
	HandshakeTimeoutSecs = 10
	// DialTimeoutSecs bounds an outbound connection attempt.
	DialTimeoutSecs = 3
)

// GenesisAllFFSentinel is the placeholder miner address that MUST never be
// used in a real deployment (Open Question (b)); a node refuses to start
// if its configured genesis miner decodes to this value.
var GenesisAllFFSentinel = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// GovernanceParams are persisted in the chain store's meta family and are
// adjustable by on-chain governance signaling within the bounds above.
type GovernanceParams struct {
	PoncRounds   uint32
	CapBps       uint32
	RetargetSecs uint64
}

func DefaultGovernanceParams() GovernanceParams {
	return GovernanceParams{
		PoncRounds:   PoncRoundsDefault,
		CapBps:       GovernanceCapBpsDefault,
		RetargetSecs: DefaultRetargetSecs,
	}
}

// Clamp enforces the bounds named above, used whenever a governance update
// is about to be persisted.
func (g *GovernanceParams) Clamp() {
	if g.PoncRounds < PoncRoundsMin {
		g.PoncRounds = PoncRoundsMin
	}
	if g.PoncRounds > PoncRoundsMax {
		g.PoncRounds = PoncRoundsMax
	}
	if g.CapBps < GovernanceCapBpsMin {
		g.CapBps = GovernanceCapBpsMin
	}
	if g.CapBps > GovernanceCapBpsMax {
		g.CapBps = GovernanceCapBpsMax
	}
}
