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

// Package reward implements the pure per-height reward schedule, referral
// bonus, governance weight and difficulty retarget functions (C4). Every
// function here is deterministic integer arithmetic: two nodes computing
// the same inputs must reach bit-identical outputs.
package reward

import (
	"math/big"
	"math/bits"
)

// BaseReward returns the protocol block reward at height h, in knots.
//
//   phase 1 (0 <= h <= 262800):  10_000_000 + 90_000_000*h/262800   (0.1 -> 1.0 KOT ramp)
//   phase 2 (262800 < h <= 525600): 100_000_000                    (flat 1.0 KOT)
//   phase 3 (h > 525600): 100_000_000 * log2(2) / log2(h-(525600+1)+2), fixed-point.
//
// BaseReward never returns 0.
func BaseReward(h uint64) uint64 {
	switch {
	case h <= 262_800:
		return 10_000_000 + 90_000_000*h/262_800
	case h <= 525_600:
		return 100_000_000
	default:
		return phaseThreeReward(h)
	}
}

// phaseThreeReward implements the fixed-point log2 decay specified in
// spec.md §4.3: x = h-(525600+1)+2, v = (floor(log2(x)) << 16) + 16
// fractional bits built by repeated squaring, reward = (1e8 << 16) / v.
// x==2 (the first phase-3 height, 525601) is an exact-continuity special
// case: log2(2)/log2(2) == 1, so the reward must equal phase 2's flat
// 100_000_000 exactly rather than go through the fixed-point approximation.
func phaseThreeReward(h uint64) uint64 {
	x := saturatingSub(h, 525_600+1) + 2 // h - (525600+1) + 2, saturating
	if x < 1 {
		x = 1
	}
	if x == 2 {
		return 100_000_000
	}
	intBits := log2Floor(x)
	frac := uint64(0)
	f := normalizeTo63(x, intBits)
	for i := 0; i < 16; i++ {
		f = mulShift62(f, f)
		frac <<= 1
		if f >= (uint64(1) << 63) {
			frac |= 1
			f >>= 1
		}
	}
	v := (uint64(intBits) << 16) | frac
	if v == 0 {
		v = 1
	}
	num := new(big.Int).Lsh(big.NewInt(100_000_000), 16)
	den := new(big.Int).SetUint64(v)
	res := new(big.Int).Div(num, den)
	if res.Sign() <= 0 {
		return 1
	}
	if res.BitLen() > 64 {
		return ^uint64(0)
	}
	r := res.Uint64()
	if r == 0 {
		return 1
	}
	return r
}

// normalizeTo63 scales x so its top set bit sits at position 62 (i.e. value
// in [2^62, 2^63)), which is the starting point for the squaring-based
// fractional-bit extraction the spec describes.
func normalizeTo63(x uint64, intBits uint) uint64 {
	// x has its top bit at position intBits. Shift it so the top bit sits
	// at position 62, i.e. treat x as a fixed-point value x/2^intBits in
	// [1,2) and re-scale into [2^62, 2^63).
	shift := int(62) - int(intBits)
	if shift >= 0 {
		return x << uint(shift)
	}
	return x >> uint(-shift)
}

// mulShift62 computes (a*b) >> 62 via the full 128-bit product.
func mulShift62(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi<<2 | lo>>62
}

func log2Floor(x uint64) uint {
	n := uint(0)
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}

// saturatingSub computes a-b, floored at 0 instead of wrapping, protecting
// phase-3 arithmetic from pathological (tiny) heights.
func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// ReferralBonus returns the knots credited to a miner's referrer, or 0 if
// the referrer is outside the activity window. referrerTotalBlocksMined
// must be >= 1 (Open Question (a): requires actual mining activity, not
// just a recorded referrer) and referrerLastMinedHeight must be within
// ReferrerActivityWindow of currentHeight, or the referrer was the genesis
// miner (height 0).
func ReferralBonus(baseReward, referrerTotalBlocksMined, referrerLastMinedHeight, currentHeight uint64) uint64 {
	const activityWindow = 2880
	if referrerTotalBlocksMined == 0 {
		return 0
	}
	inWindow := referrerLastMinedHeight == 0 || currentHeight-referrerLastMinedHeight <= activityWindow
	if currentHeight < referrerLastMinedHeight {
		inWindow = false
	}
	if !inWindow {
		return 0
	}
	return baseReward * 500 / 10000 // 5%
}

// GovernanceWeight returns 100 + 100*(digits10(totalContributions)-1),
// capped at capBps.
func GovernanceWeight(totalContributions uint64, capBps uint32) uint64 {
	digits := digits10(totalContributions)
	w := uint64(100)
	if digits > 0 {
		w = 100 + 100*uint64(digits-1)
	}
	if w > uint64(capBps) {
		w = uint64(capBps)
	}
	return w
}

func digits10(v uint64) int {
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		v /= 10
		n++
	}
	return n
}

// RetargetDifficulty computes the new 256-bit target (big-endian) after a
// 60-block window, clamping the observed elapsed time to
// [expected/4, expected*4] before scaling, and saturating on overflow.
func RetargetDifficulty(oldTarget [32]byte, elapsedSecs, expectedSecs uint64) [32]byte {
	if expectedSecs == 0 {
		expectedSecs = 1
	}
	minElapsed := expectedSecs / 4
	maxElapsed := expectedSecs * 4
	clamped := elapsedSecs
	if clamped < minElapsed {
		clamped = minElapsed
	}
	if clamped > maxElapsed {
		clamped = maxElapsed
	}

	old := new(big.Int).SetBytes(oldTarget[:])
	num := new(big.Int).Mul(old, new(big.Int).SetUint64(clamped))
	newTarget := num.Div(num, new(big.Int).SetUint64(expectedSecs))

	maxTarget := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if newTarget.Cmp(maxTarget) > 0 {
		newTarget = maxTarget
	}
	if newTarget.Sign() < 1 {
		newTarget = big.NewInt(1)
	}

	var out [32]byte
	b := newTarget.Bytes()
	copy(out[32-len(b):], b)
	return out
}
