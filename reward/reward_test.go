package reward

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseRewardPhase1RampIsNonDecreasing(t *testing.T) {
	prev := BaseReward(0)
	for h := uint64(1); h <= 262_800; h += 1000 {
		r := BaseReward(h)
		assert.GreaterOrEqual(t, r, prev, "reward must not decrease within phase 1, h=%d", h)
		prev = r
	}
	assert.Equal(t, uint64(10_000_000), BaseReward(0))
	assert.Equal(t, uint64(100_000_000), BaseReward(262_800))
}

func TestBaseRewardPhase2IsFlat(t *testing.T) {
	assert.Equal(t, uint64(100_000_000), BaseReward(262_801))
	assert.Equal(t, uint64(100_000_000), BaseReward(400_000))
	assert.Equal(t, uint64(100_000_000), BaseReward(525_600))
}

func TestBaseRewardPhase3BoundaryContinuesFromPhase2(t *testing.T) {
	assert.Equal(t, uint64(100_000_000), BaseReward(525_601))
}

func TestBaseRewardPhase3IsStrictlyDecreasing(t *testing.T) {
	var prev uint64
	first := true
	for h := uint64(525_601); h < 525_601+500_000; h += 17_000 {
		r := BaseReward(h)
		if !first {
			assert.Less(t, r, prev, "phase 3 reward must strictly decrease, h=%d", h)
		}
		prev, first = r, false
	}
}

func TestBaseRewardNeverZero(t *testing.T) {
	heights := []uint64{0, 1, 262_800, 262_801, 525_600, 525_601, 1_000_000, 10_000_000, 1_000_000_000}
	for _, h := range heights {
		assert.NotZero(t, BaseReward(h), "height %d", h)
	}
}

func TestReferralBonusInWindow(t *testing.T) {
	base := BaseReward(2)
	bonus := ReferralBonus(base, 1, 1, 2)
	assert.Equal(t, base*500/10000, bonus)
}

func TestReferralBonusOutsideWindow(t *testing.T) {
	base := BaseReward(3000)
	bonus := ReferralBonus(base, 1, 100, 3000) // 2900 blocks behind, > 2880 window
	assert.Zero(t, bonus)
}

func TestReferralBonusRequiresActualMining(t *testing.T) {
	// Open Question (a): referrer must have mined at least one block.
	base := BaseReward(10)
	bonus := ReferralBonus(base, 0, 5, 10)
	assert.Zero(t, bonus)
}

func TestReferralBonusGenesisReferrerAlwaysInWindow(t *testing.T) {
	base := BaseReward(100_000)
	bonus := ReferralBonus(base, 1, 0, 100_000)
	assert.Equal(t, base*500/10000, bonus)
}

func TestGovernanceWeightCapped(t *testing.T) {
	w := GovernanceWeight(1_000_000_000, 1000)
	assert.Equal(t, uint64(1000), w)
}

func TestGovernanceWeightScalesWithDigits(t *testing.T) {
	assert.Equal(t, uint64(100), GovernanceWeight(1, 2000))
	assert.Equal(t, uint64(200), GovernanceWeight(10, 2000))
	assert.Equal(t, uint64(300), GovernanceWeight(100, 2000))
}

func TestRetargetDifficultyDoublingTimeQuadruplesAtMost(t *testing.T) {
	old := [32]byte{}
	old[16] = 0x10 // a mid-range target

	expected := uint64(3600)
	doubled := RetargetDifficulty(old, expected*2, expected)
	quadrupled := RetargetDifficulty(old, expected*8, expected) // clamps to *4

	oldInt := new(big.Int).SetBytes(old[:])
	doubledInt := new(big.Int).SetBytes(doubled[:])
	quadrupledInt := new(big.Int).SetBytes(quadrupled[:])

	assert.True(t, doubledInt.Cmp(oldInt) > 0)
	// clamped window cannot push the new target past old*4
	maxAllowed := new(big.Int).Mul(oldInt, big.NewInt(4))
	assert.True(t, quadrupledInt.Cmp(maxAllowed) <= 0)
}

func TestRetargetDifficultyHalvingTimeQuartersAtMost(t *testing.T) {
	old := [32]byte{}
	old[16] = 0x10

	expected := uint64(3600)
	halved := RetargetDifficulty(old, expected/8, expected) // clamps to /4

	oldInt := new(big.Int).SetBytes(old[:])
	halvedInt := new(big.Int).SetBytes(halved[:])
	minAllowed := new(big.Int).Div(oldInt, big.NewInt(4))

	assert.True(t, halvedInt.Cmp(minAllowed) >= 0)
}
