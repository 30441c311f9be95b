package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGovernanceParamsClampBounds(t *testing.T) {
	g := GovernanceParams{PoncRounds: 1, CapBps: 1, RetargetSecs: 10}
	g.Clamp()
	assert.Equal(t, PoncRoundsMin, g.PoncRounds)
	assert.Equal(t, GovernanceCapBpsMin, g.CapBps)

	g = GovernanceParams{PoncRounds: 1_000_000, CapBps: 1_000_000, RetargetSecs: 10}
	g.Clamp()
	assert.Equal(t, PoncRoundsMax, g.PoncRounds)
	assert.Equal(t, GovernanceCapBpsMax, g.CapBps)
}

func TestDefaultGovernanceParamsAreWithinBounds(t *testing.T) {
	def := DefaultGovernanceParams()
	assert.GreaterOrEqual(t, def.PoncRounds, PoncRoundsMin)
	assert.LessOrEqual(t, def.PoncRounds, PoncRoundsMax)
	assert.GreaterOrEqual(t, def.CapBps, GovernanceCapBpsMin)
	assert.LessOrEqual(t, def.CapBps, GovernanceCapBpsMax)
}
