package ponc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/knotcoin/knotcoin/common"
)

func TestComputeAndVerifyIsDeterministic(t *testing.T) {
	prevHash := common.Hash{1, 2, 3}
	miner := common.Address{4, 5, 6}
	target := [32]byte{}
	for i := range target {
		target[i] = 0xff
	}

	e1 := New()
	e1.InitializeScratchpad(prevHash, miner)
	e1.SetRounds(256)
	var out1 common.Hash
	e1.ComputeAndVerify([]byte("header-prefix"), 42, target, &out1)

	e2 := New()
	e2.InitializeScratchpad(prevHash, miner)
	e2.SetRounds(256)
	var out2 common.Hash
	e2.ComputeAndVerify([]byte("header-prefix"), 42, target, &out2)

	assert.Equal(t, out1, out2)
}

func TestComputeAndVerifyMaximumEasyTargetAlwaysSatisfied(t *testing.T) {
	target := [32]byte{}
	for i := range target {
		target[i] = 0xff
	}

	e := New()
	e.InitializeScratchpad(common.Hash{}, common.Address{})
	e.SetRounds(256)
	var out common.Hash
	ok := e.ComputeAndVerify([]byte("prefix"), 0, target, &out)
	assert.True(t, ok)
}

func TestComputeAndVerifyRejectsAboveTarget(t *testing.T) {
	var target [32]byte // all zero: nothing but an exact-zero hash can satisfy it

	e := New()
	e.InitializeScratchpad(common.Hash{}, common.Address{})
	e.SetRounds(256)
	var out common.Hash
	ok := e.ComputeAndVerify([]byte("prefix"), 0, target, &out)
	assert.False(t, ok)
}

func TestSetRoundsClampsToBounds(t *testing.T) {
	e := New()
	e.SetRounds(1)
	assert.Equal(t, uint32(256), e.rounds)
	e.SetRounds(1_000_000)
	assert.Equal(t, uint32(2048), e.rounds)
}

func TestDifferentSeedsProduceDifferentHashes(t *testing.T) {
	target := [32]byte{}
	for i := range target {
		target[i] = 0xff
	}

	e1 := New()
	e1.InitializeScratchpad(common.Hash{1}, common.Address{1})
	e1.SetRounds(256)
	var out1 common.Hash
	e1.ComputeAndVerify([]byte("prefix"), 0, target, &out1)

	e2 := New()
	e2.InitializeScratchpad(common.Hash{2}, common.Address{2})
	e2.SetRounds(256)
	var out2 common.Hash
	e2.ComputeAndVerify([]byte("prefix"), 0, target, &out2)

	assert.NotEqual(t, out1, out2)
}
