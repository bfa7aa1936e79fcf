package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := Options{
		Deterministic:     Bool(false),
		LevelSet:          Float64(0.25),
		OvershootBoundary: Bool(true),
		Eta:               Float64(0.1),
		Domain:            Span(-1, 1),
	}

	cp := orig.Clone()
	require.NotNil(t, cp.LevelSet)
	assert.Equal(t, *orig.LevelSet, *cp.LevelSet)

	*cp.Deterministic = true
	*cp.LevelSet = 9
	cp.Domain[1] = 5

	assert.False(t, *orig.Deterministic)
	assert.Equal(t, 0.25, *orig.LevelSet)
	assert.Equal(t, [2]float64{-1, 1}, *orig.Domain)
}

func TestOptionsCloneNilFields(t *testing.T) {
	t.Parallel()

	cp := Options{}.Clone()
	assert.Nil(t, cp.Deterministic)
	assert.Nil(t, cp.LevelSet)
	assert.Nil(t, cp.OvershootBoundary)
	assert.Nil(t, cp.Eta)
	assert.Nil(t, cp.Domain)
}
