package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ErdosRenyiIsSeededDeterministic(t *testing.T) {
	g1, err := Build(ErdosRenyi, 12, 0.3, 42)
	require.NoError(t, err)
	g2, err := Build(ErdosRenyi, 12, 0.3, 42)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		assert.Equal(t, g1.Neighbors(i), g2.Neighbors(i))
	}
}

func TestBuild_ScaleFreeEveryNodeHasNeighbors(t *testing.T) {
	g, err := Build(ScaleFree, 15, 0, 7)
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		assert.NotEmpty(t, g.Neighbors(i))
	}
}

func TestBuild_SmallWorldPreservesDegreeRoughly(t *testing.T) {
	g, err := Build(SmallWorld, 20, 0, 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.GreaterOrEqual(t, len(g.Neighbors(i)), 1)
	}
}

func TestBuild_UnknownTypeErrors(t *testing.T) {
	_, err := Build(Type("bogus"), 5, 0.1, 1)
	assert.Error(t, err)
}
