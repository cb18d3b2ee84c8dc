package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/tile"
)

func TestUnresolvedCount_IgnoresPadding(t *testing.T) {
	m, err := world.LoadMap("odd", "odd", world.ZoneSafe, []string{"#####\n#.??#\n##\n#####"}, tile.DefaultCatalog(), nil)
	require.NoError(t, err)

	require.Len(t, m.Unresolved(world.BlankSymbol), 3)
	assert.Equal(t, 2, unresolvedCount(m), "в счёт идут только неизвестные символы")
}
