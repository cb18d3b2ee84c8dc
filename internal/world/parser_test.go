package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/tile"
)

func TestParseLayer_Basic(t *testing.T) {
	l, err := ParseLayer("###\n#.#\n###", tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, l.Width())
	assert.Equal(t, 3, l.Height())
	assert.Equal(t, tile.KindFloor, l.TileAt(1, 1).Kind)
	assert.Equal(t, tile.KindWall, l.TileAt(0, 0).Kind)
	assert.Equal(t, '#', l.SymbolAt(2, 2))
	assert.Equal(t, []string{"###", "#.#", "###"}, l.Rows())
}

func TestParseLayer_OutOfBoundsIsVoid(t *testing.T) {
	l, err := ParseLayer("..\n..", tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}, {100, 100}, {-5, -5}} {
		assert.Equal(t, tile.KindVoid, l.TileAt(p[0], p[1]).Kind, "клетка %v вне слоя", p)
		assert.Equal(t, BlankSymbol, l.SymbolAt(p[0], p[1]))
	}
}

func TestParseLayer_RaggedLinesPaddedWithVoid(t *testing.T) {
	ctx := NewParseContext()
	l, err := ParseLayer("#####\n#.\n#####", tile.DefaultCatalog(), 0, ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, l.Width(), "ширина: длина самой длинной строки")
	assert.Equal(t, tile.KindVoid, l.TileAt(3, 1).Kind)
	assert.False(t, l.TileAt(3, 1).Walkable)
	assert.Equal(t, []vec.Vec3{{X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1}}, ctx.Unresolved[BlankSymbol])
}

func TestParseLayer_QuotedTextIsFloor(t *testing.T) {
	l, err := ParseLayer(`#"###"#`+"\n"+`#######`, tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)

	for x := 1; x <= 5; x++ {
		assert.Equal(t, tile.KindFloor, l.TileAt(x, 0).Kind, "клетка %d внутри кавычек", x)
	}
	assert.Equal(t, '"', l.SymbolAt(1, 0), "символ сохраняется для отрисовки")
	assert.Equal(t, '#', l.SymbolAt(2, 0))
	assert.Equal(t, tile.KindWall, l.TileAt(0, 0).Kind)
	assert.Equal(t, tile.KindWall, l.TileAt(6, 0).Kind)
}

func TestParseLayer_QuoteStateResetsPerLine(t *testing.T) {
	l, err := ParseLayer("\"##\n###", tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, tile.KindFloor, l.TileAt(1, 0).Kind, "незакрытая кавычка действует до конца строки")
	assert.Equal(t, tile.KindWall, l.TileAt(0, 1).Kind, "на следующей строке кавычек уже нет")
}

func TestParseLayer_Markers(t *testing.T) {
	ctx := NewParseContext()
	ctx.AddSpawnMarker('@', "default")
	ctx.AddNPCMarker('n')
	ctx.AddObjectMarker('c')

	l, err := ParseLayer("#####\n#@nc#\n#@..#\n#####", tile.DefaultCatalog(), 2, ctx)
	require.NoError(t, err)

	assert.Equal(t, vec.Vec3{X: 1, Y: 1, Layer: 2}, ctx.Spawns["default"])
	assert.Equal(t, vec.Vec3{X: 1, Y: 2, Layer: 2}, ctx.Spawns["default:2"], "повторный маркер не теряется")
	assert.Equal(t, []vec.Vec3{{X: 2, Y: 1, Layer: 2}}, ctx.NPCSlots)
	assert.Equal(t, []vec.Vec3{{X: 3, Y: 1, Layer: 2}}, ctx.ObjectSlots)

	for x := 1; x <= 3; x++ {
		assert.Equal(t, tile.KindFloor, l.TileAt(x, 1).Kind)
		assert.Equal(t, '.', l.SymbolAt(x, 1), "маркер рисуется как пол")
	}
}

func TestParseLayer_UnknownSymbols(t *testing.T) {
	ctx := NewParseContext()
	l, err := ParseLayer("#?#\n#.?", tile.DefaultCatalog(), 0, ctx)
	require.NoError(t, err)

	assert.Equal(t, tile.KindUnknown, l.TileAt(1, 0).Kind)
	assert.False(t, l.TileAt(1, 0).Walkable, "неизвестный символ непроходим")
	assert.Equal(t, '?', l.SymbolAt(1, 0))
	assert.Equal(t, []vec.Vec3{{X: 1, Y: 0}, {X: 2, Y: 1}}, ctx.Unresolved['?'])
	assert.Equal(t, []rune{'?'}, ctx.UnresolvedSymbols())
}

func TestParseLayer_Errors(t *testing.T) {
	_, err := ParseLayer("", tile.DefaultCatalog(), 0, nil)
	assert.ErrorIs(t, err, ErrEmptyLayer)

	_, err = ParseLayer("\n\n", tile.DefaultCatalog(), 0, nil)
	assert.ErrorIs(t, err, ErrEmptyLayer)

	_, err = ParseLayer("...", nil, 0, nil)
	assert.ErrorIs(t, err, ErrNilCatalog)
}

func TestParseLayer_CRLF(t *testing.T) {
	l, err := ParseLayer("#.#\r\n#.#\r\n", tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Width())
	assert.Equal(t, 2, l.Height())
}
