package world

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/tile"
)

type point struct {
	id  string
	pos vec.Vec3
}

func (p point) GetID() string      { return p.id }
func (p point) Location() vec.Vec3 { return p.pos }

func mustLayer(t *testing.T, text string) *Layer {
	t.Helper()
	l, err := ParseLayer(text, tile.DefaultCatalog(), 0, nil)
	require.NoError(t, err)
	return l
}

func ids(items []Locatable) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.GetID()] = true
	}
	return out
}

func TestSpatialIndex_SmallSetStaysAtRoot(t *testing.T) {
	si := NewSpatialIndex(nil, 1)
	si.Rebuild("m", 0, []Locatable{
		point{"a", vec.Vec3{X: 1, Y: 1}},
		point{"b", vec.Vec3{X: 9, Y: 9}},
	})

	got := ids(si.QueryNear("m", 0, vec.Vec2{X: 1, Y: 1}))
	assert.True(t, got["a"])
	assert.Equal(t, 1, si.Stats().Nodes, "до MaxObjects разбиения нет")
	assert.Empty(t, si.QueryNear("m", 1, vec.Vec2{X: 1, Y: 1}), "другой слой не индексирован")
	assert.Empty(t, si.QueryNear("other", 0, vec.Vec2{}))
}

func TestSpatialIndex_SkipsOtherLayers(t *testing.T) {
	si := NewSpatialIndex(nil, 1)
	si.Rebuild("m", 0, []Locatable{
		point{"a", vec.Vec3{X: 1, Y: 1}},
		point{"up", vec.Vec3{X: 1, Y: 1, Layer: 1}},
	})
	got := ids(si.QueryNear("m", 0, vec.Vec2{X: 1, Y: 1}))
	assert.False(t, got["up"])
	assert.Equal(t, 1, si.Stats().Entities)
}

func TestSpatialIndex_NoFalseNegatives(t *testing.T) {
	const size = 64
	rows := make([]byte, 0, size*(size+1))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			rows = append(rows, '.')
		}
		rows = append(rows, '\n')
	}
	m, err := NewMap("field", "field", ZoneSafe, []*Layer{mustLayer(t, string(rows))}, nil)
	require.NoError(t, err)
	r := NewRegistry()
	require.NoError(t, r.Register(m))

	rng := rand.New(rand.NewSource(42))
	entities := make([]Locatable, 0, 300)
	for i := 0; i < 300; i++ {
		entities = append(entities, point{
			id:  fmt.Sprintf("e%d", i),
			pos: vec.Vec3{X: rng.Intn(size+10) - 5, Y: rng.Intn(size+10) - 5},
		})
	}

	for _, radius := range []int{0, 1, 3} {
		si := NewSpatialIndex(r, radius)
		si.Rebuild("field", 0, entities)
		require.Equal(t, len(entities), si.Stats().Entities)
		assert.Greater(t, si.Stats().Nodes, 1, "дерево должно разбиться")

		for q := 0; q < 500; q++ {
			point := vec.Vec3{X: rng.Intn(size+10) - 5, Y: rng.Intn(size+10) - 5}
			got := ids(si.QueryNear("field", 0, point.Planar()))
			for _, e := range Within(entities, point, radius) {
				assert.True(t, got[e.GetID()], "радиус %d: %s рядом с %v не найден", radius, e.GetID(), point)
			}
		}
	}
}

func TestSpatialIndex_DepthLimit(t *testing.T) {
	si := NewSpatialIndex(nil, 0)
	entities := make([]Locatable, 0, 100)
	for i := 0; i < 100; i++ {
		entities = append(entities, point{id: fmt.Sprintf("e%d", i), pos: vec.Vec3{X: 0, Y: 0}})
	}
	entities = append(entities, point{id: "corner", pos: vec.Vec3{X: 1000, Y: 1000}})
	si.Rebuild("m", 0, entities)

	assert.LessOrEqual(t, si.Stats().MaxDepth, DefaultMaxDepth)
	assert.Len(t, si.QueryNear("m", 0, vec.Vec2{}), 100)
}

func TestSpatialIndex_RebuildReplaces(t *testing.T) {
	si := NewSpatialIndex(nil, 1)
	si.Rebuild("m", 0, []Locatable{point{"old", vec.Vec3{X: 1, Y: 1}}})
	si.Rebuild("m", 0, []Locatable{point{"new", vec.Vec3{X: 1, Y: 1}}})

	got := ids(si.QueryNear("m", 0, vec.Vec2{X: 1, Y: 1}))
	assert.False(t, got["old"])
	assert.True(t, got["new"])

	si.Clear("m")
	assert.Equal(t, 0, si.Stats().Trees)
}
