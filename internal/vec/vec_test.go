package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3_MapKeyEquality(t *testing.T) {
	m := map[Vec3]string{{X: 1, Y: 2, Layer: 0}: "a"}

	assert.Equal(t, "a", m[Vec3{X: 1, Y: 2, Layer: 0}], "равные координаты должны давать один ключ")
	_, ok := m[Vec3{X: 1, Y: 2, Layer: 1}]
	assert.False(t, ok, "другой слой: другой ключ")
}

func TestVec3_Neighbours4(t *testing.T) {
	n := Vec3{X: 5, Y: 5, Layer: 2}.Neighbours4()

	assert.Equal(t, Vec3{X: 5, Y: 4, Layer: 2}, n[0])
	assert.Equal(t, Vec3{X: 5, Y: 6, Layer: 2}, n[1])
	assert.Equal(t, Vec3{X: 4, Y: 5, Layer: 2}, n[2])
	assert.Equal(t, Vec3{X: 6, Y: 5, Layer: 2}, n[3])
}

func TestVec3_Chebyshev(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Layer: 0}

	assert.Equal(t, 3, a.Chebyshev(Vec3{X: -3, Y: 2}))
	assert.Equal(t, -1, a.Chebyshev(Vec3{Layer: 1}), "разные слои несравнимы")
}
