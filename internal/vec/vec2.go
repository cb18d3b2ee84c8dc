package vec

import "math"

// Vec2 представляет 2D координаты тайла внутри слоя
type Vec2 struct {
	X, Y int
}

// Add возвращает сумму векторов
func (v Vec2) Add(dx, dy int) Vec2 {
	return Vec2{X: v.X + dx, Y: v.Y + dy}
}

// DistanceTo вычисляет евклидово расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Chebyshev возвращает расстояние Чебышёва (max(|dx|, |dy|))
func (v Vec2) Chebyshev(other Vec2) int {
	return max(abs(v.X-other.X), abs(v.Y-other.Y))
}

// WithLayer поднимает точку в 3D на указанный слой
func (v Vec2) WithLayer(layer int) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Layer: layer}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
