package vec

import "fmt"

// Vec3: координата тайла (x, y, layer). Сравнимый тип, используется как ключ map.
type Vec3 struct {
	X     int `json:"x" yaml:"x" bson:"x"`
	Y     int `json:"y" yaml:"y" bson:"y"`
	Layer int `json:"layer" yaml:"layer" bson:"layer"`
}

// Planar отбрасывает слой
func (v Vec3) Planar() Vec2 {
	return Vec2{X: v.X, Y: v.Y}
}

// Add сдвигает координату в пределах того же слоя
func (v Vec3) Add(dx, dy int) Vec3 {
	return Vec3{X: v.X + dx, Y: v.Y + dy, Layer: v.Layer}
}

// Neighbours4 возвращает четырёх соседей на том же слое: вверх, вниз, влево, вправо
func (v Vec3) Neighbours4() [4]Vec3 {
	return [4]Vec3{
		v.Add(0, -1),
		v.Add(0, 1),
		v.Add(-1, 0),
		v.Add(1, 0),
	}
}

// Chebyshev возвращает расстояние Чебышёва, -1 если слои различаются
func (v Vec3) Chebyshev(other Vec3) int {
	if v.Layer != other.Layer {
		return -1
	}
	return v.Planar().Chebyshev(other.Planar())
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,L%d)", v.X, v.Y, v.Layer)
}
