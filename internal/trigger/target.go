package trigger

import "github.com/annel0/tileworld/internal/vec"

// Attributes: снимок атрибутов игрока, который видит предикат условного телепорта
type Attributes struct {
	HP      int
	MaxHP   int
	Level   int
	Credits int
	X       int
	Y       int
	Layer   int
	Flags   map[string]bool
}

// Target: то, на что действуют триггеры (в игре это игрок)
type Target interface {
	Pos() vec.Vec3
	Teleport(to vec.Vec3)
	Health() (hp, maxHP int)
	SetHealth(hp int)
	AdjustHealth(delta int) int
	Snapshot() Attributes
	BeginTravel(lineID string)
}

// MetroCoordinator: внешняя служба поездок, единственное, что триггер знает о движке
type MetroCoordinator interface {
	Enter(t Target, lineID string)
}

// Context передаётся обработчикам при срабатывании
type Context struct {
	MapID      string
	LayerCount int // 0: проверка слоя отключена
	Metro      MetroCoordinator
}

// layerAllowed проверяет, что слой назначения существует на карте
func (c Context) layerAllowed(layer int) bool {
	if layer < 0 {
		return false
	}
	return c.LayerCount <= 0 || layer < c.LayerCount
}
