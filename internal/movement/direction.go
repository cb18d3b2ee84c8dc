package movement

import (
	"fmt"
	"strings"
)

// Direction: одно из четырёх направлений шага
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var deltas = [...][2]int{
	Up:    {0, -1},
	Down:  {0, 1},
	Left:  {-1, 0},
	Right: {1, 0},
}

var names = [...]string{
	Up:    "UP",
	Down:  "DOWN",
	Left:  "LEFT",
	Right: "RIGHT",
}

// Valid проверяет, что направление известно
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

// Delta возвращает смещение (dx, dy). Ось y направлена вниз.
func (d Direction) Delta() (dx, dy int, ok bool) {
	if !d.Valid() {
		return 0, 0, false
	}
	return deltas[d][0], deltas[d][1], true
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return names[d]
}

// ParseDirection разбирает название направления без учёта регистра
func ParseDirection(s string) (Direction, error) {
	for d, name := range names {
		if strings.EqualFold(s, name) {
			return Direction(d), nil
		}
	}
	return 0, fmt.Errorf("неизвестное направление %q", s)
}

// ObstaclePolicy определяет, что делать с позицией при шаге в препятствие
type ObstaclePolicy int

const (
	// BlockOnObstacle: шаг отклоняется, позиция не меняется
	BlockOnObstacle ObstaclePolicy = iota
	// CommitOnObstacle: старое поведение: ошибка отправляется, но шаг всё равно выполняется
	CommitOnObstacle
)

func (p ObstaclePolicy) String() string {
	if p == CommitOnObstacle {
		return "commit"
	}
	return "block"
}

// ParseObstaclePolicy разбирает "block" или "commit"; пустая строка: block
func ParseObstaclePolicy(s string) (ObstaclePolicy, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return BlockOnObstacle, nil
	case "commit":
		return CommitOnObstacle, nil
	}
	return 0, fmt.Errorf("неизвестная политика препятствий %q", s)
}
