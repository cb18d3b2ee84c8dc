package npc

import (
	"fmt"
	"hash/fnv"

	"github.com/annel0/tileworld/internal/vec"
)

// Behavior: тег поведения NPC
type Behavior string

const (
	BehaviorAggressive Behavior = "aggressive" // Преследует и атакует игроков
	BehaviorStationary Behavior = "stationary" // Стоит на месте
	BehaviorIdle       Behavior = "idle"       // Бродит без цели
)

// AggroRange: дальность, на которой агрессивный NPC замечает игрока
const AggroRange = 5

// idlePeriod: бродячий NPC делает шаг раз в столько тиков
const idlePeriod = 4

// ActionKind: что NPC решил сделать в этот тик
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionMove
	ActionAttack
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionAttack:
		return "attack"
	default:
		return "none"
	}
}

// Action: решение NPC
type Action struct {
	Kind     ActionKind
	To       vec.Vec3
	TargetID string
	Damage   int
}

// PlayerView: то, что NPC знает об игроке
type PlayerView struct {
	ID  string
	Pos vec.Vec3
}

// Snapshot: всё, на что опирается решение. Decide не обращается к миру сам.
type Snapshot struct {
	Players  []PlayerView
	Walkable func(vec.Vec3) bool
	Tick     uint64
}

func (s Snapshot) walkable(p vec.Vec3) bool {
	return s.Walkable != nil && s.Walkable(p)
}

// State: неизменяемая копия NPC для принятия решения.
// Aggressive разрешает атаку соседнего игрока при любом поведении,
// поведение определяет только перемещение.
type State struct {
	ID         string
	Pos        vec.Vec3
	Damage     int
	Aggressive bool
}

// DecideFunc: чистая функция поведения
type DecideFunc func(n State, s Snapshot) Action

var behaviors = map[Behavior]DecideFunc{
	BehaviorAggressive: decideAggressive,
	BehaviorStationary: decideStationary,
	BehaviorIdle:       decideIdle,
}

// ParseBehavior проверяет тег поведения
func ParseBehavior(s string) (Behavior, error) {
	b := Behavior(s)
	if _, ok := behaviors[b]; !ok {
		return "", fmt.Errorf("неизвестное поведение %q", s)
	}
	return b, nil
}

// Decide выбирает действие NPC по снимку мира
func Decide(n *NPC, s Snapshot) Action {
	fn, ok := behaviors[n.Behavior]
	if !ok {
		return Action{}
	}
	return fn(State{ID: n.ID, Pos: n.Location(), Damage: n.Damage, Aggressive: n.Aggressive}, s)
}

// nearestPlayer: ближайший игрок того же слоя в пределах AggroRange
func nearestPlayer(n State, s Snapshot) (*PlayerView, int) {
	var target *PlayerView
	best := AggroRange + 1
	for i := range s.Players {
		d := n.Pos.Chebyshev(s.Players[i].Pos)
		if d < 0 || d >= best {
			continue
		}
		best = d
		target = &s.Players[i]
	}
	return target, best
}

// biteAdjacent: атака соседнего игрока, если NPC агрессивен
func biteAdjacent(n State, s Snapshot) (Action, bool) {
	if !n.Aggressive {
		return Action{}, false
	}
	target, d := nearestPlayer(n, s)
	if target == nil || d > 1 {
		return Action{}, false
	}
	return Action{Kind: ActionAttack, TargetID: target.ID, Damage: n.Damage}, true
}

func decideStationary(n State, s Snapshot) Action {
	act, _ := biteAdjacent(n, s)
	return act
}

// decideAggressive преследует ближайшего игрока. Без флага Aggressive NPC
// подходит вплотную, но не атакует.
func decideAggressive(n State, s Snapshot) Action {
	target, best := nearestPlayer(n, s)
	if target == nil {
		return Action{}
	}
	if best <= 1 {
		act, _ := biteAdjacent(n, s)
		return act
	}

	dx := sign(target.Pos.X - n.Pos.X)
	dy := sign(target.Pos.Y - n.Pos.Y)
	// по одной оси за шаг; сначала по дальней
	steps := []vec.Vec3{n.Pos.Add(dx, 0), n.Pos.Add(0, dy)}
	if abs(target.Pos.Y-n.Pos.Y) > abs(target.Pos.X-n.Pos.X) {
		steps[0], steps[1] = steps[1], steps[0]
	}
	for _, p := range steps {
		if p != n.Pos && s.walkable(p) {
			return Action{Kind: ActionMove, To: p}
		}
	}
	return Action{}
}

func decideIdle(n State, s Snapshot) Action {
	if act, ok := biteAdjacent(n, s); ok {
		return act
	}
	if s.Tick%idlePeriod != 0 {
		return Action{}
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(n.ID))
	choice := (h.Sum64() + s.Tick/idlePeriod) % 5
	if choice == 4 {
		return Action{}
	}
	to := n.Pos.Neighbours4()[choice]
	if !s.walkable(to) {
		return Action{}
	}
	return Action{Kind: ActionMove, To: to}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
