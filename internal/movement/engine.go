// Package movement проверяет и выполняет шаги игроков по тайловой сетке
package movement

import (
	"errors"
	"fmt"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

var (
	// ErrBadDirection: направление не входит в UP/DOWN/LEFT/RIGHT
	ErrBadDirection = errors.New("неизвестное направление")
	// ErrTravelling: игрок едет в метро и не может ходить
	ErrTravelling = errors.New("игрок в пути")
)

// Result описывает исход шага
type Result struct {
	From    vec.Vec3
	To      vec.Vec3 // позиция после шага и триггера
	Moved   bool
	Blocked bool
	Trigger trigger.Kind // пусто, если триггера не было
	Fired   bool
	Dead    bool
}

// Engine: валидация и выполнение шагов
type Engine struct {
	registry *world.Registry
	dispatch *trigger.Dispatch
	sink     events.Sink
	metro    trigger.MetroCoordinator
	policy   ObstaclePolicy
	logger   *logging.Logger
}

// Option настраивает движок
type Option func(*Engine)

// WithObstaclePolicy задаёт политику шага в препятствие
func WithObstaclePolicy(p ObstaclePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithMetro подключает координатор метро для триггеров входа в метро
func WithMetro(m trigger.MetroCoordinator) Option {
	return func(e *Engine) { e.metro = m }
}

// NewEngine создаёт движок
func NewEngine(registry *world.Registry, dispatch *trigger.Dispatch, sink events.Sink, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		dispatch: dispatch,
		sink:     sink,
		policy:   BlockOnObstacle,
		logger:   logging.GetGameLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy возвращает текущую политику препятствий
func (e *Engine) Policy() ObstaclePolicy { return e.policy }

func (e *Engine) emit(ev events.GameEvent) {
	if err := e.sink.Enqueue(ev); err != nil {
		e.logger.Warn("Событие %s для %s не поставлено в очередь: %v", ev.Type, ev.SessionID, err)
	}
}

// MoveNamed разбирает направление и выполняет шаг
func (e *Engine) MoveNamed(p *player.Player, name string) (Result, error) {
	dir, err := ParseDirection(name)
	if err != nil {
		e.emit(events.Error(p.SessionID, events.CodeBadDirection, "Неизвестное направление"))
		return Result{}, fmt.Errorf("%w: %q", ErrBadDirection, name)
	}
	return e.Move(p, dir)
}

// Move выполняет шаг игрока. Ошибки валидации возвращаются и дублируются
// событием error для сессии игрока; позиция при этом не меняется.
func (e *Engine) Move(p *player.Player, dir Direction) (Result, error) {
	mapID, from := p.Where()
	res := Result{From: from, To: from}

	dx, dy, ok := dir.Delta()
	if !ok {
		e.emit(events.Error(p.SessionID, events.CodeBadDirection, "Неизвестное направление"))
		return res, fmt.Errorf("%w: %d", ErrBadDirection, int(dir))
	}
	if _, travelling := p.Travelling(); travelling {
		e.emit(events.Error(p.SessionID, events.CodeTravelling, "Вы в пути"))
		return res, ErrTravelling
	}

	m, ok := e.registry.Map(mapID)
	if !ok {
		e.emit(events.Error(p.SessionID, events.CodeUnknownMap, "Карта недоступна"))
		return res, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound)
	}

	to := from.Add(dx, dy)
	if !m.IsWalkableAt(to) {
		e.emit(events.Error(p.SessionID, events.CodeObstacle, "Путь прегражден"))
		if e.policy == BlockOnObstacle {
			res.Blocked = true
			return res, nil
		}
		e.logger.Debug("Шаг %s в препятствие %s на карте %s выполнен по старой политике", p.Name, to, mapID)
	}

	hpBefore, _ := p.Health()
	p.MoveTo(to)
	res.Moved = true

	if t, ok := m.TriggerAt(to); ok {
		res.Trigger = t.Kind()
		res.Fired = e.dispatch.Fire(t, p, m.TriggerContext(e.metro))
		if res.Fired {
			e.logger.Debug("Триггер %s сработал для %s в %s", t.Kind(), p.Name, to)
		}
	}

	res.To = p.Pos()
	e.emit(events.ToSession(p.SessionID, events.TypePlayerPosition, events.NewPositionPayload(mapID, res.To)))

	if hp, _ := p.Health(); hp != hpBefore {
		e.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, StatsOf(p)))
	}
	if p.IsDead() {
		res.Dead = true
		e.emit(events.ToSession(p.SessionID, events.TypeGameOver, events.GameOverPayload{Reason: "Вы погибли"}))
		e.logger.Info("💀 Игрок %s погиб на карте %s в %s", p.Name, mapID, res.To)
	}
	return res, nil
}

// StatsOf собирает stats-update для игрока
func StatsOf(p *player.Player) events.StatsPayload {
	hp, maxHP := p.Health()
	return events.StatsPayload{HP: hp, MaxHP: maxHP, Level: p.Level(), Credits: p.Credits()}
}
