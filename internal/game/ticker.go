// Package game: периодическая симуляция: опасные зоны, метро, поведение NPC
package game

import (
	"context"
	"time"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/movement"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Config: параметры тика
type Config struct {
	Interval     time.Duration
	HazardDamage int
}

// Ticker выполняет один шаг симуляции за тик
type Ticker struct {
	cfg      Config
	registry *world.Registry
	players  *player.Registry
	index    *world.SpatialIndex
	metro    *Metro
	sink     events.Sink
	logger   *logging.Logger

	tick uint64
}

// NewTicker создаёт планировщик. metro может быть nil.
func NewTicker(cfg Config, registry *world.Registry, players *player.Registry, index *world.SpatialIndex, metro *Metro, sink events.Sink) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Ticker{
		cfg:      cfg,
		registry: registry,
		players:  players,
		index:    index,
		metro:    metro,
		sink:     sink,
		logger:   logging.GetGameLogger(),
	}
}

// Run вызывает Tick с заданным интервалом, пока не отменён ctx
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.cfg.Interval)
	defer tk.Stop()
	t.logger.Info("⏱️ Игровой тик запущен, интервал %s", t.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			t.Tick()
		}
	}
}

// Tick: один шаг симуляции
func (t *Ticker) Tick() {
	t.tick++
	if t.metro != nil {
		t.metro.Advance()
	}
	for _, m := range t.registry.Maps() {
		players := t.livePlayers(m.ID)
		t.rebuildIndex(m, players)
		if m.Zone == world.ZoneHazard {
			t.applyHazard(players)
		}
		t.advanceNPCs(m)
	}
}

// TickCount возвращает номер последнего тика
func (t *Ticker) TickCount() uint64 { return t.tick }

func (t *Ticker) emit(ev events.GameEvent) {
	if err := t.sink.Enqueue(ev); err != nil {
		t.logger.Warn("Событие %s не поставлено в очередь: %v", ev.Type, err)
	}
}

func (t *Ticker) livePlayers(mapID string) []*player.Player {
	all := t.players.OnMap(mapID)
	out := all[:0]
	for _, p := range all {
		if _, travelling := p.Travelling(); travelling || p.IsDead() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (t *Ticker) rebuildIndex(m *world.Map, players []*player.Player) {
	byLayer := make(map[int][]world.Locatable, m.LayerCount())
	for _, p := range players {
		l := p.Pos().Layer
		byLayer[l] = append(byLayer[l], p)
	}
	for _, n := range m.NPCs.List() {
		l := n.Location().Layer
		byLayer[l] = append(byLayer[l], n)
	}
	for layer := 0; layer < m.LayerCount(); layer++ {
		t.index.Rebuild(m.ID, layer, byLayer[layer])
	}
}

func (t *Ticker) applyHazard(players []*player.Player) {
	if t.cfg.HazardDamage <= 0 {
		return
	}
	for _, p := range players {
		t.hurt(p, t.cfg.HazardDamage, "Вы не пережили опасную зону")
	}
}

func (t *Ticker) hurt(p *player.Player, amount int, reason string) {
	hp := p.AdjustHealth(-amount)
	t.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
	if hp <= 0 {
		t.emit(events.ToSession(p.SessionID, events.TypeGameOver, events.GameOverPayload{Reason: reason}))
		t.logger.Info("💀 Игрок %s погиб: %s", p.Name, reason)
	}
}

func (t *Ticker) advanceNPCs(m *world.Map) {
	moved := false
	for _, n := range m.NPCs.List() {
		pos := n.Location()
		snap := npc.Snapshot{
			Players:  t.nearbyPlayers(m.ID, pos),
			Walkable: m.IsWalkableAt,
			Tick:     t.tick,
		}
		act := npc.Decide(n, snap)
		switch act.Kind {
		case npc.ActionMove:
			if m.IsWalkableAt(act.To) {
				n.SetLocation(act.To)
				moved = true
			}
		case npc.ActionAttack:
			if p, ok := t.players.Get(act.TargetID); ok && !p.IsDead() && act.Damage > 0 {
				t.hurt(p, act.Damage, n.Name+" оказался сильнее")
			}
		}
	}
	if moved {
		t.emit(events.NPCList(m))
	}
}

func (t *Ticker) nearbyPlayers(mapID string, pos vec.Vec3) []npc.PlayerView {
	candidates := t.index.QueryNear(mapID, pos.Layer, pos.Planar())
	var out []npc.PlayerView
	for _, c := range world.Within(candidates, pos, t.index.Radius()) {
		if p, ok := c.(*player.Player); ok {
			out = append(out, npc.PlayerView{ID: p.SessionID, Pos: p.Pos()})
		}
	}
	return out
}
