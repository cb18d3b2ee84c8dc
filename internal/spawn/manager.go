// Package spawn размещает NPC и объекты на достижимых клетках карт
package spawn

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

var (
	// ErrNoReachableTiles: на карте нет достижимых клеток
	ErrNoReachableTiles = errors.New("нет достижимых клеток")
	// ErrNoTemplates: не передано ни одного шаблона
	ErrNoTemplates = errors.New("нет шаблонов для размещения")
)

// Manager размещает сущности. Выборка клеток и шаблонов: равномерная,
// с возвращением: две сущности могут оказаться в одной клетке.
type Manager struct {
	registry *world.Registry
	reach    *world.ReachabilityAnalyzer
	npcs     *npc.Factory
	objects  *world.ObjectFactory
	sink     events.Sink
	logger   *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option настраивает менеджер
type Option func(*Manager)

// WithRand задаёт источник случайности (для воспроизводимых тестов)
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// NewManager создаёт менеджер
func NewManager(registry *world.Registry, reach *world.ReachabilityAnalyzer, npcs *npc.Factory, objects *world.ObjectFactory, sink events.Sink, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		reach:    reach,
		npcs:     npcs,
		objects:  objects,
		sink:     sink,
		logger:   logging.GetWorldLogger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) intn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

func (m *Manager) emit(ev events.GameEvent) {
	if err := m.sink.Enqueue(ev); err != nil {
		m.logger.Warn("Событие %s не поставлено в очередь: %v", ev.Type, err)
	}
}

func (m *Manager) candidates(mapID string, templates []string, count int) (*world.Map, []vec.Vec3, error) {
	wm, ok := m.registry.Map(mapID)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound)
	}
	if len(templates) == 0 {
		return nil, nil, ErrNoTemplates
	}
	if count <= 0 {
		return wm, nil, nil
	}
	tiles, err := m.reach.ReachableList(mapID)
	if err != nil {
		return nil, nil, err
	}
	if len(tiles) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", mapID, ErrNoReachableTiles)
	}
	return wm, tiles, nil
}

// SpawnRandomNPCs создаёт count NPC на случайных достижимых клетках
func (m *Manager) SpawnRandomNPCs(mapID string, templates []string, count int) ([]*npc.NPC, error) {
	wm, tiles, err := m.candidates(mapID, templates, count)
	if err != nil || len(tiles) == 0 {
		return nil, err
	}

	spawned := make([]*npc.NPC, 0, count)
	for i := 0; i < count; i++ {
		pos := tiles[m.intn(len(tiles))]
		tmpl := templates[m.intn(len(templates))]
		n, err := m.npcs.Create(tmpl, pos)
		if err != nil {
			return spawned, err
		}
		wm.NPCs.Add(n)
		spawned = append(spawned, n)
	}

	m.logger.Info("👾 На карте %s появилось NPC: %d", mapID, len(spawned))
	m.emit(events.NPCList(wm))
	return spawned, nil
}

// SpawnRandomObjects создаёт count объектов на случайных достижимых клетках
func (m *Manager) SpawnRandomObjects(mapID string, templates []string, count int) ([]*world.Object, error) {
	wm, tiles, err := m.candidates(mapID, templates, count)
	if err != nil || len(tiles) == 0 {
		return nil, err
	}

	spawned := make([]*world.Object, 0, count)
	for i := 0; i < count; i++ {
		pos := tiles[m.intn(len(tiles))]
		tmpl := templates[m.intn(len(templates))]
		o, err := m.objects.Create(tmpl, pos)
		if err != nil {
			return spawned, err
		}
		wm.Objects.Add(o)
		spawned = append(spawned, o)
	}

	m.logger.Info("📦 На карте %s появилось объектов: %d", mapID, len(spawned))
	m.emit(events.MapObjects(wm))
	return spawned, nil
}

// SpawnAtSlots заполняет клетки, отмеченные маркерами NPC и объектов.
// Шаблон для каждого слота выбирается случайно; пустой список шаблонов
// оставляет соответствующие слоты пустыми.
func (m *Manager) SpawnAtSlots(mapID string, npcTemplates, objectTemplates []string) (int, error) {
	wm, ok := m.registry.Map(mapID)
	if !ok {
		return 0, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound)
	}

	total := 0
	if slots := wm.NPCSlots(); len(slots) > 0 && len(npcTemplates) > 0 {
		for _, pos := range slots {
			n, err := m.npcs.Create(npcTemplates[m.intn(len(npcTemplates))], pos)
			if err != nil {
				return total, err
			}
			wm.NPCs.Add(n)
			total++
		}
		m.emit(events.NPCList(wm))
	}
	if slots := wm.ObjectSlots(); len(slots) > 0 && len(objectTemplates) > 0 {
		for _, pos := range slots {
			o, err := m.objects.Create(objectTemplates[m.intn(len(objectTemplates))], pos)
			if err != nil {
				return total, err
			}
			wm.Objects.Add(o)
			total++
		}
		m.emit(events.MapObjects(wm))
	}
	return total, nil
}
