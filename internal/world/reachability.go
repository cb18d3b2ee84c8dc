package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zyedidia/generic/mapset"
	"github.com/zyedidia/generic/queue"

	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
)

type reachEntry struct {
	version uint64
	tiles   mapset.Set[vec.Vec3]
	list    []vec.Vec3
}

// ReachabilityAnalyzer кэширует множества клеток, достижимых от точек появления.
// Результат для карты пересчитывается после любого изменения её динамических
// триггеров или явного Invalidate.
type ReachabilityAnalyzer struct {
	registry *Registry

	mu       sync.Mutex
	cache    map[string]*reachEntry
	computes int
}

// NewReachabilityAnalyzer создаёт анализатор над реестром
func NewReachabilityAnalyzer(registry *Registry) *ReachabilityAnalyzer {
	return &ReachabilityAnalyzer{
		registry: registry,
		cache:    make(map[string]*reachEntry),
	}
}

func (a *ReachabilityAnalyzer) entry(mapID string) (*reachEntry, error) {
	m, ok := a.registry.Map(mapID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", mapID, ErrMapNotFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	version := m.TriggerVersion()
	if e, ok := a.cache[mapID]; ok && e.version == version {
		return e, nil
	}

	tiles := ComputeReachable(m)
	a.computes++
	e := &reachEntry{version: version, tiles: tiles, list: sortedTiles(tiles)}
	a.cache[mapID] = e
	return e, nil
}

// ReachableTiles возвращает множество достижимых клеток. Результат общий для
// всех вызывающих и не должен изменяться.
func (a *ReachabilityAnalyzer) ReachableTiles(mapID string) (mapset.Set[vec.Vec3], error) {
	e, err := a.entry(mapID)
	if err != nil {
		return mapset.Set[vec.Vec3]{}, err
	}
	return e.tiles, nil
}

// ReachableList возвращает достижимые клетки в порядке (слой, y, x)
func (a *ReachabilityAnalyzer) ReachableList(mapID string) ([]vec.Vec3, error) {
	e, err := a.entry(mapID)
	if err != nil {
		return nil, err
	}
	return append([]vec.Vec3(nil), e.list...), nil
}

// Invalidate сбрасывает кэш карты
func (a *ReachabilityAnalyzer) Invalidate(mapID string) {
	a.mu.Lock()
	delete(a.cache, mapID)
	a.mu.Unlock()
}

// ComputeReachable: обход в ширину сразу от всех проходимых точек появления.
// Соседи: четыре клетки того же слоя и цели телепортов, стоящих на клетке.
func ComputeReachable(m *Map) mapset.Set[vec.Vec3] {
	visited := mapset.New[vec.Vec3]()
	frontier := queue.New[vec.Vec3]()

	for _, s := range m.Spawns() {
		if m.IsWalkableAt(s) && !visited.Has(s) {
			visited.Put(s)
			frontier.Enqueue(s)
		}
	}

	dynamic := m.DynamicTriggers()
	for !frontier.Empty() {
		cur := frontier.Dequeue()

		nb := cur.Neighbours4()
		next := nb[:]
		if t, ok := dynamic[cur]; ok {
			if dst, ok := trigger.Destination(t); ok {
				next = append(next, dst)
			}
		}

		for _, n := range next {
			if visited.Has(n) || !m.IsWalkableAt(n) {
				continue
			}
			visited.Put(n)
			frontier.Enqueue(n)
		}
	}
	return visited
}

func sortedTiles(s mapset.Set[vec.Vec3]) []vec.Vec3 {
	out := make([]vec.Vec3, 0, s.Size())
	s.Each(func(p vec.Vec3) {
		out = append(out, p)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
