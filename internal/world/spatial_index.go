package world

import (
	"fmt"
	"sync"

	"github.com/annel0/tileworld/internal/vec"
)

const (
	// DefaultMaxObjects: сколько сущностей узел держит до разбиения
	DefaultMaxObjects = 8
	// DefaultMaxDepth: максимальная глубина дерева
	DefaultMaxDepth = 6
	// DefaultQueryRadius: радиус, в пределах которого QueryNear ничего не пропускает
	DefaultQueryRadius = 1
)

// Locatable: сущность, которую можно положить в пространственный индекс
type Locatable interface {
	GetID() string
	Location() vec.Vec3
}

// box: прямоугольник клеток, границы включительно
type box struct {
	minX, minY, maxX, maxY int
}

func (b box) contains(x, y int) bool {
	return x >= b.minX && x <= b.maxX && y >= b.minY && y <= b.maxY
}

func (b box) encloses(o box) bool {
	return o.minX >= b.minX && o.maxX <= b.maxX && o.minY >= b.minY && o.maxY <= b.maxY
}

// quadNode: узел дерева квадрантов
type quadNode struct {
	bounds   box
	depth    int
	items    []Locatable
	children []*quadNode
}

type indexKey struct {
	mapID string
	layer int
}

type indexedTree struct {
	root  *quadNode
	count int
}

// SpatialIndex: дерево квадрантов на каждый слой каждой карты. Каждая сущность
// занимает квадрат радиуса radius вокруг своей клетки и хранится в самом
// глубоком узле, целиком его содержащем. Поэтому QueryNear возвращает всех,
// кто ближе radius по Чебышёву, плюс, возможно, лишних.
type SpatialIndex struct {
	registry   *Registry
	radius     int
	maxObjects int
	maxDepth   int

	mu    sync.RWMutex
	trees map[indexKey]*indexedTree
}

// NewSpatialIndex создаёт индекс. Границы корня берутся из карты в реестре;
// registry может быть nil, тогда границы считаются по самим сущностям.
func NewSpatialIndex(registry *Registry, radius int) *SpatialIndex {
	if radius < 0 {
		radius = DefaultQueryRadius
	}
	return &SpatialIndex{
		registry:   registry,
		radius:     radius,
		maxObjects: DefaultMaxObjects,
		maxDepth:   DefaultMaxDepth,
		trees:      make(map[indexKey]*indexedTree),
	}
}

// Radius возвращает радиус гарантированного поиска
func (si *SpatialIndex) Radius() int { return si.radius }

func (si *SpatialIndex) footprint(e Locatable) box {
	p := e.Location()
	return box{minX: p.X - si.radius, minY: p.Y - si.radius, maxX: p.X + si.radius, maxY: p.Y + si.radius}
}

func (si *SpatialIndex) rootBounds(mapID string, entities []Locatable) box {
	if si.registry != nil {
		if m, ok := si.registry.Map(mapID); ok {
			w, h := m.Bounds()
			return box{maxX: max(w-1, 0), maxY: max(h-1, 0)}
		}
	}
	if len(entities) == 0 {
		return box{}
	}
	first := entities[0].Location()
	b := box{minX: first.X, minY: first.Y, maxX: first.X, maxY: first.Y}
	for _, e := range entities[1:] {
		p := e.Location()
		b.minX, b.minY = min(b.minX, p.X), min(b.minY, p.Y)
		b.maxX, b.maxY = max(b.maxX, p.X), max(b.maxY, p.Y)
	}
	return b
}

// Rebuild целиком заменяет дерево слоя. Сущности с другого слоя пропускаются.
func (si *SpatialIndex) Rebuild(mapID string, layer int, entities []Locatable) {
	root := &quadNode{bounds: si.rootBounds(mapID, entities)}
	count := 0
	for _, e := range entities {
		if e == nil || e.Location().Layer != layer {
			continue
		}
		si.insert(root, e)
		count++
	}

	si.mu.Lock()
	si.trees[indexKey{mapID: mapID, layer: layer}] = &indexedTree{root: root, count: count}
	si.mu.Unlock()
}

// Clear удаляет все деревья карты
func (si *SpatialIndex) Clear(mapID string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	for k := range si.trees {
		if k.mapID == mapID {
			delete(si.trees, k)
		}
	}
}

func (si *SpatialIndex) insert(n *quadNode, e Locatable) {
	fp := si.footprint(e)
	for {
		if n.children == nil {
			n.items = append(n.items, e)
			if len(n.items) > si.maxObjects && n.depth < si.maxDepth {
				si.split(n)
			}
			return
		}
		child := childFor(n, fp)
		if child == nil {
			n.items = append(n.items, e)
			return
		}
		n = child
	}
}

func (si *SpatialIndex) split(n *quadNode) {
	b := n.bounds
	if b.maxX == b.minX && b.maxY == b.minY {
		return
	}
	midX := b.minX + (b.maxX-b.minX)/2
	midY := b.minY + (b.maxY-b.minY)/2
	d := n.depth + 1
	n.children = []*quadNode{
		{bounds: box{minX: b.minX, minY: b.minY, maxX: midX, maxY: midY}, depth: d},
		{bounds: box{minX: midX + 1, minY: b.minY, maxX: b.maxX, maxY: midY}, depth: d},
		{bounds: box{minX: b.minX, minY: midY + 1, maxX: midX, maxY: b.maxY}, depth: d},
		{bounds: box{minX: midX + 1, minY: midY + 1, maxX: b.maxX, maxY: b.maxY}, depth: d},
	}

	items := n.items
	n.items = nil
	for _, e := range items {
		if child := childFor(n, si.footprint(e)); child != nil {
			si.insert(child, e)
			continue
		}
		n.items = append(n.items, e)
	}
}

// childFor возвращает потомка, целиком содержащего fp, или nil
func childFor(n *quadNode, fp box) *quadNode {
	for _, c := range n.children {
		if c.bounds.minX > c.bounds.maxX || c.bounds.minY > c.bounds.maxY {
			continue
		}
		if c.bounds.encloses(fp) {
			return c
		}
	}
	return nil
}

// QueryNear возвращает кандидатов рядом с point: сущности листа, в который
// попадает point, и всех его предков. Среди них гарантированно есть все
// сущности не дальше Radius() по Чебышёву.
func (si *SpatialIndex) QueryNear(mapID string, layer int, point vec.Vec2) []Locatable {
	si.mu.RLock()
	tree, ok := si.trees[indexKey{mapID: mapID, layer: layer}]
	si.mu.RUnlock()
	if !ok {
		return nil
	}

	var out []Locatable
	n := tree.root
	for n != nil {
		out = append(out, n.items...)
		var next *quadNode
		for _, c := range n.children {
			if c.bounds.contains(point.X, point.Y) {
				next = c
				break
			}
		}
		n = next
	}
	return out
}

// Within отбирает из кандидатов тех, кто не дальше radius по Чебышёву
func Within(candidates []Locatable, center vec.Vec3, radius int) []Locatable {
	out := make([]Locatable, 0, len(candidates))
	for _, c := range candidates {
		d := center.Chebyshev(c.Location())
		if d >= 0 && d <= radius {
			out = append(out, c)
		}
	}
	return out
}

// SpatialStats: сводка по индексу
type SpatialStats struct {
	Trees    int `json:"trees"`
	Entities int `json:"entities"`
	Nodes    int `json:"nodes"`
	MaxDepth int `json:"max_depth"`
}

func (s SpatialStats) String() string {
	return fmt.Sprintf("SpatialIndex: %d деревьев, %d сущностей, %d узлов, глубина %d",
		s.Trees, s.Entities, s.Nodes, s.MaxDepth)
}

// Stats возвращает статистику индекса
func (si *SpatialIndex) Stats() SpatialStats {
	si.mu.RLock()
	defer si.mu.RUnlock()
	var s SpatialStats
	s.Trees = len(si.trees)
	for _, t := range si.trees {
		s.Entities += t.count
		walk(t.root, func(n *quadNode) {
			s.Nodes++
			s.MaxDepth = max(s.MaxDepth, n.depth)
		})
	}
	return s
}

func walk(n *quadNode, fn func(*quadNode)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}
