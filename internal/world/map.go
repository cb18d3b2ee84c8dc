package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/tile"
)

// Zone определяет правила карты
type Zone string

const (
	ZoneSafe   Zone = "safe"   // Безопасная зона
	ZoneHazard Zone = "hazard" // Опасная зона: периодический урон
)

// ParseZone разбирает название зоны. Пустая строка: безопасная зона.
func ParseZone(s string) (Zone, error) {
	switch Zone(s) {
	case "", ZoneSafe:
		return ZoneSafe, nil
	case ZoneHazard:
		return ZoneHazard, nil
	}
	return "", fmt.Errorf("неизвестная зона %q", s)
}

// ErrNoLayers: у карты нет ни одного слоя
var ErrNoLayers = errors.New("у карты нет слоёв")

// Map: авторитетное представление одной карты. Число слоёв фиксируется при
// создании; триггеры можно менять во время работы.
type Map struct {
	ID   string
	Name string
	Zone Zone

	layers      []*Layer
	spawns      map[string]vec.Vec3
	npcSlots    []vec.Vec3
	objectSlots []vec.Vec3
	unresolved  map[rune][]vec.Vec3

	triggersMu     sync.RWMutex
	dynamic        map[vec.Vec3]trigger.Trigger
	symbolTriggers map[rune]trigger.Trigger
	triggerVersion atomic.Uint64

	Objects *Collection[*Object]
	NPCs    *Collection[*npc.NPC]
}

// NewMap собирает карту из уже разобранных слоёв. ctx может быть nil.
func NewMap(id, name string, zone Zone, layers []*Layer, ctx *ParseContext) (*Map, error) {
	if id == "" {
		return nil, errors.New("пустой идентификатор карты")
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("карта %s: %w", id, ErrNoLayers)
	}
	if ctx == nil {
		ctx = NewParseContext()
	}

	m := &Map{
		ID:             id,
		Name:           name,
		Zone:           zone,
		layers:         layers,
		spawns:         make(map[string]vec.Vec3, len(ctx.Spawns)),
		npcSlots:       append([]vec.Vec3(nil), ctx.NPCSlots...),
		objectSlots:    append([]vec.Vec3(nil), ctx.ObjectSlots...),
		unresolved:     make(map[rune][]vec.Vec3, len(ctx.Unresolved)),
		dynamic:        make(map[vec.Vec3]trigger.Trigger),
		symbolTriggers: make(map[rune]trigger.Trigger),
		Objects:        NewCollection[*Object](),
		NPCs:           NewCollection[*npc.NPC](),
	}
	for k, v := range ctx.Spawns {
		m.spawns[k] = v
	}
	for k, v := range ctx.Unresolved {
		m.unresolved[k] = append([]vec.Vec3(nil), v...)
	}
	return m, nil
}

// LoadMap разбирает тексты слоёв и собирает карту. Любая ошибка разбора
// означает, что карты нет.
func LoadMap(id, name string, zone Zone, texts []string, catalog *tile.Catalog, ctx *ParseContext) (*Map, error) {
	if ctx == nil {
		ctx = NewParseContext()
	}
	layers := make([]*Layer, 0, len(texts))
	for i, text := range texts {
		l, err := ParseLayer(text, catalog, i, ctx)
		if err != nil {
			return nil, fmt.Errorf("карта %s, слой %d: %w", id, i, err)
		}
		layers = append(layers, l)
	}
	return NewMap(id, name, zone, layers, ctx)
}

// LayerCount возвращает число слоёв
func (m *Map) LayerCount() int { return len(m.layers) }

// Layer возвращает слой по номеру
func (m *Map) Layer(i int) (*Layer, bool) {
	if i < 0 || i >= len(m.layers) {
		return nil, false
	}
	return m.layers[i], true
}

// TileAt возвращает тип тайла; несуществующий слой или клетка: tile.Void
func (m *Map) TileAt(x, y, layer int) tile.Type {
	l, ok := m.Layer(layer)
	if !ok {
		return tile.Void
	}
	return l.TileAt(x, y)
}

// SymbolAt возвращает символ клетки; несуществующий слой или клетка: BlankSymbol
func (m *Map) SymbolAt(x, y, layer int) rune {
	l, ok := m.Layer(layer)
	if !ok {
		return BlankSymbol
	}
	return l.SymbolAt(x, y)
}

// IsWalkable проверяет проходимость клетки
func (m *Map) IsWalkable(x, y, layer int) bool {
	return m.TileAt(x, y, layer).Walkable
}

// IsWalkableAt: то же для вектора
func (m *Map) IsWalkableAt(p vec.Vec3) bool {
	return m.IsWalkable(p.X, p.Y, p.Layer)
}

// Bounds возвращает максимальные ширину и высоту среди слоёв
func (m *Map) Bounds() (width, height int) {
	for _, l := range m.layers {
		width = max(width, l.Width())
		height = max(height, l.Height())
	}
	return width, height
}

// Spawn возвращает точку появления по ключу
func (m *Map) Spawn(key string) (vec.Vec3, bool) {
	p, ok := m.spawns[key]
	return p, ok
}

// SpawnKeys возвращает ключи точек появления по алфавиту
func (m *Map) SpawnKeys() []string {
	keys := make([]string, 0, len(m.spawns))
	for k := range m.spawns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Spawns возвращает точки появления в порядке SpawnKeys
func (m *Map) Spawns() []vec.Vec3 {
	keys := m.SpawnKeys()
	out := make([]vec.Vec3, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.spawns[k])
	}
	return out
}

// NPCSlots возвращает клетки, отмеченные маркерами NPC
func (m *Map) NPCSlots() []vec.Vec3 {
	return append([]vec.Vec3(nil), m.npcSlots...)
}

// ObjectSlots возвращает клетки, отмеченные маркерами объектов
func (m *Map) ObjectSlots() []vec.Vec3 {
	return append([]vec.Vec3(nil), m.objectSlots...)
}

// Unresolved возвращает клетки с символом, который не удалось разрешить
func (m *Map) Unresolved(symbol rune) []vec.Vec3 {
	return append([]vec.Vec3(nil), m.unresolved[symbol]...)
}

// UnresolvedSymbols возвращает неразрешённые символы карты по возрастанию
func (m *Map) UnresolvedSymbols() []rune {
	out := make([]rune, 0, len(m.unresolved))
	for s := range m.unresolved {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetDynamicTrigger ставит триггер на клетку; nil снимает его.
// Каждый вызов меняет версию триггеров, что сбрасывает кэш достижимости.
func (m *Map) SetDynamicTrigger(pos vec.Vec3, t trigger.Trigger) {
	m.triggersMu.Lock()
	if t == nil {
		delete(m.dynamic, pos)
	} else {
		m.dynamic[pos] = t
	}
	m.triggersMu.Unlock()
	m.triggerVersion.Add(1)
}

// DynamicTrigger возвращает триггер, поставленный на клетку
func (m *Map) DynamicTrigger(pos vec.Vec3) (trigger.Trigger, bool) {
	m.triggersMu.RLock()
	defer m.triggersMu.RUnlock()
	t, ok := m.dynamic[pos]
	return t, ok
}

// DynamicTriggers возвращает копию всех динамических триггеров
func (m *Map) DynamicTriggers() map[vec.Vec3]trigger.Trigger {
	m.triggersMu.RLock()
	defer m.triggersMu.RUnlock()
	out := make(map[vec.Vec3]trigger.Trigger, len(m.dynamic))
	for k, v := range m.dynamic {
		out[k] = v
	}
	return out
}

// SetSymbolTrigger привязывает триггер ко всем клеткам с символом symbol
func (m *Map) SetSymbolTrigger(symbol rune, t trigger.Trigger) {
	m.triggersMu.Lock()
	defer m.triggersMu.Unlock()
	if t == nil {
		delete(m.symbolTriggers, symbol)
		return
	}
	m.symbolTriggers[symbol] = t
}

// SymbolTrigger возвращает триггер символа
func (m *Map) SymbolTrigger(symbol rune) (trigger.Trigger, bool) {
	m.triggersMu.RLock()
	defer m.triggersMu.RUnlock()
	t, ok := m.symbolTriggers[symbol]
	return t, ok
}

// TriggerAt ищет триггер клетки: сначала динамический, затем по нарисованному символу
func (m *Map) TriggerAt(pos vec.Vec3) (trigger.Trigger, bool) {
	if t, ok := m.DynamicTrigger(pos); ok {
		return t, true
	}
	return m.SymbolTrigger(m.SymbolAt(pos.X, pos.Y, pos.Layer))
}

// TriggerVersion растёт при каждом изменении динамических триггеров
func (m *Map) TriggerVersion() uint64 {
	return m.triggerVersion.Load()
}

// TriggerContext возвращает контекст срабатывания триггера на этой карте
func (m *Map) TriggerContext(metro trigger.MetroCoordinator) trigger.Context {
	return trigger.Context{MapID: m.ID, LayerCount: m.LayerCount(), Metro: metro}
}
