package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
)

var (
	// ErrMapNotFound: карта с таким ID не зарегистрирована
	ErrMapNotFound = errors.New("карта не найдена")
	// ErrDuplicateMap: карта с таким ID уже зарегистрирована
	ErrDuplicateMap = errors.New("карта уже зарегистрирована")
)

// Registry: все загруженные карты по ID. Карты регистрируются при старте,
// после этого реестр только читается.
type Registry struct {
	mu     sync.RWMutex
	maps   map[string]*Map
	order  []string
	logger *logging.Logger
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		maps:   make(map[string]*Map),
		logger: logging.GetWorldLogger(),
	}
}

// Register добавляет карту
func (r *Registry) Register(m *Map) error {
	if m == nil {
		return errors.New("nil карта")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.maps[m.ID]; exists {
		return fmt.Errorf("%s: %w", m.ID, ErrDuplicateMap)
	}
	r.maps[m.ID] = m
	r.order = append(r.order, m.ID)
	w, h := m.Bounds()
	r.logger.Info("🗺️ Карта %s зарегистрирована: %d слоёв, %dx%d, зона %s", m.ID, m.LayerCount(), w, h, m.Zone)
	return nil
}

// Map возвращает карту по ID
func (r *Registry) Map(id string) (*Map, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[id]
	return m, ok
}

// Maps возвращает карты в порядке регистрации
func (r *Registry) Maps() []*Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Map, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.maps[id])
	}
	return out
}

// IsWalkable проверяет проходимость. Неизвестная карта или слой: false.
func (r *Registry) IsWalkable(mapID string, layer, x, y int) bool {
	m, ok := r.Map(mapID)
	if !ok {
		return false
	}
	return m.IsWalkable(x, y, layer)
}

// DynamicTrigger возвращает триггер, поставленный на клетку
func (r *Registry) DynamicTrigger(mapID string, x, y, layer int) (trigger.Trigger, bool) {
	m, ok := r.Map(mapID)
	if !ok {
		return nil, false
	}
	return m.DynamicTrigger(vec.Vec3{X: x, Y: y, Layer: layer})
}

// SymbolTrigger возвращает триггер символа на карте
func (r *Registry) SymbolTrigger(mapID string, symbol rune) (trigger.Trigger, bool) {
	m, ok := r.Map(mapID)
	if !ok {
		return nil, false
	}
	return m.SymbolTrigger(symbol)
}

// TriggerAt: динамический триггер клетки, иначе триггер её символа
func (r *Registry) TriggerAt(mapID string, pos vec.Vec3) (trigger.Trigger, bool) {
	m, ok := r.Map(mapID)
	if !ok {
		return nil, false
	}
	return m.TriggerAt(pos)
}

// SetDynamicTrigger ставит или снимает триггер клетки
func (r *Registry) SetDynamicTrigger(mapID string, pos vec.Vec3, t trigger.Trigger) error {
	m, ok := r.Map(mapID)
	if !ok {
		return fmt.Errorf("%s: %w", mapID, ErrMapNotFound)
	}
	m.SetDynamicTrigger(pos, t)
	return nil
}
