package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/tileworld/internal/vec"
)

// Identifiable: всё, что хранится в коллекции карты
type Identifiable interface {
	GetID() string
}

// Collection: потокобезопасный набор сущностей карты по ID
type Collection[T Identifiable] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewCollection создаёт пустую коллекцию
func NewCollection[T Identifiable]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

// Add добавляет или заменяет элемент
func (c *Collection[T]) Add(item T) {
	c.mu.Lock()
	c.items[item.GetID()] = item
	c.mu.Unlock()
}

// Get возвращает элемент по ID
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Remove удаляет элемент; false, если его не было
func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// Len возвращает число элементов
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// List возвращает снимок элементов, отсортированный по ID
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	return out
}

// Object: интерактивный объект на карте: контейнер, записка, кровать
type Object struct {
	ID              string
	TemplateID      string
	Type            string
	Action          string
	Name            string
	Text            string
	Pos             vec.Vec3
	RemoveWhenEmpty bool

	mu    sync.Mutex
	items []string
}

// GetID возвращает ID объекта
func (o *Object) GetID() string { return o.ID }

// Location возвращает позицию объекта
func (o *Object) Location() vec.Vec3 { return o.Pos }

// Items возвращает копию содержимого
func (o *Object) Items() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.items...)
}

// IsEmpty проверяет, пуст ли контейнер
func (o *Object) IsEmpty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items) == 0
}

// Loot передаёт всё содержимое в receive, удерживая мьютекс объекта всю
// передачу. Два одновременных вызова не получат один и тот же предмет.
// Возвращает число переданных предметов.
func (o *Object) Loot(receive func(items []string)) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return 0
	}
	taken := o.items
	o.items = nil
	receive(taken)
	return len(taken)
}

// ObjectTemplate описывает объект для фабрики
type ObjectTemplate struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Type            string   `yaml:"type" json:"type"`
	Action          string   `yaml:"action" json:"action"`
	Text            string   `yaml:"text" json:"text,omitempty"`
	Items           []string `yaml:"items" json:"items,omitempty"`
	RemoveWhenEmpty bool     `yaml:"remove_when_empty" json:"remove_when_empty"`
}

// NewObject создаёт объект по шаблону с новым UUID
func NewObject(t ObjectTemplate, pos vec.Vec3) *Object {
	name := t.Name
	if name == "" {
		name = t.ID
	}
	return &Object{
		ID:              uuid.NewString(),
		TemplateID:      t.ID,
		Type:            t.Type,
		Action:          t.Action,
		Name:            name,
		Text:            t.Text,
		Pos:             pos,
		RemoveWhenEmpty: t.RemoveWhenEmpty,
		items:           append([]string(nil), t.Items...),
	}
}

// ObjectFactory хранит шаблоны объектов по ID
type ObjectFactory struct {
	templates map[string]ObjectTemplate
	order     []string
}

// NewObjectFactory проверяет шаблоны; повторный ID: ошибка загрузки
func NewObjectFactory(templates []ObjectTemplate) (*ObjectFactory, error) {
	f := &ObjectFactory{templates: make(map[string]ObjectTemplate, len(templates))}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("шаблон объекта без id")
		}
		if _, dup := f.templates[t.ID]; dup {
			return nil, fmt.Errorf("повторный шаблон объекта %q", t.ID)
		}
		f.templates[t.ID] = t
		f.order = append(f.order, t.ID)
	}
	return f, nil
}

// Template возвращает шаблон по ID
func (f *ObjectFactory) Template(id string) (ObjectTemplate, bool) {
	t, ok := f.templates[id]
	return t, ok
}

// Templates возвращает шаблоны в порядке объявления
func (f *ObjectFactory) Templates() []ObjectTemplate {
	out := make([]ObjectTemplate, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.templates[id])
	}
	return out
}

// Create создаёт объект по ID шаблона
func (f *ObjectFactory) Create(templateID string, pos vec.Vec3) (*Object, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("неизвестный шаблон объекта %q", templateID)
	}
	return NewObject(t, pos), nil
}
