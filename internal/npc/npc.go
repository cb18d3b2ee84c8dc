package npc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/tileworld/internal/vec"
)

// ShopItem: позиция в ассортименте торговца
type ShopItem struct {
	Item  string `yaml:"item" json:"item"`
	Price int    `yaml:"price" json:"price"`
}

// Template описывает вид NPC
type Template struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Behavior   Behavior   `yaml:"behavior" json:"behavior"`
	HP         int        `yaml:"hp" json:"hp"`
	Damage     int        `yaml:"damage" json:"damage"`
	Aggressive bool       `yaml:"aggressive" json:"aggressive"`
	Loot       []string   `yaml:"loot" json:"loot,omitempty"`
	Shop       []ShopItem `yaml:"shop" json:"shop,omitempty"`
}

// NPC: экземпляр неигрового персонажа на карте
type NPC struct {
	ID         string
	TemplateID string
	Name       string
	Behavior   Behavior
	Aggressive bool
	Damage     int
	Loot       []string
	Shop       []ShopItem

	mu    sync.RWMutex
	pos   vec.Vec3
	hp    int
	maxHP int
}

// GetID возвращает ID
func (n *NPC) GetID() string { return n.ID }

// Location возвращает текущую позицию
func (n *NPC) Location() vec.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

// SetLocation перемещает NPC
func (n *NPC) SetLocation(p vec.Vec3) {
	n.mu.Lock()
	n.pos = p
	n.mu.Unlock()
}

// Health возвращает текущее и максимальное здоровье
func (n *NPC) Health() (hp, maxHP int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hp, n.maxHP
}

// HasShop: NPC торгует
func (n *NPC) HasShop() bool { return len(n.Shop) > 0 }

// View: представление NPC для клиента
type View struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Behavior   Behavior `json:"behavior"`
	Pos        vec.Vec3 `json:"pos"`
	HP         int      `json:"hp"`
	MaxHP      int      `json:"max_hp"`
	Aggressive bool     `json:"aggressive"`
	Trader     bool     `json:"trader"`
}

// View возвращает снимок для отправки клиенту
func (n *NPC) View() View {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return View{
		ID:         n.ID,
		Name:       n.Name,
		Behavior:   n.Behavior,
		Pos:        n.pos,
		HP:         n.hp,
		MaxHP:      n.maxHP,
		Aggressive: n.Aggressive,
		Trader:     len(n.Shop) > 0,
	}
}

// Factory создаёт NPC по шаблонам
type Factory struct {
	templates map[string]Template
	order     []string
}

// NewFactory проверяет шаблоны: повторный ID или неизвестное поведение: ошибка загрузки
func NewFactory(templates []Template) (*Factory, error) {
	f := &Factory{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("шаблон NPC без id")
		}
		if _, dup := f.templates[t.ID]; dup {
			return nil, fmt.Errorf("повторный шаблон NPC %q", t.ID)
		}
		if t.Behavior == "" {
			t.Behavior = BehaviorIdle
		}
		if _, ok := behaviors[t.Behavior]; !ok {
			return nil, fmt.Errorf("шаблон NPC %q: неизвестное поведение %q", t.ID, t.Behavior)
		}
		if t.HP <= 0 {
			t.HP = 1
		}
		f.templates[t.ID] = t
		f.order = append(f.order, t.ID)
	}
	return f, nil
}

// Template возвращает шаблон по ID
func (f *Factory) Template(id string) (Template, bool) {
	t, ok := f.templates[id]
	return t, ok
}

// Templates возвращает шаблоны в порядке объявления
func (f *Factory) Templates() []Template {
	out := make([]Template, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.templates[id])
	}
	return out
}

// Create создаёт NPC по ID шаблона
func (f *Factory) Create(templateID string, pos vec.Vec3) (*NPC, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("неизвестный шаблон NPC %q", templateID)
	}
	return New(t, pos), nil
}

// New создаёт NPC из шаблона с новым UUID
func New(t Template, pos vec.Vec3) *NPC {
	name := t.Name
	if name == "" {
		name = t.ID
	}
	behavior := t.Behavior
	if behavior == "" {
		behavior = BehaviorIdle
	}
	hp := max(t.HP, 1)
	return &NPC{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		Name:       name,
		Behavior:   behavior,
		Aggressive: t.Aggressive,
		Damage:     t.Damage,
		Loot:       append([]string(nil), t.Loot...),
		Shop:       append([]ShopItem(nil), t.Shop...),
		pos:        pos,
		hp:         hp,
		maxHP:      hp,
	}
}
