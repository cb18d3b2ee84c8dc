package tile

import (
	"fmt"
	"sort"
)

// Catalog отображает нарисованный символ в дескриптор тайла.
// Заполняется один раз при загрузке, после этого только читается.
type Catalog struct {
	types map[rune]Type
}

// NewCatalog создаёт пустой каталог
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[rune]Type)}
}

// Register добавляет символ в каталог. Повторная регистрация: ошибка загрузки.
func (c *Catalog) Register(symbol rune, t Type) error {
	if _, exists := c.types[symbol]; exists {
		return fmt.Errorf("символ %q уже зарегистрирован в каталоге", symbol)
	}
	c.types[symbol] = t
	return nil
}

// Lookup возвращает дескриптор для символа
func (c *Catalog) Lookup(symbol rune) (Type, bool) {
	t, ok := c.types[symbol]
	return t, ok
}

// Symbols возвращает зарегистрированные символы в стабильном порядке
func (c *Catalog) Symbols() []rune {
	out := make([]rune, 0, len(c.types))
	for s := range c.types {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len возвращает количество символов
func (c *Catalog) Len() int {
	return len(c.types)
}

// DefaultCatalog: легенда, которой пользуются встроенные карты и тесты
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	defaults := []struct {
		symbol rune
		t      Type
	}{
		{' ', Void},
		{'#', Type{Kind: KindWall}},
		{'.', Floor},
		{'D', Type{Kind: KindDoor, Walkable: true, Interactable: true, DefaultAction: "open"}},
		{'B', Type{Kind: KindBed, Walkable: true, Interactable: true, DefaultAction: "rest"}},
		{'E', Type{Kind: KindElevator, Walkable: true}},
		{'C', Type{Kind: KindComputer, Interactable: true, DefaultAction: "use_terminal"}},
		{'W', Type{Kind: KindWeaponRack, Interactable: true, DefaultAction: "inspect"}},
		{'=', Type{Kind: KindMetroTrack, Walkable: true}},
	}
	for _, d := range defaults {
		// символы уникальны, ошибки быть не может
		_ = c.Register(d.symbol, d.t)
	}
	return c
}
