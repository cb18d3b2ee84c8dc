// Package worlddata загружает описание мира из YAML: легенду тайлов, карты
// с маркерами и триггерами, шаблоны NPC и объектов, линии метро.
package worlddata

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/annel0/tileworld/internal/game"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/tile"
	"gopkg.in/yaml.v3"
)

// ErrBadSymbol символ легенды или маркера не является одной руной
var ErrBadSymbol = errors.New("символ должен состоять ровно из одного знака")

// Bundle: содержимое файла мира в том виде, в каком оно записано.
type Bundle struct {
	Tiles           []TileSpec             `yaml:"tiles"`
	Maps            []MapSpec              `yaml:"maps"`
	NPCTemplates    []npc.Template         `yaml:"npc_templates"`
	ObjectTemplates []world.ObjectTemplate `yaml:"object_templates"`
	MetroLines      []game.MetroLine       `yaml:"metro_lines"`
}

type TileSpec struct {
	Symbol       string `yaml:"symbol"`
	Kind         string `yaml:"kind"`
	Walkable     bool   `yaml:"walkable"`
	Interactable bool   `yaml:"interactable"`
	Action       string `yaml:"action"`
}

type MapSpec struct {
	ID             string                 `yaml:"id"`
	Name           string                 `yaml:"name"`
	Zone           string                 `yaml:"zone"`
	SpawnMarkers   map[string]string      `yaml:"spawn_markers"`
	NPCMarkers     []string               `yaml:"npc_markers"`
	ObjectMarkers  []string               `yaml:"object_markers"`
	Layers         []string               `yaml:"layers"`
	SymbolTriggers map[string]TriggerSpec `yaml:"symbol_triggers"`
	Triggers       []PlacedTrigger        `yaml:"triggers"`
}

// TriggerSpec: триггер с дискриминатором type.
type TriggerSpec struct {
	Type      string `yaml:"type"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	Layer     int    `yaml:"layer"`
	Condition string `yaml:"condition"`
	Amount    int    `yaml:"amount"`
	Line      string `yaml:"line"`
}

// PlacedTrigger: динамический триггер в конкретной клетке.
type PlacedTrigger struct {
	X       int         `yaml:"x"`
	Y       int         `yaml:"y"`
	Layer   int         `yaml:"layer"`
	Trigger TriggerSpec `yaml:"trigger"`
}

// World: собранный мир, готовый к запуску.
type World struct {
	Catalog    *tile.Catalog
	Registry   *world.Registry
	NPCs       *npc.Factory
	Objects    *world.ObjectFactory
	MetroLines []game.MetroLine
}

// Load читает и собирает мир из файла.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	w, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse разбирает YAML без сборки.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse world yaml: %w", err)
	}
	return &b, nil
}

func singleRune(s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadSymbol, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Catalog строит легенду. Пустой список tiles даёт tile.DefaultCatalog().
func (b *Bundle) Catalog() (*tile.Catalog, error) {
	if len(b.Tiles) == 0 {
		return tile.DefaultCatalog(), nil
	}
	c := tile.NewCatalog()
	for _, ts := range b.Tiles {
		sym, err := singleRune(ts.Symbol)
		if err != nil {
			return nil, fmt.Errorf("tiles: %w", err)
		}
		kind, err := tile.ParseKind(ts.Kind)
		if err != nil {
			return nil, fmt.Errorf("tiles %q: %w", ts.Symbol, err)
		}
		t := tile.Type{
			Kind:          kind,
			Walkable:      ts.Walkable,
			Interactable:  ts.Interactable,
			DefaultAction: ts.Action,
		}
		if err := c.Register(sym, t); err != nil {
			return nil, fmt.Errorf("tiles: %w", err)
		}
	}
	return c, nil
}

// Trigger превращает описание в значение триггера.
func (s TriggerSpec) Trigger() (trigger.Trigger, error) {
	target := vec.Vec3{X: s.X, Y: s.Y, Layer: s.Layer}
	switch trigger.Kind(s.Type) {
	case trigger.KindTeleport:
		return trigger.Teleport{Target: target}, nil
	case trigger.KindConditionalTeleport:
		ct := trigger.ConditionalTeleport{Teleport: trigger.Teleport{Target: target}}
		if s.Condition != "" {
			p, err := trigger.CompilePredicate(s.Condition)
			if err != nil {
				return nil, err
			}
			ct.Predicate = p
		}
		return ct, nil
	case trigger.KindDamage:
		if s.Amount <= 0 {
			return nil, fmt.Errorf("damage: amount должен быть положительным, получено %d", s.Amount)
		}
		return trigger.Damage{Amount: s.Amount}, nil
	case trigger.KindHeal:
		if s.Amount <= 0 {
			return nil, fmt.Errorf("heal: amount должен быть положительным, получено %d", s.Amount)
		}
		return trigger.Heal{Amount: s.Amount}, nil
	case trigger.KindMetroEntry:
		if s.Line == "" {
			return nil, errors.New("metro_entry: не указана линия")
		}
		return trigger.MetroEntry{LineID: s.Line}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип триггера %q", s.Type)
	}
}

func (ms MapSpec) parseContext() (*world.ParseContext, error) {
	ctx := world.NewParseContext()
	for sym, key := range ms.SpawnMarkers {
		r, err := singleRune(sym)
		if err != nil {
			return nil, fmt.Errorf("spawn_markers: %w", err)
		}
		ctx.AddSpawnMarker(r, key)
	}
	for _, sym := range ms.NPCMarkers {
		r, err := singleRune(sym)
		if err != nil {
			return nil, fmt.Errorf("npc_markers: %w", err)
		}
		ctx.AddNPCMarker(r)
	}
	for _, sym := range ms.ObjectMarkers {
		r, err := singleRune(sym)
		if err != nil {
			return nil, fmt.Errorf("object_markers: %w", err)
		}
		ctx.AddObjectMarker(r)
	}
	return ctx, nil
}

// BuildMap разбирает слои карты и навешивает триггеры.
func (ms MapSpec) BuildMap(catalog *tile.Catalog) (*world.Map, error) {
	if ms.ID == "" {
		return nil, errors.New("карта без id")
	}
	zone, err := world.ParseZone(ms.Zone)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", ms.ID, err)
	}
	ctx, err := ms.parseContext()
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", ms.ID, err)
	}
	name := ms.Name
	if name == "" {
		name = ms.ID
	}

	m, err := world.LoadMap(ms.ID, name, zone, ms.Layers, catalog, ctx)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", ms.ID, err)
	}

	for sym, ts := range ms.SymbolTriggers {
		r, err := singleRune(sym)
		if err != nil {
			return nil, fmt.Errorf("map %s: symbol_triggers: %w", ms.ID, err)
		}
		t, err := ts.Trigger()
		if err != nil {
			return nil, fmt.Errorf("map %s: symbol_triggers %q: %w", ms.ID, sym, err)
		}
		m.SetSymbolTrigger(r, t)
	}
	for i, pt := range ms.Triggers {
		t, err := pt.Trigger.Trigger()
		if err != nil {
			return nil, fmt.Errorf("map %s: triggers[%d]: %w", ms.ID, i, err)
		}
		m.SetDynamicTrigger(vec.Vec3{X: pt.X, Y: pt.Y, Layer: pt.Layer}, t)
	}
	return m, nil
}

// Build собирает каталог, реестр карт и фабрики. Линии метро проверяются
// на существование карты назначения.
func (b *Bundle) Build() (*World, error) {
	catalog, err := b.Catalog()
	if err != nil {
		return nil, err
	}

	registry := world.NewRegistry()
	for _, ms := range b.Maps {
		m, err := ms.BuildMap(catalog)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}

	npcs, err := npc.NewFactory(b.NPCTemplates)
	if err != nil {
		return nil, fmt.Errorf("npc_templates: %w", err)
	}
	objects, err := world.NewObjectFactory(b.ObjectTemplates)
	if err != nil {
		return nil, fmt.Errorf("object_templates: %w", err)
	}

	seen := make(map[string]struct{}, len(b.MetroLines))
	for _, line := range b.MetroLines {
		if _, dup := seen[line.ID]; dup {
			return nil, fmt.Errorf("metro_lines: повторная линия %q", line.ID)
		}
		seen[line.ID] = struct{}{}
		if _, ok := registry.Map(line.MapID); !ok {
			return nil, fmt.Errorf("metro_lines %s: %w: %s", line.ID, world.ErrMapNotFound, line.MapID)
		}
	}

	return &World{
		Catalog:    catalog,
		Registry:   registry,
		NPCs:       npcs,
		Objects:    objects,
		MetroLines: b.MetroLines,
	}, nil
}
