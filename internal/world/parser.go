package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/tile"
)

var (
	// ErrEmptyLayer: источник слоя пуст
	ErrEmptyLayer = errors.New("пустой слой карты")
	// ErrNilCatalog: парсеру не передан каталог тайлов
	ErrNilCatalog = errors.New("каталог тайлов не задан")
)

const (
	quoteSymbol  = '"'
	markerSymbol = '.' // маркеры заменяются полом и рисуются как пол
)

// ParseContext хранит маркеры, зарегистрированные картой, и то, что парсер
// нашёл по ним. Один контекст используется для всех слоёв одной карты.
type ParseContext struct {
	spawnMarkers  map[rune]string
	npcMarkers    map[rune]struct{}
	objectMarkers map[rune]struct{}

	Spawns      map[string]vec.Vec3
	NPCSlots    []vec.Vec3
	ObjectSlots []vec.Vec3
	// Unresolved: клетки с неизвестными каталогу символами и клетки за концом строки
	// (под BlankSymbol). Вызывающий код может позже привязать их к игровым сущностям.
	Unresolved map[rune][]vec.Vec3
}

// NewParseContext создаёт пустой контекст
func NewParseContext() *ParseContext {
	return &ParseContext{
		spawnMarkers:  make(map[rune]string),
		npcMarkers:    make(map[rune]struct{}),
		objectMarkers: make(map[rune]struct{}),
		Spawns:        make(map[string]vec.Vec3),
		Unresolved:    make(map[rune][]vec.Vec3),
	}
}

// AddSpawnMarker регистрирует символ точки появления с ключом key
func (c *ParseContext) AddSpawnMarker(symbol rune, key string) {
	c.spawnMarkers[symbol] = key
}

// AddNPCMarker регистрирует символ слота NPC
func (c *ParseContext) AddNPCMarker(symbol rune) {
	c.npcMarkers[symbol] = struct{}{}
}

// AddObjectMarker регистрирует символ слота объекта
func (c *ParseContext) AddObjectMarker(symbol rune) {
	c.objectMarkers[symbol] = struct{}{}
}

// UnresolvedSymbols возвращает символы неразрешённых клеток в стабильном порядке
func (c *ParseContext) UnresolvedSymbols() []rune {
	out := make([]rune, 0, len(c.Unresolved))
	for s := range c.Unresolved {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// recordSpawn сохраняет точку появления. Повторный маркер с тем же ключом
// получает ключ key:2, key:3 и т.д., чтобы ни одна точка не потерялась.
func (c *ParseContext) recordSpawn(key string, pos vec.Vec3) {
	if _, taken := c.Spawns[key]; !taken {
		c.Spawns[key] = pos
		return
	}
	for n := 2; ; n++ {
		k := fmt.Sprintf("%s:%d", key, n)
		if _, taken := c.Spawns[k]; !taken {
			c.Spawns[k] = pos
			return
		}
	}
}

// marker обрабатывает специальные символы. Возвращает true, если символ был маркером.
func (c *ParseContext) marker(symbol rune, pos vec.Vec3) bool {
	if key, ok := c.spawnMarkers[symbol]; ok {
		c.recordSpawn(key, pos)
		return true
	}
	if _, ok := c.npcMarkers[symbol]; ok {
		c.NPCSlots = append(c.NPCSlots, pos)
		return true
	}
	if _, ok := c.objectMarkers[symbol]; ok {
		c.ObjectSlots = append(c.ObjectSlots, pos)
		return true
	}
	return false
}

// ParseLayer превращает текстовую сетку в слой. Ширина: длина самой длинной
// строки; короткие строки добиваются VOID. Текст в кавычках считается полом,
// чтобы авторы карт могли писать надписи, не создавая стен.
func ParseLayer(text string, catalog *tile.Catalog, layer int, ctx *ParseContext) (*Layer, error) {
	if catalog == nil {
		return nil, ErrNilCatalog
	}
	if ctx == nil {
		ctx = NewParseContext()
	}

	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyLayer
	}

	lines := strings.Split(text, "\n")
	rows := make([][]rune, len(lines))
	width := 0
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("слой %d, строка %d: некорректный UTF-8", layer, i)
		}
		rows[i] = []rune(line)
		width = max(width, len(rows[i]))
	}

	out := newLayer(layer, width, len(rows))
	for y, row := range rows {
		quoted := false
		for x := 0; x < width; x++ {
			pos := vec.Vec3{X: x, Y: y, Layer: layer}

			if x >= len(row) {
				out.set(x, y, tile.Void, BlankSymbol)
				ctx.Unresolved[BlankSymbol] = append(ctx.Unresolved[BlankSymbol], pos)
				continue
			}

			symbol := row[x]
			if ctx.marker(symbol, pos) {
				out.set(x, y, tile.Floor, markerSymbol)
				continue
			}

			if symbol == quoteSymbol {
				quoted = !quoted
				out.set(x, y, tile.Floor, symbol)
				continue
			}
			if quoted {
				out.set(x, y, tile.Floor, symbol)
				continue
			}

			t, known := catalog.Lookup(symbol)
			if !known {
				out.set(x, y, tile.Unknown, symbol)
				ctx.Unresolved[symbol] = append(ctx.Unresolved[symbol], pos)
				continue
			}
			out.set(x, y, t, symbol)
		}
	}

	return out, nil
}
