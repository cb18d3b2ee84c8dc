package world

import "github.com/annel0/tileworld/internal/world/tile"

// BlankSymbol: символ для клеток за пределами слоя и за концом строки
const BlankSymbol = ' '

// Layer: один z-слой карты: сетка типов тайлов и параллельная сетка
// исходных символов для отрисовки на клиенте. Неизменяем после разбора.
type Layer struct {
	index   int
	width   int
	height  int
	tiles   []tile.Type
	symbols []rune
}

func newLayer(index, width, height int) *Layer {
	return &Layer{
		index:   index,
		width:   width,
		height:  height,
		tiles:   make([]tile.Type, width*height),
		symbols: make([]rune, width*height),
	}
}

// Index возвращает номер слоя
func (l *Layer) Index() int { return l.index }

// Width возвращает ширину слоя
func (l *Layer) Width() int { return l.width }

// Height возвращает высоту слоя
func (l *Layer) Height() int { return l.height }

// InBounds проверяет, лежит ли клетка внутри слоя
func (l *Layer) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.width && y < l.height
}

// TileAt возвращает тип тайла. Вне границ: tile.Void, без паники.
func (l *Layer) TileAt(x, y int) tile.Type {
	if l == nil || !l.InBounds(x, y) {
		return tile.Void
	}
	return l.tiles[y*l.width+x]
}

// SymbolAt возвращает исходный символ. Вне границ: BlankSymbol.
func (l *Layer) SymbolAt(x, y int) rune {
	if l == nil || !l.InBounds(x, y) {
		return BlankSymbol
	}
	return l.symbols[y*l.width+x]
}

// Rows возвращает сетку символов построчно (для map-data)
func (l *Layer) Rows() []string {
	rows := make([]string, l.height)
	for y := 0; y < l.height; y++ {
		rows[y] = string(l.symbols[y*l.width : (y+1)*l.width])
	}
	return rows
}

func (l *Layer) set(x, y int, t tile.Type, symbol rune) {
	l.tiles[y*l.width+x] = t
	l.symbols[y*l.width+x] = symbol
}
