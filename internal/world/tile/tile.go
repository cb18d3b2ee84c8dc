package tile

import (
	"fmt"
	"strings"
)

// Kind: перечисление типов тайлов
type Kind uint8

const (
	KindVoid Kind = iota // за пределами карты
	KindUnknown          // символ, не описанный в каталоге
	KindWall
	KindFloor
	KindDoor
	KindBed
	KindElevator
	KindComputer
	KindWeaponRack
	KindMetroTrack
)

var kindNames = map[Kind]string{
	KindVoid:       "VOID",
	KindUnknown:    "UNKNOWN",
	KindWall:       "WALL",
	KindFloor:      "FLOOR",
	KindDoor:       "DOOR",
	KindBed:        "BED",
	KindElevator:   "ELEVATOR",
	KindComputer:   "COMPUTER",
	KindWeaponRack: "WEAPON_RACK",
	KindMetroTrack: "METRO_TRACK",
}

// String возвращает имя типа в том виде, в каком оно записано в данных
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKind разбирает имя типа без учёта регистра
func ParseKind(name string) (Kind, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == upper {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("неизвестный тип тайла %q", name)
}

// Type описывает неизменяемые свойства тайла
type Type struct {
	Kind          Kind
	Walkable      bool
	Interactable  bool
	DefaultAction string // пусто, если действия нет
}

// Стандартные дескрипторы, которые парсер подставляет сам
var (
	Void    = Type{Kind: KindVoid}
	Unknown = Type{Kind: KindUnknown}
	Floor   = Type{Kind: KindFloor, Walkable: true}
)

// HasAction сообщает, есть ли у тайла действие по умолчанию
func (t Type) HasAction() bool {
	return t.Interactable && t.DefaultAction != ""
}
