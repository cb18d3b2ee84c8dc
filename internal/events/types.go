// Package events: асинхронный конвейер игровых событий: очередь с многими
// производителями и единственный потребитель-диспетчер, который выполняет
// все исходящие записи.
package events

import "fmt"

// Type: закрытый набор типов событий. Строковые значения стабильны: их видит клиент.
type Type string

const (
	TypeInventoryUpdate    Type = "inventory-update"
	TypeStatsUpdate        Type = "stats-update"
	TypeMapData            Type = "map-data"
	TypeMapObjects         Type = "map-objects"
	TypeGameOver           Type = "game-over"
	TypePlayerPosition     Type = "player-position"
	TypeMessage            Type = "message"
	TypeError              Type = "error"
	TypeChatBroadcast      Type = "chat-broadcast"
	TypeLoginOptions       Type = "login-options"
	TypeNPCList            Type = "npc-list"
	TypeTradeUI            Type = "trade-ui"
	TypeGlobalAnnouncement Type = "global-announcement"
	TypePlayerBroadcast    Type = "player-broadcast"
)

// AllTypes перечисляет все типы в порядке объявления
var AllTypes = []Type{
	TypeInventoryUpdate,
	TypeStatsUpdate,
	TypeMapData,
	TypeMapObjects,
	TypeGameOver,
	TypePlayerPosition,
	TypeMessage,
	TypeError,
	TypeChatBroadcast,
	TypeLoginOptions,
	TypeNPCList,
	TypeTradeUI,
	TypeGlobalAnnouncement,
	TypePlayerBroadcast,
}

// Valid проверяет, что тип входит в закрытый набор
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType разбирает строку в тип события
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("неизвестный тип события %q", s)
	}
	return t, nil
}
