package events

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// GameEvent: неизменяемое исходящее событие. Адресат задаётся одним из трёх
// способов: сессия, все игроки карты (Broadcast + MapID) или все сессии
// (Broadcast без MapID).
type GameEvent struct {
	ID        ulid.ULID
	Seq       uint64 // порядковый номер постановки в очередь
	Type      Type
	Payload   any
	SessionID string
	MapID     string
	Broadcast bool
	CreatedAt time.Time
}

func newEvent(t Type, payload any) GameEvent {
	return GameEvent{
		ID:        ulid.Make(),
		Type:      t,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// ToSession создаёт событие для одной сессии
func ToSession(sessionID string, t Type, payload any) GameEvent {
	ev := newEvent(t, payload)
	ev.SessionID = sessionID
	return ev
}

// ToMap создаёт рассылку всем игрокам карты
func ToMap(mapID string, t Type, payload any) GameEvent {
	ev := newEvent(t, payload)
	ev.MapID = mapID
	ev.Broadcast = true
	return ev
}

// Global создаёт рассылку всем подключённым сессиям
func Global(t Type, payload any) GameEvent {
	ev := newEvent(t, payload)
	ev.Broadcast = true
	return ev
}

// IsGlobal: рассылка без привязки к карте
func (e GameEvent) IsGlobal() bool {
	return e.Broadcast && e.MapID == ""
}

// Error создаёт событие ошибки для сессии
func Error(sessionID, code, message string) GameEvent {
	return ToSession(sessionID, TypeError, ErrorPayload{Code: code, Message: message})
}

// Message создаёт текстовое сообщение для сессии
func Message(sessionID, text string) GameEvent {
	return ToSession(sessionID, TypeMessage, MessagePayload{Text: text})
}
