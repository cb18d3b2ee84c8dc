package events

import (
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/vec"
)

// Коды ошибок, которые видит клиент
const (
	CodeObstacle       = "OBSTACLE"
	CodeBadDirection   = "BAD_DIRECTION"
	CodeUnknownMap     = "UNKNOWN_MAP"
	CodeTargetNotFound = "TARGET_NOT_FOUND"
	CodeTooFar         = "TOO_FAR"
	CodeNoAction       = "NO_ACTION"
	CodeNotEnough      = "NOT_ENOUGH_CREDITS"
	CodeTravelling     = "TRAVELLING"
	CodePlayerDead     = "PLAYER_DEAD"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

type PositionPayload struct {
	MapID string `json:"map_id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Layer int    `json:"layer"`
}

// NewPositionPayload собирает позицию игрока
func NewPositionPayload(mapID string, p vec.Vec3) PositionPayload {
	return PositionPayload{MapID: mapID, X: p.X, Y: p.Y, Layer: p.Layer}
}

type StatsPayload struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"max_hp"`
	Level   int `json:"level"`
	Credits int `json:"credits"`
}

type InventoryPayload struct {
	Items []string `json:"items"`
}

type GameOverPayload struct {
	Reason string `json:"reason"`
}

type MapDataPayload struct {
	MapID  string     `json:"map_id"`
	Name   string     `json:"name"`
	Zone   string     `json:"zone"`
	Layers [][]string `json:"layers"`
}

// ObjectView: объект карты глазами клиента
type ObjectView struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Action string   `json:"action"`
	Pos    vec.Vec3 `json:"pos"`
}

type MapObjectsPayload struct {
	MapID   string       `json:"map_id"`
	Objects []ObjectView `json:"objects"`
}

type NPCListPayload struct {
	MapID string     `json:"map_id"`
	NPCs  []npc.View `json:"npcs"`
}

type TradeUIPayload struct {
	NPCID string         `json:"npc_id"`
	Name  string         `json:"name"`
	Items []npc.ShopItem `json:"items"`
}

type ChatPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type AnnouncementPayload struct {
	Text string `json:"text"`
}

type LoginOptionsPayload struct {
	Maps []string `json:"maps"`
}

// PlayerView: другой игрок на той же карте
type PlayerView struct {
	Name string   `json:"name"`
	Pos  vec.Vec3 `json:"pos"`
}

type PlayerBroadcastPayload struct {
	MapID   string       `json:"map_id"`
	Players []PlayerView `json:"players"`
}
