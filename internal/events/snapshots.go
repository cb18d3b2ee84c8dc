package events

import (
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/world"
)

// MapObjects: рассылка актуального списка объектов карты
func MapObjects(m *world.Map) GameEvent {
	objs := m.Objects.List()
	views := make([]ObjectView, 0, len(objs))
	for _, o := range objs {
		views = append(views, ObjectView{ID: o.ID, Type: o.Type, Name: o.Name, Action: o.Action, Pos: o.Pos})
	}
	return ToMap(m.ID, TypeMapObjects, MapObjectsPayload{MapID: m.ID, Objects: views})
}

// NPCList: рассылка актуального списка NPC карты
func NPCList(m *world.Map) GameEvent {
	list := m.NPCs.List()
	views := make([]npc.View, 0, len(list))
	for _, n := range list {
		views = append(views, n.View())
	}
	return ToMap(m.ID, TypeNPCList, NPCListPayload{MapID: m.ID, NPCs: views})
}

// MapData: полная сетка символов карты для одной сессии
func MapData(sessionID string, m *world.Map) GameEvent {
	layers := make([][]string, 0, m.LayerCount())
	for i := 0; i < m.LayerCount(); i++ {
		l, _ := m.Layer(i)
		layers = append(layers, l.Rows())
	}
	return ToSession(sessionID, TypeMapData, MapDataPayload{
		MapID:  m.ID,
		Name:   m.Name,
		Zone:   string(m.Zone),
		Layers: layers,
	})
}
