package api

import (
	"sort"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// MapSummary: строка списка карт
type MapSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Zone    string `json:"zone"`
	Layers  int    `json:"layers"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Players int    `json:"players"`
	NPCs    int    `json:"npcs"`
	Objects int    `json:"objects"`
}

// MapDetail: полное состояние карты для инспекции
type MapDetail struct {
	MapSummary
	Rows            [][]string          `json:"rows"`
	Spawns          map[string]vec.Vec3 `json:"spawns"`
	DynamicTriggers []TriggerView       `json:"dynamic_triggers"`
	NPCList         []npc.View          `json:"npc_list"`
	ObjectList      []events.ObjectView `json:"object_list"`
	PlayerList      []events.PlayerView `json:"player_list"`
}

type TriggerView struct {
	Pos  vec.Vec3 `json:"pos"`
	Kind string   `json:"kind"`
}

type ReachableView struct {
	MapID string     `json:"map_id"`
	Count int        `json:"count"`
	Tiles []vec.Vec3 `json:"tiles"`
}

func (rs *RestServer) summary(m *world.Map) MapSummary {
	w, h := m.Bounds()
	return MapSummary{
		ID:      m.ID,
		Name:    m.Name,
		Zone:    string(m.Zone),
		Layers:  m.LayerCount(),
		Width:   w,
		Height:  h,
		Players: len(rs.cfg.Players.SessionsOnMap(m.ID)),
		NPCs:    m.NPCs.Len(),
		Objects: m.Objects.Len(),
	}
}

func (rs *RestServer) detail(m *world.Map) MapDetail {
	d := MapDetail{
		MapSummary: rs.summary(m),
		Spawns:     make(map[string]vec.Vec3),
	}
	for i := 0; i < m.LayerCount(); i++ {
		l, _ := m.Layer(i)
		d.Rows = append(d.Rows, l.Rows())
	}
	for _, key := range m.SpawnKeys() {
		d.Spawns[key], _ = m.Spawn(key)
	}
	for pos, t := range m.DynamicTriggers() {
		d.DynamicTriggers = append(d.DynamicTriggers, TriggerView{Pos: pos, Kind: string(t.Kind())})
	}
	sortTriggers(d.DynamicTriggers)

	for _, n := range m.NPCs.List() {
		d.NPCList = append(d.NPCList, n.View())
	}
	for _, o := range m.Objects.List() {
		d.ObjectList = append(d.ObjectList, events.ObjectView{ID: o.ID, Type: o.Type, Name: o.Name, Action: o.Action, Pos: o.Pos})
	}
	for _, p := range rs.cfg.Players.OnMap(m.ID) {
		d.PlayerList = append(d.PlayerList, events.PlayerView{Name: p.Name, Pos: p.Pos()})
	}
	return d
}

func sortTriggers(ts []TriggerView) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i].Pos, ts[j].Pos
		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
