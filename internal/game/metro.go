package game

import (
	"sync"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// MetroLine: линия метро: куда приезжает пассажир и сколько тиков едет
type MetroLine struct {
	ID       string   `yaml:"id"`
	MapID    string   `yaml:"map"`
	Arrival  vec.Vec3 `yaml:"arrival"`
	Duration int      `yaml:"duration"`
}

type trip struct {
	p      *player.Player
	line   MetroLine
	ticks  int
	known  bool
	lineID string
}

// Metro координирует поездки: принимает пассажиров от триггера входа в
// метро и высаживает их на станции назначения через Duration тиков.
type Metro struct {
	registry *world.Registry
	sink     events.Sink
	logger   *logging.Logger

	mu    sync.Mutex
	lines map[string]MetroLine
	trips map[string]*trip
}

// NewMetro создаёт координатор с набором линий
func NewMetro(registry *world.Registry, sink events.Sink, lines []MetroLine) *Metro {
	m := &Metro{
		registry: registry,
		sink:     sink,
		logger:   logging.GetGameLogger(),
		lines:    make(map[string]MetroLine, len(lines)),
		trips:    make(map[string]*trip),
	}
	for _, l := range lines {
		m.lines[l.ID] = l
	}
	return m
}

// Enter ставит игрока в очередь на поездку. Цели, которые не являются
// игроками, игнорируются.
func (m *Metro) Enter(t trigger.Target, lineID string) {
	p, ok := t.(*player.Player)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	line, known := m.lines[lineID]
	m.trips[p.SessionID] = &trip{p: p, line: line, known: known, lineID: lineID}
	m.logger.Info("🚇 %s сел в поезд линии %s", p.Name, lineID)
}

// InTransit возвращает число игроков в пути
func (m *Metro) InTransit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trips)
}

// Advance продвигает все поездки на один тик и высаживает приехавших
func (m *Metro) Advance() {
	var arrived []*trip
	m.mu.Lock()
	for id, tr := range m.trips {
		tr.ticks++
		if tr.ticks >= max(tr.line.Duration, 1) {
			arrived = append(arrived, tr)
			delete(m.trips, id)
		}
	}
	m.mu.Unlock()

	for _, tr := range arrived {
		m.arrive(tr)
	}
}

func (m *Metro) arrive(tr *trip) {
	p := tr.p
	p.EndTravel()
	if !tr.known {
		m.logger.Warn("Линия метро %s не описана, %s остаётся на месте", tr.lineID, p.Name)
		return
	}
	dst, ok := m.registry.Map(tr.line.MapID)
	if !ok || !dst.IsWalkableAt(tr.line.Arrival) {
		m.logger.Warn("Станция линии %s недоступна, %s остаётся на месте", tr.lineID, p.Name)
		return
	}

	prevMap := p.MapID()
	p.Relocate(dst.ID, tr.line.Arrival)
	if prevMap != dst.ID {
		m.emit(events.MapData(p.SessionID, dst))
		m.emit(events.MapObjects(dst))
		m.emit(events.NPCList(dst))
	}
	m.emit(events.ToSession(p.SessionID, events.TypePlayerPosition, events.NewPositionPayload(dst.ID, tr.line.Arrival)))
	m.emit(events.Message(p.SessionID, "Поезд прибыл на станцию"))
}

func (m *Metro) emit(ev events.GameEvent) {
	if err := m.sink.Enqueue(ev); err != nil {
		m.logger.Warn("Событие %s не поставлено в очередь: %v", ev.Type, err)
	}
}
