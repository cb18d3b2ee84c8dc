// Package player хранит состояние подключённых игроков
package player

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
)

// DefaultMaxHP: здоровье нового персонажа
const DefaultMaxHP = 100

// Player: персонаж одной сессии. Все поля под собственным мьютексом.
type Player struct {
	SessionID string
	Name      string

	mu         sync.RWMutex
	mapID      string
	pos        vec.Vec3
	hp         int
	maxHP      int
	level      int
	credits    int
	flags      map[string]bool
	inventory  []string
	travelling string
}

// New создаёт игрока с полным здоровьем
func New(sessionID, name, mapID string, pos vec.Vec3) *Player {
	return &Player{
		SessionID: sessionID,
		Name:      name,
		mapID:     mapID,
		pos:       pos,
		hp:        DefaultMaxHP,
		maxHP:     DefaultMaxHP,
		level:     1,
		flags:     make(map[string]bool),
	}
}

// GetID: ключ игрока в пространственном индексе
func (p *Player) GetID() string { return p.SessionID }

// Location возвращает позицию
func (p *Player) Location() vec.Vec3 { return p.Pos() }

// Pos возвращает позицию
func (p *Player) Pos() vec.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

// MapID возвращает текущую карту
func (p *Player) MapID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mapID
}

// Where возвращает карту и позицию одним снимком
func (p *Player) Where() (string, vec.Vec3) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mapID, p.pos
}

// MoveTo ставит игрока в клетку текущей карты
func (p *Player) MoveTo(pos vec.Vec3) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

// Teleport: перенос внутри карты, вызывается триггерами
func (p *Player) Teleport(to vec.Vec3) { p.MoveTo(to) }

// Relocate переносит игрока на другую карту
func (p *Player) Relocate(mapID string, pos vec.Vec3) {
	p.mu.Lock()
	p.mapID = mapID
	p.pos = pos
	p.mu.Unlock()
}

// Health возвращает текущее и максимальное здоровье
func (p *Player) Health() (hp, maxHP int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hp, p.maxHP
}

// SetHealth задаёт здоровье. Верхняя граница: maxHP, нижняя не ограничена.
func (p *Player) SetHealth(hp int) {
	p.mu.Lock()
	p.hp = min(hp, p.maxHP)
	p.mu.Unlock()
}

// AdjustHealth меняет здоровье на delta одним шагом под мьютексом и
// возвращает новое значение. Верхняя граница: maxHP.
func (p *Player) AdjustHealth(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hp = min(p.hp+delta, p.maxHP)
	return p.hp
}

// Heal восстанавливает здоровье полностью
func (p *Player) Heal() {
	p.mu.Lock()
	p.hp = p.maxHP
	p.mu.Unlock()
}

// IsDead: здоровье кончилось
func (p *Player) IsDead() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hp <= 0
}

// Level возвращает уровень
func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// SetLevel задаёт уровень
func (p *Player) SetLevel(level int) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// Credits возвращает баланс
func (p *Player) Credits() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.credits
}

// AddCredits начисляет кредиты
func (p *Player) AddCredits(n int) {
	p.mu.Lock()
	p.credits += n
	p.mu.Unlock()
}

// SpendCredits списывает n кредитов; false, если не хватает
func (p *Player) SpendCredits(n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 || p.credits < n {
		return false
	}
	p.credits -= n
	return true
}

// SetFlag выставляет флаг прогресса
func (p *Player) SetFlag(name string, v bool) {
	p.mu.Lock()
	p.flags[name] = v
	p.mu.Unlock()
}

// Flag читает флаг прогресса
func (p *Player) Flag(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags[name]
}

// AddItems кладёт предметы в инвентарь
func (p *Player) AddItems(items ...string) {
	p.mu.Lock()
	p.inventory = append(p.inventory, items...)
	p.mu.Unlock()
}

// Inventory возвращает копию инвентаря
func (p *Player) Inventory() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.inventory...)
}

// BeginTravel переводит игрока в состояние поездки на метро
func (p *Player) BeginTravel(lineID string) {
	p.mu.Lock()
	p.travelling = lineID
	p.mu.Unlock()
}

// EndTravel завершает поездку
func (p *Player) EndTravel() {
	p.mu.Lock()
	p.travelling = ""
	p.mu.Unlock()
}

// Travelling возвращает линию метро, если игрок в пути
func (p *Player) Travelling() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.travelling, p.travelling != ""
}

// Snapshot: атрибуты для условий телепортов
func (p *Player) Snapshot() trigger.Attributes {
	p.mu.RLock()
	defer p.mu.RUnlock()
	flags := make(map[string]bool, len(p.flags))
	for k, v := range p.flags {
		flags[k] = v
	}
	return trigger.Attributes{
		HP:      p.hp,
		MaxHP:   p.maxHP,
		Level:   p.level,
		Credits: p.credits,
		X:       p.pos.X,
		Y:       p.pos.Y,
		Layer:   p.pos.Layer,
		Flags:   flags,
	}
}

var _ trigger.Target = (*Player)(nil)

// Registry: подключённые игроки по ID сессии
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

var (
	ErrNameTaken    = errors.New("имя уже занято")
	ErrSessionTaken = errors.New("сессия уже в игре")
)

// Join регистрирует игрока, если его сессия свободна и имя (без учёта
// регистра) никем не занято. Проверка и вставка идут под одной блокировкой.
func (r *Registry) Join(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.SessionID]; ok {
		return ErrSessionTaken
	}
	for _, other := range r.players {
		if strings.EqualFold(other.Name, p.Name) {
			return ErrNameTaken
		}
	}
	r.players[p.SessionID] = p
	return nil
}

// Add регистрирует игрока; повторная сессия заменяет прежнего
func (r *Registry) Add(p *Player) {
	r.mu.Lock()
	r.players[p.SessionID] = p
	r.mu.Unlock()
}

// Remove удаляет игрока и возвращает его
func (r *Registry) Remove(sessionID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[sessionID]
	delete(r.players, sessionID)
	return p, ok
}

// Get возвращает игрока сессии
func (r *Registry) Get(sessionID string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[sessionID]
	return p, ok
}

// Len возвращает число игроков
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// All возвращает всех игроков, отсортированных по сессии
func (r *Registry) All() []*Player {
	r.mu.RLock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// OnMap возвращает игроков на карте
func (r *Registry) OnMap(mapID string) []*Player {
	all := r.All()
	out := all[:0]
	for _, p := range all {
		if p.MapID() == mapID {
			out = append(out, p)
		}
	}
	return out
}

// SessionsOnMap возвращает сессии игроков карты
func (r *Registry) SessionsOnMap(mapID string) []string {
	players := r.OnMap(mapID)
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.SessionID
	}
	return out
}

// AllSessions возвращает все сессии
func (r *Registry) AllSessions() []string {
	players := r.All()
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.SessionID
	}
	return out
}
