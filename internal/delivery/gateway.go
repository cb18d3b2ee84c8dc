package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/interaction"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/movement"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Команды клиента
const (
	CmdLogin    = "login"
	CmdMove     = "move"
	CmdInteract = "interact"
	CmdBuy      = "buy"
	CmdChat     = "chat"
	CmdRespawn  = "respawn"
)

// Коды ошибок протокола
const (
	CodeBadCommand    = "BAD_COMMAND"
	CodeLoginRequired = "LOGIN_REQUIRED"
	CodeNameTaken     = "NAME_TAKEN"
)

const maxChatLength = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Command: входящее сообщение клиента
type Command struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Map       string `json:"map,omitempty"`
	Direction string `json:"direction,omitempty"`
	Target    string `json:"target,omitempty"`
	NPC       string `json:"npc,omitempty"`
	Item      string `json:"item,omitempty"`
	Text      string `json:"text,omitempty"`
}

// GatewayConfig: зависимости шлюза
type GatewayConfig struct {
	World       *world.Registry
	Players     *player.Registry
	Sessions    *Sessions
	Sink        events.Sink
	Movement    *movement.Engine
	Interaction *interaction.Service
	Positions   storage.PositionRepo
	StartMap    string
}

// Gateway принимает websocket-подключения и переводит команды клиентов в
// вызовы движения и взаимодействий. Все ответы идут через очередь событий.
type Gateway struct {
	cfg    GatewayConfig
	logger *logging.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{cfg: cfg, logger: logging.GetDeliveryLogger()}
}

func (g *Gateway) emit(ev events.GameEvent) {
	if err := g.cfg.Sink.Enqueue(ev); err != nil {
		g.logger.Warn("Событие %s не поставлено в очередь: %v", ev.Type, err)
	}
}

// ServeHTTP обновляет соединение до websocket и обслуживает сессию до отключения
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Ошибка upgrade: %v", err)
		return
	}

	sessionID := uuid.NewString()
	conn := NewWSConn(ws)
	g.cfg.Sessions.Attach(sessionID, conn)
	g.logger.Info("🔌 Сессия %s подключена (%s)", sessionID, r.RemoteAddr)

	g.emit(events.ToSession(sessionID, events.TypeLoginOptions, g.loginOptions()))
	g.serve(r.Context(), sessionID, conn)

	g.logout(sessionID)
	g.cfg.Sessions.Detach(sessionID)
	g.logger.Info("🔌 Сессия %s отключена", sessionID)
}

func (g *Gateway) loginOptions() events.LoginOptionsPayload {
	maps := g.cfg.World.Maps()
	ids := make([]string, 0, len(maps))
	for _, m := range maps {
		ids = append(ids, m.ID)
	}
	return events.LoginOptionsPayload{Maps: ids}
}

func (g *Gateway) serve(ctx context.Context, sessionID string, conn *WSConn) {
	conn.prepareRead()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("Ошибка чтения сессии %s: %v", sessionID, err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.emit(events.Error(sessionID, CodeBadCommand, "Не удалось разобрать команду"))
			continue
		}
		g.Handle(ctx, sessionID, cmd)
	}
}

// Handle выполняет одну команду сессии
func (g *Gateway) Handle(ctx context.Context, sessionID string, cmd Command) {
	if cmd.Type == CmdLogin {
		if err := g.login(ctx, sessionID, cmd); err != nil {
			g.logger.Debug("Вход сессии %s отклонён: %v", sessionID, err)
		}
		return
	}

	p, ok := g.cfg.Players.Get(sessionID)
	if !ok {
		g.emit(events.Error(sessionID, CodeLoginRequired, "Сначала войдите в игру"))
		return
	}

	switch cmd.Type {
	case CmdMove:
		if p.IsDead() {
			g.emit(events.Error(sessionID, CodeBadCommand, "Вы мертвы"))
			return
		}
		if _, err := g.cfg.Movement.MoveNamed(p, cmd.Direction); err != nil {
			g.logger.Debug("Шаг %s: %v", p.Name, err)
		}
	case CmdInteract:
		if err := g.cfg.Interaction.ProcessInteraction(p, cmd.Target); err != nil {
			g.logger.Debug("Взаимодействие %s с %s: %v", p.Name, cmd.Target, err)
		}
	case CmdBuy:
		if err := g.cfg.Interaction.Buy(p, cmd.NPC, cmd.Item); err != nil {
			g.logger.Debug("Покупка %s у %s: %v", cmd.Item, cmd.NPC, err)
		}
	case CmdChat:
		g.chat(p, cmd.Text)
	case CmdRespawn:
		g.respawn(p)
	default:
		g.emit(events.Error(sessionID, CodeBadCommand, fmt.Sprintf("Неизвестная команда %q", cmd.Type)))
	}
}

func (g *Gateway) login(ctx context.Context, sessionID string, cmd Command) error {
	if _, ok := g.cfg.Players.Get(sessionID); ok {
		g.emit(events.Error(sessionID, CodeBadCommand, "Вы уже в игре"))
		return errors.New("повторный вход")
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		g.emit(events.Error(sessionID, CodeBadCommand, "Укажите имя"))
		return storage.ErrInvalidPlayer
	}

	m, pos, err := g.startPosition(ctx, name, cmd.Map)
	if err != nil {
		g.emit(events.Error(sessionID, events.CodeUnknownMap, "Карта недоступна"))
		return err
	}

	p := player.New(sessionID, name, m.ID, pos)
	if err := g.cfg.Players.Join(p); err != nil {
		if errors.Is(err, player.ErrNameTaken) {
			g.emit(events.Error(sessionID, CodeNameTaken, "Имя уже занято"))
		} else {
			g.emit(events.Error(sessionID, CodeBadCommand, "Вы уже в игре"))
		}
		return fmt.Errorf("вход %s: %w", name, err)
	}
	g.logger.Info("👤 %s вошёл на карту %s в %s", name, m.ID, pos)

	g.sendMapState(sessionID, m)
	g.emit(events.ToSession(sessionID, events.TypePlayerPosition, events.NewPositionPayload(m.ID, pos)))
	g.emit(events.ToSession(sessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
	g.emit(events.ToSession(sessionID, events.TypeInventoryUpdate, events.InventoryPayload{Items: p.Inventory()}))
	g.emit(g.playersOnMap(m.ID))
	return nil
}

// startPosition: сохранённая позиция, если она ещё проходима, иначе точка
// появления выбранной или стартовой карты
func (g *Gateway) startPosition(ctx context.Context, name, requested string) (*world.Map, vec.Vec3, error) {
	if g.cfg.Positions != nil {
		saved, found, err := g.cfg.Positions.Load(ctx, name)
		if err != nil {
			g.logger.Warn("Позиция %s не загружена: %v", name, err)
		} else if found {
			if m, ok := g.cfg.World.Map(saved.MapID); ok && m.IsWalkableAt(saved.Pos) {
				return m, saved.Pos, nil
			}
		}
	}

	mapID := requested
	if mapID == "" {
		mapID = g.cfg.StartMap
	}
	m, ok := g.cfg.World.Map(mapID)
	if !ok {
		return nil, vec.Vec3{}, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound)
	}
	return m, spawnPoint(m), nil
}

func spawnPoint(m *world.Map) vec.Vec3 {
	if p, ok := m.Spawn("default"); ok {
		return p
	}
	if spawns := m.Spawns(); len(spawns) > 0 {
		return spawns[0]
	}
	return vec.Vec3{}
}

// sendMapState отправляет одной сессии то, что остальные получают рассылками
func (g *Gateway) sendMapState(sessionID string, m *world.Map) {
	g.emit(events.MapData(sessionID, m))
	for _, ev := range []events.GameEvent{events.MapObjects(m), events.NPCList(m)} {
		ev.SessionID = sessionID
		ev.Broadcast = false
		g.emit(ev)
	}
}

func (g *Gateway) playersOnMap(mapID string) events.GameEvent {
	list := g.cfg.Players.OnMap(mapID)
	views := make([]events.PlayerView, 0, len(list))
	for _, p := range list {
		views = append(views, events.PlayerView{Name: p.Name, Pos: p.Pos()})
	}
	return events.ToMap(mapID, events.TypePlayerBroadcast, events.PlayerBroadcastPayload{MapID: mapID, Players: views})
}

func (g *Gateway) chat(p *player.Player, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len([]rune(text)) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}
	g.emit(events.ToMap(p.MapID(), events.TypeChatBroadcast, events.ChatPayload{From: p.Name, Text: text}))
}

// respawn возвращает погибшего игрока на стартовую карту с полным здоровьем
func (g *Gateway) respawn(p *player.Player) {
	if !p.IsDead() {
		g.emit(events.Error(p.SessionID, CodeBadCommand, "Вы живы"))
		return
	}
	m, ok := g.cfg.World.Map(g.cfg.StartMap)
	if !ok {
		g.emit(events.Error(p.SessionID, events.CodeUnknownMap, "Карта недоступна"))
		return
	}

	oldMap := p.MapID()
	pos := spawnPoint(m)
	p.Relocate(m.ID, pos)
	p.Heal()

	if oldMap != m.ID {
		g.sendMapState(p.SessionID, m)
		g.emit(g.playersOnMap(oldMap))
	}
	g.emit(events.ToSession(p.SessionID, events.TypePlayerPosition, events.NewPositionPayload(m.ID, pos)))
	g.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
	g.emit(g.playersOnMap(m.ID))
}

// logout сохраняет позицию и убирает игрока из реестра
func (g *Gateway) logout(sessionID string) {
	p, ok := g.cfg.Players.Remove(sessionID)
	if !ok {
		return
	}
	mapID, pos := p.Where()

	if g.cfg.Positions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.cfg.Positions.Save(ctx, p.Name, storage.SavedPosition{MapID: mapID, Pos: pos}); err != nil {
			g.logger.Error("❌ Позиция %s не сохранена: %v", p.Name, err)
		}
	}
	g.emit(g.playersOnMap(mapID))
	g.logger.Info("👋 %s покинул игру", p.Name)
}

// Snapshot: позиции онлайн-игроков для автосохранения
func (g *Gateway) Snapshot() map[string]storage.SavedPosition {
	all := g.cfg.Players.All()
	out := make(map[string]storage.SavedPosition, len(all))
	for _, p := range all {
		mapID, pos := p.Where()
		out[p.Name] = storage.SavedPosition{MapID: mapID, Pos: pos}
	}
	return out
}
