// Package interaction обрабатывает действия игрока с объектами, NPC и тайлами рядом с ним
package interaction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/tileworld/internal/economy"
	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/movement"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Действия, которые понимает сервис
const (
	ActionLoot        = "loot"
	ActionRead        = "read"
	ActionRest        = "rest"
	ActionTrade       = "trade"
	ActionUseTerminal = "use_terminal"
	ActionRepay       = "repay"
	ActionOpen        = "open"
	ActionInspect     = "inspect"
)

// TileTargetPrefix: ID цели вида tile:x:y обозначает тайл на слое игрока
const TileTargetPrefix = "tile:"

var (
	ErrTargetNotFound   = errors.New("цель не найдена")
	ErrTooFar           = errors.New("цель слишком далеко")
	ErrNoAction         = errors.New("с целью нельзя взаимодействовать")
	ErrNotEnoughCredits = errors.New("недостаточно кредитов")
	ErrNothingToRepay   = errors.New("нечего погашать")
	ErrItemNotSold      = errors.New("товар не продаётся")
	ErrPlayerDead       = errors.New("игрок мёртв")
)

// PlayerMessage переводит ошибку в текст для игрока. Сырые ошибки наружу не уходят.
func PlayerMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTargetNotFound):
		return "Здесь этого нет"
	case errors.Is(err, ErrTooFar):
		return "Подойдите ближе"
	case errors.Is(err, ErrNoAction):
		return "Ничего не происходит"
	case errors.Is(err, ErrNotEnoughCredits):
		return "Не хватает кредитов"
	case errors.Is(err, ErrNothingToRepay):
		return "Долг уже погашен"
	case errors.Is(err, ErrItemNotSold):
		return "Такого товара нет"
	case errors.Is(err, ErrPlayerDead):
		return "Вы мертвы"
	case errors.Is(err, world.ErrMapNotFound):
		return "Карта недоступна"
	}
	return "Действие не удалось"
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrTargetNotFound):
		return events.CodeTargetNotFound
	case errors.Is(err, ErrTooFar):
		return events.CodeTooFar
	case errors.Is(err, ErrNotEnoughCredits):
		return events.CodeNotEnough
	case errors.Is(err, world.ErrMapNotFound):
		return events.CodeUnknownMap
	case errors.Is(err, ErrPlayerDead):
		return events.CodePlayerDead
	}
	return events.CodeNoAction
}

// Service: обработка взаимодействий
type Service struct {
	registry *world.Registry
	sink     events.Sink
	debt     *economy.DebtPool
	logger   *logging.Logger
}

// NewService создаёт сервис. debt может быть nil, тогда терминалы не работают с долгом.
func NewService(registry *world.Registry, sink events.Sink, debt *economy.DebtPool) *Service {
	return &Service{
		registry: registry,
		sink:     sink,
		debt:     debt,
		logger:   logging.GetGameLogger(),
	}
}

func (s *Service) emit(ev events.GameEvent) {
	if err := s.sink.Enqueue(ev); err != nil {
		s.logger.Warn("Событие %s не поставлено в очередь: %v", ev.Type, err)
	}
}

func (s *Service) fail(p *player.Player, err error) error {
	s.emit(events.Error(p.SessionID, errorCode(err), PlayerMessage(err)))
	return err
}

// ProcessInteraction выполняет действие цели targetID. Цель должна быть на
// карте игрока, на том же слое и не дальше одной клетки (включая диагональ).
// Мёртвый игрок ни с чем не взаимодействует, вернуть его может только респаун.
func (s *Service) ProcessInteraction(p *player.Player, targetID string) error {
	if p.IsDead() {
		return s.fail(p, ErrPlayerDead)
	}
	mapID, pos := p.Where()
	m, ok := s.registry.Map(mapID)
	if !ok {
		return s.fail(p, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound))
	}

	if strings.HasPrefix(targetID, TileTargetPrefix) {
		return s.interactTile(p, m, pos, targetID)
	}
	if o, ok := m.Objects.Get(targetID); ok {
		if err := near(pos, o.Pos); err != nil {
			return s.fail(p, err)
		}
		return s.interactObject(p, m, o)
	}
	if n, ok := m.NPCs.Get(targetID); ok {
		if err := near(pos, n.Location()); err != nil {
			return s.fail(p, err)
		}
		return s.interactNPC(p, n)
	}
	return s.fail(p, fmt.Errorf("%q: %w", targetID, ErrTargetNotFound))
}

func near(a, b vec.Vec3) error {
	d := a.Chebyshev(b)
	if d < 0 || d > 1 {
		return ErrTooFar
	}
	return nil
}

func parseTileTarget(id string, layer int) (vec.Vec3, bool) {
	parts := strings.Split(strings.TrimPrefix(id, TileTargetPrefix), ":")
	if len(parts) != 2 {
		return vec.Vec3{}, false
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	if errX != nil || errY != nil {
		return vec.Vec3{}, false
	}
	return vec.Vec3{X: x, Y: y, Layer: layer}, true
}

func (s *Service) interactTile(p *player.Player, m *world.Map, pos vec.Vec3, id string) error {
	at, ok := parseTileTarget(id, pos.Layer)
	if !ok {
		return s.fail(p, fmt.Errorf("%q: %w", id, ErrTargetNotFound))
	}
	if err := near(pos, at); err != nil {
		return s.fail(p, err)
	}
	t := m.TileAt(at.X, at.Y, at.Layer)
	if !t.Interactable || !t.HasAction() {
		return s.fail(p, ErrNoAction)
	}
	return s.perform(p, m, t.DefaultAction, nil)
}

func (s *Service) interactObject(p *player.Player, m *world.Map, o *world.Object) error {
	if o.Action == "" {
		return s.fail(p, ErrNoAction)
	}
	return s.perform(p, m, o.Action, o)
}

func (s *Service) interactNPC(p *player.Player, n *npc.NPC) error {
	if !n.HasShop() {
		return s.fail(p, ErrNoAction)
	}
	s.emit(events.ToSession(p.SessionID, events.TypeTradeUI, events.TradeUIPayload{
		NPCID: n.ID,
		Name:  n.Name,
		Items: append([]npc.ShopItem(nil), n.Shop...),
	}))
	return nil
}

func (s *Service) perform(p *player.Player, m *world.Map, action string, o *world.Object) error {
	switch action {
	case ActionLoot:
		if o == nil {
			return s.fail(p, ErrNoAction)
		}
		return s.loot(p, m, o)
	case ActionRead:
		text := "Здесь ничего не написано"
		if o != nil && o.Text != "" {
			text = o.Text
		}
		s.emit(events.Message(p.SessionID, text))
	case ActionRest:
		p.Heal()
		s.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
		s.emit(events.Message(p.SessionID, "Вы отдохнули и восстановили силы"))
	case ActionUseTerminal:
		s.emit(events.Message(p.SessionID, s.debtReport()))
	case ActionRepay:
		return s.repay(p)
	case ActionOpen:
		s.emit(events.Message(p.SessionID, "Дверь открыта"))
	case ActionInspect:
		name := "Ничего особенного"
		if o != nil && o.Text != "" {
			name = o.Text
		}
		s.emit(events.Message(p.SessionID, name))
	default:
		return s.fail(p, fmt.Errorf("%q: %w", action, ErrNoAction))
	}
	return nil
}

// loot удерживает мьютекс контейнера всю передачу: из двух одновременных
// попыток предметы получит только одна.
func (s *Service) loot(p *player.Player, m *world.Map, o *world.Object) error {
	n := o.Loot(func(items []string) {
		p.AddItems(items...)
	})
	if n == 0 {
		s.emit(events.Message(p.SessionID, "Пусто"))
		return nil
	}

	s.emit(events.ToSession(p.SessionID, events.TypeInventoryUpdate, events.InventoryPayload{Items: p.Inventory()}))
	s.logger.Debug("Игрок %s забрал %d предметов из %s", p.Name, n, o.ID)

	if o.RemoveWhenEmpty && o.IsEmpty() && m.Objects.Remove(o.ID) {
		s.emit(events.MapObjects(m))
	}
	return nil
}

func (s *Service) debtReport() string {
	if s.debt == nil {
		return "Терминал не отвечает"
	}
	return fmt.Sprintf("Общий долг станции: %d кредитов", s.debt.Remaining())
}

func (s *Service) repay(p *player.Player) error {
	if s.debt == nil || s.debt.Remaining() == 0 {
		return s.fail(p, ErrNothingToRepay)
	}
	available := int64(p.Credits())
	if available <= 0 {
		return s.fail(p, ErrNotEnoughCredits)
	}
	paid := s.debt.Pay(available)
	if paid == 0 {
		return s.fail(p, ErrNothingToRepay)
	}
	if !p.SpendCredits(int(paid)) {
		s.debt.Add(paid)
		return s.fail(p, ErrNotEnoughCredits)
	}

	s.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
	s.emit(events.Message(p.SessionID, fmt.Sprintf("Погашено %d кредитов. Остаток долга: %d", paid, s.debt.Remaining())))
	s.logger.Info("💳 %s погасил %d кредитов долга", p.Name, paid)
	return nil
}

// Buy покупает товар у торговца рядом с игроком
func (s *Service) Buy(p *player.Player, npcID, item string) error {
	if p.IsDead() {
		return s.fail(p, ErrPlayerDead)
	}
	mapID, pos := p.Where()
	m, ok := s.registry.Map(mapID)
	if !ok {
		return s.fail(p, fmt.Errorf("%s: %w", mapID, world.ErrMapNotFound))
	}
	n, ok := m.NPCs.Get(npcID)
	if !ok {
		return s.fail(p, fmt.Errorf("%q: %w", npcID, ErrTargetNotFound))
	}
	if err := near(pos, n.Location()); err != nil {
		return s.fail(p, err)
	}

	for _, offer := range n.Shop {
		if offer.Item != item {
			continue
		}
		if !p.SpendCredits(offer.Price) {
			return s.fail(p, ErrNotEnoughCredits)
		}
		p.AddItems(item)
		s.emit(events.ToSession(p.SessionID, events.TypeInventoryUpdate, events.InventoryPayload{Items: p.Inventory()}))
		s.emit(events.ToSession(p.SessionID, events.TypeStatsUpdate, movement.StatsOf(p)))
		return nil
	}
	return s.fail(p, fmt.Errorf("%q: %w", item, ErrItemNotSold))
}
