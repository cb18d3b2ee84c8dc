package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/player"
)

// Delivery: обработчики диспетчера, которые пишут события в сессии.
// Адресаты: одна сессия, все игроки карты или все подключённые сессии.
type Delivery struct {
	sessions *Sessions
	players  *player.Registry
	renderer *Renderer
	logger   *logging.Logger
}

func NewDelivery(sessions *Sessions, players *player.Registry, renderer *Renderer) *Delivery {
	return &Delivery{
		sessions: sessions,
		players:  players,
		renderer: renderer,
		logger:   logging.GetDeliveryLogger(),
	}
}

// Install регистрирует обработчик для каждого типа событий
func (d *Delivery) Install(dispatcher *events.Dispatcher) {
	for _, t := range events.AllTypes {
		dispatcher.Register(t, d.Deliver)
	}
}

// Recipients вычисляет сессии-адресаты события
func (d *Delivery) Recipients(ev events.GameEvent) []string {
	switch {
	case ev.SessionID != "":
		return []string{ev.SessionID}
	case ev.IsGlobal():
		return d.sessions.IDs()
	case ev.Broadcast:
		return d.players.SessionsOnMap(ev.MapID)
	default:
		return nil
	}
}

// Deliver рендерит событие один раз и отправляет всем адресатам. Соединение,
// которое не принимает кадр, отключается; остальные адресаты получают кадр.
func (d *Delivery) Deliver(_ context.Context, ev events.GameEvent) error {
	recipients := d.Recipients(ev)
	if len(recipients) == 0 {
		d.logger.Trace("Событие %s #%d без адресатов", ev.Type, ev.Seq)
		return nil
	}

	frame, err := d.renderer.Render(ev)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range recipients {
		c, ok := d.sessions.Conn(id)
		if !ok {
			d.logger.Debug("Сессия %s отключена, событие %s пропущено", id, ev.Type)
			continue
		}
		if err := c.Send(frame); err != nil {
			d.logger.Warn("⚠️ Отправка %s в сессию %s: %v, отключаем", ev.Type, id, err)
			d.sessions.Detach(id)
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	if ev.SessionID != "" && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
