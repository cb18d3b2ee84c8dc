package delivery

import (
	"context"
	"fmt"
	"sync/atomic"

	nats "github.com/nats-io/nats.go"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
)

// DefaultSubjectPrefix: префикс subject'ов зеркала
const DefaultSubjectPrefix = "tileworld.events"

// Publisher: то, что зеркалу нужно от NATS-соединения
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSMirror публикует рассылки (карта и глобальные) в NATS для внешних
// потребителей: ботов, аналитики, журналов. Личные события сессий не зеркалируются.
type NATSMirror struct {
	pub       Publisher
	nc        *nats.Conn
	prefix    string
	renderer  *Renderer
	logger    *logging.Logger
	published atomic.Uint64
	failed    atomic.Uint64
}

// NewNATSMirror подключается к NATS (url: nats://127.0.0.1:4222)
func NewNATSMirror(url, prefix string, renderer *Renderer) (*NATSMirror, error) {
	nc, err := nats.Connect(url, nats.Name("tileworld-mirror"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	m := NewMirror(nc, prefix, renderer)
	m.nc = nc
	m.logger.Info("📡 Зеркало событий подключено к %s (%s.>)", url, m.prefix)
	return m, nil
}

// NewMirror создаёт зеркало поверх произвольного издателя
func NewMirror(pub Publisher, prefix string, renderer *Renderer) *NATSMirror {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSMirror{
		pub:      pub,
		prefix:   prefix,
		renderer: renderer,
		logger:   logging.GetDeliveryLogger(),
	}
}

// Subject: subject для события: <prefix>.<type>[.<map>]
func (m *NATSMirror) Subject(ev events.GameEvent) string {
	if ev.MapID == "" {
		return fmt.Sprintf("%s.%s", m.prefix, ev.Type)
	}
	return fmt.Sprintf("%s.%s.%s", m.prefix, ev.Type, ev.MapID)
}

// Observer возвращает наблюдателя для диспетчера
func (m *NATSMirror) Observer() events.Observer {
	return func(_ context.Context, ev events.GameEvent) {
		if !ev.Broadcast {
			return
		}
		data, err := m.renderer.Encode(ev)
		if err != nil {
			m.failed.Add(1)
			m.logger.Warn("Зеркало: %v", err)
			return
		}
		if err := m.pub.Publish(m.Subject(ev), data); err != nil {
			m.failed.Add(1)
			m.logger.Warn("Зеркало: публикация %s: %v", ev.Type, err)
			return
		}
		m.published.Add(1)
	}
}

// Stats возвращает число опубликованных и неудачных публикаций
func (m *NATSMirror) Stats() (published, failed uint64) {
	return m.published.Load(), m.failed.Load()
}

// Close сбрасывает буферы и закрывает соединение
func (m *NATSMirror) Close() error {
	if m.nc == nil {
		return nil
	}
	return m.nc.Drain()
}
