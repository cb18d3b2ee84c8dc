package trigger

import (
	"sync"

	"github.com/annel0/tileworld/internal/logging"
)

// Handler реализует единый контракт "on-enter" для одного вида триггера.
// Возвращает true, если эффект был применён.
type Handler interface {
	OnEnter(t Trigger, target Target, ctx Context) bool
}

// HandlerFunc позволяет использовать функцию как Handler
type HandlerFunc func(t Trigger, target Target, ctx Context) bool

// OnEnter вызывает f
func (f HandlerFunc) OnEnter(t Trigger, target Target, ctx Context) bool {
	return f(t, target, ctx)
}

// Dispatch: таблица обработчиков по виду триггера
type Dispatch struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
	logger   *logging.Logger
}

// NewDispatch создаёт пустую таблицу
func NewDispatch() *Dispatch {
	return &Dispatch{
		handlers: make(map[Kind]Handler),
		logger:   logging.GetGameLogger(),
	}
}

// DefaultDispatch создаёт таблицу со стандартными обработчиками всех вариантов
func DefaultDispatch() *Dispatch {
	d := NewDispatch()
	d.Register(KindTeleport, HandlerFunc(onTeleport))
	d.Register(KindConditionalTeleport, HandlerFunc(d.onConditionalTeleport))
	d.Register(KindDamage, HandlerFunc(onDamage))
	d.Register(KindHeal, HandlerFunc(onHeal))
	d.Register(KindMetroEntry, HandlerFunc(onMetroEntry))
	return d
}

// Register добавляет или заменяет обработчик
func (d *Dispatch) Register(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Fire применяет триггер к цели. Неизвестный вид или nil: no-op, без паники.
func (d *Dispatch) Fire(t Trigger, target Target, ctx Context) bool {
	if t == nil || target == nil {
		return false
	}

	d.mu.RLock()
	h, ok := d.handlers[t.Kind()]
	d.mu.RUnlock()

	if !ok {
		d.logger.Debug("Триггер %q без обработчика на карте %s, пропускаем", t.Kind(), ctx.MapID)
		return false
	}
	return h.OnEnter(t, target, ctx)
}
