package events

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/tileworld/internal/logging"
)

// Handler обрабатывает одно событие. Ошибка логируется, цикл продолжается.
type Handler func(ctx context.Context, ev GameEvent) error

// Observer видит каждое событие до обработчика. Не должен блокироваться.
type Observer func(ctx context.Context, ev GameEvent)

// Dispatcher: единственный потребитель очереди. Обрабатывает события строго
// в порядке очереди; паника или ошибка одного события не мешает следующим.
type Dispatcher struct {
	queue *Queue

	mu        sync.RWMutex
	handlers  map[Type]Handler
	observers []Observer

	metrics *Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
}

// Option настраивает диспетчер
type Option func(*Dispatcher)

// WithMetrics подключает Prometheus-метрики
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer задаёт трассировщик; по умолчанию берётся глобальный провайдер
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher создаёт диспетчер над очередью
func NewDispatcher(q *Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		handlers: make(map[Type]Handler),
		logger:   logging.GetEventsLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("github.com/annel0/tileworld/internal/events")
	}
	return d
}

// Register задаёт обработчик типа, заменяя прежний
func (d *Dispatcher) Register(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Observe добавляет наблюдателя всех событий
func (d *Dispatcher) Observe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Run обрабатывает события, пока не отменён ctx или не закрыта очередь.
// При отмене возвращает ctx.Err(), при закрытии очереди: nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("📬 Диспетчер событий запущен")
	for {
		ev, err := d.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				d.logger.Info("📭 Очередь закрыта, диспетчер остановлен")
				return nil
			}
			d.logger.Info("📭 Диспетчер остановлен: %v", err)
			return err
		}
		d.dispatch(ctx, ev)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev GameEvent) {
	ctx, span := d.tracer.Start(ctx, "events.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("event.type", string(ev.Type)),
			attribute.String("event.id", ev.ID.String()),
			attribute.Int64("event.seq", int64(ev.Seq)),
			attribute.String("event.map", ev.MapID),
			attribute.Bool("event.broadcast", ev.Broadcast),
		))
	defer span.End()

	d.mu.RLock()
	h, ok := d.handlers[ev.Type]
	observers := d.observers
	d.mu.RUnlock()

	for _, o := range observers {
		d.safeObserve(ctx, o, ev)
	}

	if !ok {
		d.logger.Warn("Нет обработчика для события %s (seq=%d), событие отброшено", ev.Type, ev.Seq)
		d.metrics.dropped(ev.Type)
		span.SetStatus(codes.Error, "no handler")
		return
	}

	start := time.Now()
	if err := d.invoke(ctx, h, ev); err != nil {
		d.logger.Error("❌ Ошибка обработки события %s (seq=%d): %v", ev.Type, ev.Seq, err)
		d.metrics.failed(ev.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	d.metrics.dispatched(ev.Type, time.Since(start))
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, ev GameEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("stack: %s", debug.Stack())
			err = fmt.Errorf("паника в обработчике: %v", r)
		}
	}()
	return h(ctx, ev)
}

func (d *Dispatcher) safeObserve(ctx context.Context, o Observer, ev GameEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("❌ Паника в наблюдателе события %s: %v", ev.Type, r)
		}
	}()
	o(ctx, ev)
}

// LogObserver пишет каждое событие в журнал на уровне DEBUG
func LogObserver(l *logging.Logger) Observer {
	return func(_ context.Context, ev GameEvent) {
		l.Debug("[Events] %s %s seq=%d session=%s map=%s broadcast=%t",
			ev.ID, ev.Type, ev.Seq, ev.SessionID, ev.MapID, ev.Broadcast)
	}
}
