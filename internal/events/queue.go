package events

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/zyedidia/generic/queue"
)

// ErrQueueClosed: очередь закрыта и пуста
var ErrQueueClosed = errors.New("очередь событий закрыта")

// Sink принимает события от производителей
type Sink interface {
	Enqueue(ev GameEvent) error
}

// Queue: неограниченная FIFO-очередь для многих производителей и одного
// потребителя. Enqueue никогда не блокируется; Take ждёт события, отмены
// контекста или закрытия.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *queue.Queue[GameEvent]
	size   int
	seq    uint64
	closed bool

	metrics *Metrics
}

// NewQueue создаёт очередь. metrics может быть nil.
func NewQueue(metrics *Metrics) *Queue {
	q := &Queue{
		items:   queue.New[GameEvent](),
		metrics: metrics,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue ставит событие в очередь и присваивает ему порядковый номер.
// После Close возвращает ErrQueueClosed.
func (q *Queue) Enqueue(ev GameEvent) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	ev.Seq = q.seq
	if ev.ID == (ulid.ULID{}) {
		ev.ID = ulid.Make()
	}
	q.items.Enqueue(ev)
	q.size++
	depth := q.size
	q.mu.Unlock()

	q.cond.Signal()
	q.metrics.enqueued(ev.Type, depth)
	return nil
}

// Take извлекает следующее событие. Ждёт, пока событие не появится.
// После Close сначала отдаёт оставшиеся события, затем ErrQueueClosed.
func (q *Queue) Take(ctx context.Context) (GameEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return GameEvent{}, err
		}
		if q.size > 0 {
			break
		}
		if q.closed {
			return GameEvent{}, ErrQueueClosed
		}
		q.cond.Wait()
	}

	ev := q.items.Dequeue()
	q.size--
	q.metrics.setDepth(q.size)
	return ev, nil
}

// Close запрещает новые события и будит ожидающих
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len возвращает число событий в очереди
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
