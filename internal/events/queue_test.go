package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOAndSeq(t *testing.T) {
	q := NewQueue(nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Message("s", fmt.Sprint(i))))
	}
	assert.Equal(t, 5, q.Len())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev, err := q.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, MessagePayload{Text: fmt.Sprint(i)}, ev.Payload)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ManyProducersKeepPerProducerOrder(t *testing.T) {
	const producers, perProducer = 8, 200
	q := NewQueue(nil)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(ToSession(fmt.Sprint(p), TypeMessage, i))
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	last := make(map[string]int)
	var lastSeq uint64
	total := 0
	for {
		ev, err := q.Take(context.Background())
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueClosed)
			break
		}
		total++
		assert.Greater(t, ev.Seq, lastSeq, "номера идут по возрастанию")
		lastSeq = ev.Seq

		i := ev.Payload.(int)
		if prev, seen := last[ev.SessionID]; seen {
			assert.Equal(t, prev+1, i, "события одного производителя не переставляются")
		} else {
			assert.Equal(t, 0, i)
		}
		last[ev.SessionID] = i
	}
	assert.Equal(t, producers*perProducer, total)
}

func TestQueue_TakeBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue(nil)
	got := make(chan GameEvent, 1)
	go func() {
		ev, err := q.Take(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("Take не должен возвращаться из пустой очереди")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(Global(TypeGlobalAnnouncement, AnnouncementPayload{Text: "hi"})))
	select {
	case ev := <-got:
		assert.Equal(t, TypeGlobalAnnouncement, ev.Type)
		assert.True(t, ev.IsGlobal())
	case <-time.After(time.Second):
		t.Fatal("событие не получено")
	}
}

func TestQueue_TakeHonoursContext(t *testing.T) {
	q := NewQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Take не проснулся после отмены контекста")
	}
}

func TestQueue_CloseDrainsThenFails(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Enqueue(Message("s", "last")))
	q.Close()

	assert.ErrorIs(t, q.Enqueue(Message("s", "late")), ErrQueueClosed)

	ev, err := q.Take(context.Background())
	require.NoError(t, err, "оставшиеся события отдаются после закрытия")
	assert.Equal(t, MessagePayload{Text: "last"}, ev.Payload)

	_, err = q.Take(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestEventConstructors(t *testing.T) {
	s := ToSession("abc", TypeStatsUpdate, nil)
	assert.Equal(t, "abc", s.SessionID)
	assert.False(t, s.Broadcast)

	m := ToMap("lab", TypeMapObjects, nil)
	assert.True(t, m.Broadcast)
	assert.Equal(t, "lab", m.MapID)
	assert.False(t, m.IsGlobal())

	assert.NotEqual(t, s.ID, m.ID, "у каждого события свой ULID")

	e := Error("abc", CodeObstacle, "Путь прегражден")
	assert.Equal(t, TypeError, e.Type)
	assert.Equal(t, ErrorPayload{Code: CodeObstacle, Message: "Путь прегражден"}, e.Payload)
}

func TestTypes(t *testing.T) {
	assert.Len(t, AllTypes, 14)
	for _, tp := range AllTypes {
		parsed, err := ParseType(string(tp))
		require.NoError(t, err)
		assert.Equal(t, tp, parsed)
	}
	_, err := ParseType("teleport")
	assert.Error(t, err)
}
