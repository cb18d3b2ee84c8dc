package interaction

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/economy"
	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/npc"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/tile"
)

type sinkRecorder struct {
	mu  sync.Mutex
	evs []events.GameEvent
}

func (s *sinkRecorder) Enqueue(ev events.GameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
	return nil
}

func (s *sinkRecorder) ofType(t events.Type) []events.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.GameEvent
	for _, ev := range s.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

const station = "#######\n#.....#\n#.B.C.#\n#.....#\n#######"

func setup(t *testing.T) (*Service, *world.Map, *sinkRecorder, *economy.DebtPool) {
	t.Helper()
	m, err := world.LoadMap("station", "Станция", world.ZoneSafe, []string{station}, tile.DefaultCatalog(), nil)
	require.NoError(t, err)
	reg := world.NewRegistry()
	require.NoError(t, reg.Register(m))
	sink := &sinkRecorder{}
	debt := economy.NewDebtPool(100)
	return NewService(reg, sink, debt), m, sink, debt
}

func addObject(m *world.Map, tmpl world.ObjectTemplate, pos vec.Vec3) *world.Object {
	o := world.NewObject(tmpl, pos)
	m.Objects.Add(o)
	return o
}

func TestLoot_TransfersAndRemoves(t *testing.T) {
	svc, m, sink, _ := setup(t)
	crate := addObject(m, world.ObjectTemplate{ID: "crate", Action: ActionLoot, Items: []string{"bandage", "ammo"}, RemoveWhenEmpty: true}, vec.Vec3{X: 2, Y: 1})
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})

	require.NoError(t, svc.ProcessInteraction(p, crate.ID))

	assert.Equal(t, []string{"bandage", "ammo"}, p.Inventory())
	_, still := m.Objects.Get(crate.ID)
	assert.False(t, still, "пустой контейнер убирается с карты")

	inv := sink.ofType(events.TypeInventoryUpdate)
	require.Len(t, inv, 1)
	assert.Equal(t, "s1", inv[0].SessionID)

	objs := sink.ofType(events.TypeMapObjects)
	require.Len(t, objs, 1)
	assert.True(t, objs[0].Broadcast)
	assert.Equal(t, "station", objs[0].MapID)
	assert.Empty(t, objs[0].Payload.(events.MapObjectsPayload).Objects)
}

func TestLoot_KeptWhenNotRemovable(t *testing.T) {
	svc, m, sink, _ := setup(t)
	locker := addObject(m, world.ObjectTemplate{ID: "locker", Action: ActionLoot, Items: []string{"coat"}}, vec.Vec3{X: 2, Y: 1})
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})

	require.NoError(t, svc.ProcessInteraction(p, locker.ID))
	require.NoError(t, svc.ProcessInteraction(p, locker.ID))

	_, still := m.Objects.Get(locker.ID)
	assert.True(t, still)
	assert.Equal(t, []string{"coat"}, p.Inventory())
	assert.Empty(t, sink.ofType(events.TypeMapObjects))
	assert.Len(t, sink.ofType(events.TypeMessage), 1, "второй раз: сообщение «пусто»")
}

func TestLoot_ConcurrentPlayersNeverDuplicate(t *testing.T) {
	svc, m, sink, _ := setup(t)
	crate := addObject(m, world.ObjectTemplate{ID: "crate", Action: ActionLoot, Items: []string{"gold"}, RemoveWhenEmpty: true}, vec.Vec3{X: 3, Y: 1})

	const n = 32
	players := make([]*player.Player, n)
	for i := range players {
		players[i] = player.New(fmt.Sprintf("s%d", i), "p", "station", vec.Vec3{X: 2 + i%3, Y: 2})
	}

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p *player.Player) {
			defer wg.Done()
			_ = svc.ProcessInteraction(p, crate.ID)
		}(p)
	}
	wg.Wait()

	total := 0
	for _, p := range players {
		total += len(p.Inventory())
	}
	assert.Equal(t, 1, total, "предмет достаётся ровно одному игроку")
	assert.Len(t, sink.ofType(events.TypeMapObjects), 1, "объект убирается один раз")
}

func TestRead(t *testing.T) {
	svc, m, sink, _ := setup(t)
	note := addObject(m, world.ObjectTemplate{ID: "note", Action: ActionRead, Text: "Код: 1234"}, vec.Vec3{X: 1, Y: 2})
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})

	require.NoError(t, svc.ProcessInteraction(p, note.ID))
	msgs := sink.ofType(events.TypeMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, events.MessagePayload{Text: "Код: 1234"}, msgs[0].Payload)
	_, still := m.Objects.Get(note.ID)
	assert.True(t, still, "записка остаётся на месте")
}

func TestRest_OnBedTile(t *testing.T) {
	svc, _, sink, _ := setup(t)
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})
	p.SetHealth(5)

	require.NoError(t, svc.ProcessInteraction(p, "tile:2:2"))
	hp, maxHP := p.Health()
	assert.Equal(t, maxHP, hp)
	assert.Len(t, sink.ofType(events.TypeStatsUpdate), 1)
}

func TestDeadPlayerCannotInteract(t *testing.T) {
	svc, m, sink, _ := setup(t)
	crate := addObject(m, world.ObjectTemplate{ID: "crate", Action: ActionLoot, Items: []string{"ammo"}}, vec.Vec3{X: 1, Y: 2})
	trader := npc.New(npc.Template{ID: "trader", Behavior: npc.BehaviorStationary, Shop: []npc.ShopItem{{Item: "medkit", Price: 1}}}, vec.Vec3{X: 2, Y: 1})
	m.NPCs.Add(trader)
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})
	p.AddCredits(10)
	p.SetHealth(-3)

	assert.ErrorIs(t, svc.ProcessInteraction(p, "tile:2:2"), ErrPlayerDead, "кровать не лечит мёртвого")
	hp, _ := p.Health()
	assert.Equal(t, -3, hp)
	assert.True(t, p.IsDead())

	assert.ErrorIs(t, svc.ProcessInteraction(p, crate.ID), ErrPlayerDead)
	assert.Empty(t, p.Inventory())
	assert.ErrorIs(t, svc.Buy(p, trader.ID, "medkit"), ErrPlayerDead)
	assert.Equal(t, 10, p.Credits())

	assert.Empty(t, sink.ofType(events.TypeStatsUpdate))
	errs := sink.ofType(events.TypeError)
	require.Len(t, errs, 3)
	assert.Equal(t, events.CodePlayerDead, errs[0].Payload.(events.ErrorPayload).Code)
}

func TestTerminalAndRepay(t *testing.T) {
	svc, _, sink, debt := setup(t)
	p := player.New("s1", "neo", "station", vec.Vec3{X: 4, Y: 1})

	require.NoError(t, svc.ProcessInteraction(p, "tile:4:2"))
	msgs := sink.ofType(events.TypeMessage)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Payload.(events.MessagePayload).Text, "100")

	p.AddCredits(30)
	require.NoError(t, svc.repay(p))
	assert.Equal(t, int64(70), debt.Remaining())
	assert.Equal(t, 0, p.Credits())

	assert.ErrorIs(t, svc.repay(p), ErrNotEnoughCredits)

	p.AddCredits(500)
	require.NoError(t, svc.repay(p))
	assert.Equal(t, int64(0), debt.Remaining())
	assert.Equal(t, 430, p.Credits(), "списывается не больше долга")
	assert.ErrorIs(t, svc.repay(p), ErrNothingToRepay)
}

func TestTrade(t *testing.T) {
	svc, m, sink, _ := setup(t)
	trader := npc.New(npc.Template{ID: "trader", Behavior: npc.BehaviorStationary, Shop: []npc.ShopItem{{Item: "medkit", Price: 15}}}, vec.Vec3{X: 5, Y: 3})
	m.NPCs.Add(trader)
	rat := npc.New(npc.Template{ID: "rat", Behavior: npc.BehaviorAggressive}, vec.Vec3{X: 5, Y: 1})
	m.NPCs.Add(rat)
	p := player.New("s1", "neo", "station", vec.Vec3{X: 5, Y: 2})

	require.NoError(t, svc.ProcessInteraction(p, trader.ID))
	ui := sink.ofType(events.TypeTradeUI)
	require.Len(t, ui, 1)
	assert.Equal(t, trader.ID, ui[0].Payload.(events.TradeUIPayload).NPCID)

	assert.ErrorIs(t, svc.ProcessInteraction(p, rat.ID), ErrNoAction)

	assert.ErrorIs(t, svc.Buy(p, trader.ID, "medkit"), ErrNotEnoughCredits)
	p.AddCredits(20)
	require.NoError(t, svc.Buy(p, trader.ID, "medkit"))
	assert.Equal(t, []string{"medkit"}, p.Inventory())
	assert.Equal(t, 5, p.Credits())
	assert.ErrorIs(t, svc.Buy(p, trader.ID, "laser"), ErrItemNotSold)
}

func TestValidation(t *testing.T) {
	svc, m, sink, _ := setup(t)
	far := addObject(m, world.ObjectTemplate{ID: "crate", Action: ActionLoot, Items: []string{"x"}}, vec.Vec3{X: 5, Y: 3})
	p := player.New("s1", "neo", "station", vec.Vec3{X: 1, Y: 1})

	assert.ErrorIs(t, svc.ProcessInteraction(p, far.ID), ErrTooFar)
	assert.ErrorIs(t, svc.ProcessInteraction(p, "ghost"), ErrTargetNotFound)
	assert.ErrorIs(t, svc.ProcessInteraction(p, "tile:1:1"), ErrNoAction, "пол не интерактивен")
	assert.ErrorIs(t, svc.ProcessInteraction(p, "tile:oops"), ErrTargetNotFound)

	upstairs := player.New("s2", "trinity", "station", vec.Vec3{X: 5, Y: 2, Layer: 1})
	assert.ErrorIs(t, svc.ProcessInteraction(upstairs, far.ID), ErrTooFar, "другой слой")

	errs := sink.ofType(events.TypeError)
	require.Len(t, errs, 5)
	assert.Equal(t, "Подойдите ближе", errs[0].Payload.(events.ErrorPayload).Message)
	assert.Empty(t, p.Inventory())
}

func TestPlayerMessage(t *testing.T) {
	assert.Equal(t, "", PlayerMessage(nil))
	assert.Equal(t, "Здесь этого нет", PlayerMessage(fmt.Errorf("x: %w", ErrTargetNotFound)))
	assert.Equal(t, "Действие не удалось", PlayerMessage(fmt.Errorf("disk on fire")))
}
