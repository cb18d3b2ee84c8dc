package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/economy"
	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/interaction"
	"github.com/annel0/tileworld/internal/movement"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/tile"
)

const gatewayRoom = "#####\n#...#\n#.@.#\n#...#\n#####"

type stack struct {
	server    *httptest.Server
	renderer  *Renderer
	players   *player.Registry
	positions *storage.MemoryPositionRepo
	gateway   *Gateway
}

func newStack(t *testing.T) *stack {
	t.Helper()

	ctx := world.NewParseContext()
	ctx.AddSpawnMarker('@', "default")
	m, err := world.LoadMap("lab", "Лаборатория", world.ZoneSafe, []string{gatewayRoom}, tile.DefaultCatalog(), ctx)
	require.NoError(t, err)
	reg := world.NewRegistry()
	require.NoError(t, reg.Register(m))

	q := events.NewQueue(nil)
	dispatcher := events.NewDispatcher(q)
	sessions := NewSessions()
	players := player.NewRegistry()
	renderer := newRenderer(t, DefaultCompressThreshold)
	NewDelivery(sessions, players, renderer).Install(dispatcher)

	runCtx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(runCtx)

	positions := storage.NewMemoryPositionRepo()
	gw := NewGateway(GatewayConfig{
		World:       reg,
		Players:     players,
		Sessions:    sessions,
		Sink:        q,
		Movement:    movement.NewEngine(reg, trigger.DefaultDispatch(), q),
		Interaction: interaction.NewService(reg, q, economy.NewDebtPool(100)),
		Positions:   positions,
		StartMap:    "lab",
	})
	srv := httptest.NewServer(gw)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		q.Close()
	})
	return &stack{server: srv, renderer: renderer, players: players, positions: positions, gateway: gw}
}

type client struct {
	t        *testing.T
	ws       *websocket.Conn
	renderer *Renderer
}

func (s *stack) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return &client{t: t, ws: ws, renderer: s.renderer}
}

func (c *client) send(cmd Command) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(cmd))
}

// until читает кадры, пока не придёт событие нужного типа
func (c *client) until(want events.Type) Envelope {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		kind, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err, "ожидали %s", want)
		env, err := c.renderer.Decode(Frame{Data: data, Compressed: kind == websocket.BinaryMessage})
		require.NoError(c.t, err)
		if env.Type == want {
			return env
		}
	}
}

func position(t *testing.T, env Envelope) events.PositionPayload {
	t.Helper()
	var p events.PositionPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func TestGateway_LoginMoveAndSaveOnDisconnect(t *testing.T) {
	s := newStack(t)
	c := s.dial(t)

	opts := c.until(events.TypeLoginOptions)
	assert.JSONEq(t, `{"maps":["lab"]}`, string(opts.Payload))

	c.send(Command{Type: CmdMove, Direction: "up"})
	errEnv := c.until(events.TypeError)
	assert.Contains(t, string(errEnv.Payload), CodeLoginRequired)

	c.send(Command{Type: CmdLogin, Name: "alice"})
	mapData := c.until(events.TypeMapData)
	assert.Contains(t, string(mapData.Payload), `"map_id":"lab"`)
	assert.Equal(t, events.PositionPayload{MapID: "lab", X: 2, Y: 2, Layer: 0}, position(t, c.until(events.TypePlayerPosition)))

	c.send(Command{Type: CmdMove, Direction: "up"})
	assert.Equal(t, events.PositionPayload{MapID: "lab", X: 2, Y: 1, Layer: 0}, position(t, c.until(events.TypePlayerPosition)))

	c.send(Command{Type: CmdMove, Direction: "up"})
	obstacle := c.until(events.TypeError)
	assert.Contains(t, string(obstacle.Payload), events.CodeObstacle)

	require.NoError(t, c.ws.Close())
	require.Eventually(t, func() bool { return s.positions.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.players.Len())

	saved, found, err := s.positions.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found, "позиция сохранена при отключении")
	assert.Equal(t, storage.SavedPosition{MapID: "lab", Pos: vec.Vec3{X: 2, Y: 1, Layer: 0}}, saved)

	// повторный вход восстанавливает позицию
	c2 := s.dial(t)
	c2.send(Command{Type: CmdLogin, Name: "alice"})
	assert.Equal(t, events.PositionPayload{MapID: "lab", X: 2, Y: 1, Layer: 0}, position(t, c2.until(events.TypePlayerPosition)))
	c2.ws.Close()
}

func TestGateway_NameTakenAndChat(t *testing.T) {
	s := newStack(t)
	alice := s.dial(t)
	alice.send(Command{Type: CmdLogin, Name: "alice"})
	alice.until(events.TypePlayerPosition)

	bob := s.dial(t)
	bob.send(Command{Type: CmdLogin, Name: "ALICE"})
	taken := bob.until(events.TypeError)
	assert.Contains(t, string(taken.Payload), CodeNameTaken)

	bob.send(Command{Type: CmdLogin, Name: "bob"})
	bob.until(events.TypePlayerPosition)

	bob.send(Command{Type: CmdChat, Text: "  привет  "})
	chat := alice.until(events.TypeChatBroadcast)
	assert.JSONEq(t, `{"from":"bob","text":"привет"}`, string(chat.Payload))

	alice.ws.Close()
	bob.ws.Close()
}

func TestGateway_ConcurrentLoginsWithSameName(t *testing.T) {
	s := newStack(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.gateway.Handle(context.Background(), fmt.Sprintf("sess-%d", i), Command{Type: CmdLogin, Name: "alice"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.players.Len(), "одно имя не может войти дважды")
}

func TestGateway_Snapshot(t *testing.T) {
	s := newStack(t)
	c := s.dial(t)
	c.send(Command{Type: CmdLogin, Name: "carol"})
	c.until(events.TypePlayerPosition)

	snap := s.gateway.Snapshot()
	assert.Equal(t, map[string]storage.SavedPosition{
		"carol": {MapID: "lab", Pos: vec.Vec3{X: 2, Y: 2, Layer: 0}},
	}, snap)
	c.ws.Close()
}
