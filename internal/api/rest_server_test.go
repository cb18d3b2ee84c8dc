package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/tile"
)

const (
	testSecret = "test-secret"
	room       = "#####\n#.@.#\n#.#.#\n#...#\n#####"
)

type fixture struct {
	server *RestServer
	queue  *events.Queue
	auth   *TokenAuth
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	ctx := world.NewParseContext()
	ctx.AddSpawnMarker('@', "default")
	m, err := world.LoadMap("lab", "Лаборатория", world.ZoneSafe, []string{room}, tile.DefaultCatalog(), ctx)
	require.NoError(t, err)
	m.SetDynamicTrigger(vec.Vec3{X: 3, Y: 3}, trigger.Damage{Amount: 5})

	reg := world.NewRegistry()
	require.NoError(t, reg.Register(m))

	players := player.NewRegistry()
	players.Add(player.New("s1", "alice", "lab", vec.Vec3{X: 2, Y: 1}))

	q := events.NewQueue(nil)
	t.Cleanup(q.Close)

	rs := NewRestServer(Config{
		World:        reg,
		Reachability: world.NewReachabilityAnalyzer(reg),
		Index:        world.NewSpatialIndex(reg, 5),
		Players:      players,
		Sink:         q,
		Queue:        q,
		JWTSecret:    secret,
	})
	return &fixture{server: rs, queue: q, auth: NewTokenAuth(secret)}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := f.auth.Issue("root", role, time.Minute)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, w *httptest.ResponseRecorder) GenericResponse {
	t.Helper()
	var resp GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRestServer_HealthIsPublic(t *testing.T) {
	f := newFixture(t, testSecret)
	w := f.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestRestServer_Auth(t *testing.T) {
	f := newFixture(t, testSecret)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/maps", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/maps", "garbage", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/maps", f.token(t, "viewer"), "").Code)

	foreign, err := NewTokenAuth("other").Issue("root", RoleAdmin, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/maps", foreign, "").Code,
		"токен с чужой подписью отклоняется")

	expired, err := f.auth.Issue("root", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/maps", expired, "").Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/maps", f.token(t, RoleAdmin), "").Code)
}

func TestRestServer_EmptySecretClosesAPI(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/maps", "anything", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").Code)

	_, err := f.auth.Issue("root", RoleAdmin, time.Minute)
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestRestServer_Maps(t *testing.T) {
	f := newFixture(t, testSecret)
	tok := f.token(t, RoleAdmin)

	w := f.do(t, http.MethodGet, "/api/maps", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []MapSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, MapSummary{ID: "lab", Name: "Лаборатория", Zone: "safe", Layers: 1, Width: 5, Height: 5, Players: 1}, list.Data[0])

	w = f.do(t, http.MethodGet, "/api/maps/lab", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Data MapDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Len(t, detail.Data.Rows, 1)
	assert.Equal(t, vec.Vec3{X: 2, Y: 1}, detail.Data.Spawns["default"])
	assert.Equal(t, []TriggerView{{Pos: vec.Vec3{X: 3, Y: 3}, Kind: string(trigger.KindDamage)}}, detail.Data.DynamicTriggers)
	assert.Equal(t, []events.PlayerView{{Name: "alice", Pos: vec.Vec3{X: 2, Y: 1}}}, detail.Data.PlayerList)

	w = f.do(t, http.MethodGet, "/api/maps/nowhere", tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestRestServer_Reachable(t *testing.T) {
	f := newFixture(t, testSecret)
	w := f.do(t, http.MethodGet, "/api/maps/lab/reachable", f.token(t, RoleAdmin), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ReachableView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// все 8 проходимых клеток комнаты вокруг центральной колонны
	assert.Equal(t, 8, resp.Data.Count)
	assert.Contains(t, resp.Data.Tiles, vec.Vec3{X: 2, Y: 1})
	assert.NotContains(t, resp.Data.Tiles, vec.Vec3{X: 2, Y: 2})
}

func TestRestServer_Stats(t *testing.T) {
	f := newFixture(t, testSecret)
	require.NoError(t, f.queue.Enqueue(events.Message("s1", "x")))

	w := f.do(t, http.MethodGet, "/api/stats", f.token(t, RoleAdmin), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Players    int          `json:"players"`
			Maps       int          `json:"maps"`
			QueueDepth int          `json:"queue_depth"`
			Server     ProcessStats `json:"server"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Players)
	assert.Equal(t, 1, resp.Data.Maps)
	assert.Equal(t, 1, resp.Data.QueueDepth)
	assert.Positive(t, resp.Data.Server.Goroutines)
}

func TestRestServer_Announce(t *testing.T) {
	f := newFixture(t, testSecret)
	tok := f.token(t, RoleAdmin)

	w := f.do(t, http.MethodPost, "/api/announce", tok, `{"text":"  рестарт через 5 минут "}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := f.queue.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.TypeGlobalAnnouncement, ev.Type)
	assert.True(t, ev.IsGlobal())
	assert.Equal(t, events.AnnouncementPayload{Text: "рестарт через 5 минут"}, ev.Payload)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/announce", tok, `{"text":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/announce", tok, `{`).Code)
	long := `{"text":"` + strings.Repeat("а", maxAnnouncementLength+1) + `"}`
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/announce", tok, long).Code)

	f.queue.Close()
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/announce", tok, `{"text":"поздно"}`).Code)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", formatUptime(5*time.Second))
	assert.Equal(t, "2м 3с", formatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}
