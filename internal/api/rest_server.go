package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/middleware"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/world"
)

const maxAnnouncementLength = 512

// QueueDepth: очередь событий, глубину которой показывает /api/stats
type QueueDepth interface {
	Len() int
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr         string
	World        *world.Registry
	Reachability *world.ReachabilityAnalyzer
	Index        *world.SpatialIndex
	Players      *player.Registry
	Sink         events.Sink
	Queue        QueueDepth
	JWTSecret    string
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer

	// WSPath и WS подключают игровой websocket к тому же роутеру
	WSPath string
	WS     http.Handler
}

// RestServer: административный и инспекционный REST API
type RestServer struct {
	cfg     Config
	router  *gin.Engine
	http    *http.Server
	metrics *ServerMetrics
	auth    *TokenAuth
	logger  *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает REST сервер и настраивает маршруты
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("tileworld-api"))
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(middleware.NewPrometheusMiddleware("tileworld_api", cfg.Registerer).Handler())

	rs := &RestServer{
		cfg:     cfg,
		router:  router,
		metrics: NewServerMetrics(),
		auth:    NewTokenAuth(cfg.JWTSecret),
		logger:  logging.GetComponentLogger("API"),
	}
	if !rs.auth.Enabled() {
		rs.logger.Warn("⚠️ JWT секрет не задан, защищённые маршруты /api недоступны")
	}
	rs.setupRoutes()
	rs.http = &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return rs
}

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/metrics", gin.WrapH(middleware.MetricsHandler(rs.cfg.Gatherer)))
	if rs.cfg.WS != nil && rs.cfg.WSPath != "" {
		rs.router.GET(rs.cfg.WSPath, gin.WrapH(rs.cfg.WS))
	}

	api := rs.router.Group("/api")
	api.Use(rs.auth.Middleware())
	{
		api.GET("/maps", rs.handleMaps)
		api.GET("/maps/:id", rs.handleMap)
		api.GET("/maps/:id/reachable", rs.handleReachable)
		api.GET("/stats", rs.handleStats)
		api.POST("/announce", rs.handleAnnounce)
	}
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает сервер и блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.cfg.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown мягко останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"maps":   len(rs.cfg.World.Maps()),
	})
}

func (rs *RestServer) handleMaps(c *gin.Context) {
	maps := rs.cfg.World.Maps()
	out := make([]MapSummary, 0, len(maps))
	for _, m := range maps {
		out = append(out, rs.summary(m))
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Список карт", Data: out})
}

func (rs *RestServer) lookupMap(c *gin.Context) (*world.Map, bool) {
	m, ok := rs.cfg.World.Map(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Карта не найдена"})
	}
	return m, ok
}

func (rs *RestServer) handleMap(c *gin.Context) {
	m, ok := rs.lookupMap(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта", Data: rs.detail(m)})
}

func (rs *RestServer) handleReachable(c *gin.Context) {
	m, ok := rs.lookupMap(c)
	if !ok {
		return
	}
	tiles, err := rs.cfg.Reachability.ReachableList(m.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка анализа достижимости"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Достижимые клетки",
		Data:    ReachableView{MapID: m.ID, Count: len(tiles), Tiles: tiles},
	})
}

func (rs *RestServer) handleStats(c *gin.Context) {
	stats := gin.H{
		"server":  rs.metrics.Snapshot(),
		"players": rs.cfg.Players.Len(),
		"maps":    len(rs.cfg.World.Maps()),
	}
	if rs.cfg.Queue != nil {
		stats["queue_depth"] = rs.cfg.Queue.Len()
	}
	if rs.cfg.Index != nil {
		stats["spatial"] = rs.cfg.Index.Stats()
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика получена", Data: stats})
}

// AnnounceRequest: тело POST /api/announce
type AnnounceRequest struct {
	Text string `json:"text" binding:"required"`
}

func (rs *RestServer) handleAnnounce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || len([]rune(text)) > maxAnnouncementLength {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Текст объявления пуст или слишком длинный"})
		return
	}

	ev := events.Global(events.TypeGlobalAnnouncement, events.AnnouncementPayload{Text: text})
	if err := rs.cfg.Sink.Enqueue(ev); err != nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Очередь событий закрыта"})
		return
	}
	rs.logger.Info("📢 Объявление от %s: %s", c.GetString(SubjectKey), text)
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Объявление поставлено в очередь", Data: gin.H{"id": ev.ID.String()}})
}
