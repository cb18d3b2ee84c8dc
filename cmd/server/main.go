package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/annel0/tileworld/internal/api"
	"github.com/annel0/tileworld/internal/config"
	"github.com/annel0/tileworld/internal/delivery"
	"github.com/annel0/tileworld/internal/economy"
	"github.com/annel0/tileworld/internal/events"
	"github.com/annel0/tileworld/internal/game"
	"github.com/annel0/tileworld/internal/interaction"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/middleware"
	"github.com/annel0/tileworld/internal/movement"
	"github.com/annel0/tileworld/internal/observability"
	"github.com/annel0/tileworld/internal/player"
	"github.com/annel0/tileworld/internal/spawn"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/trigger"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/worlddata"
)

const spatialRadius = 8

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию TILEWORLD_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.CloseDefaultLogger()
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("конфигурация: %w", err)
	}
	setupLogging(cfg.Logging)
	logging.Info("🎮 Запуск tileworld, мир %s", cfg.World.DataFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	// === МИР ===
	w, err := worlddata.Load(cfg.World.DataFile)
	if err != nil {
		return fmt.Errorf("загрузка мира: %w", err)
	}
	startMap := cfg.World.StartMap
	if startMap == "" {
		if maps := w.Registry.Maps(); len(maps) > 0 {
			startMap = maps[0].ID
		}
	}
	if _, ok := w.Registry.Map(startMap); !ok {
		return fmt.Errorf("стартовая карта %q: %w", startMap, world.ErrMapNotFound)
	}
	reach := world.NewReachabilityAnalyzer(w.Registry)
	index := world.NewSpatialIndex(w.Registry, spatialRadius)

	// === СОБЫТИЯ ===
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eventMetrics := events.NewMetrics(promReg)
	queue := events.NewQueue(eventMetrics)
	dispatcher := events.NewDispatcher(queue,
		events.WithMetrics(eventMetrics),
		events.WithTracer(otel.Tracer("tileworld/events")),
	)
	dispatcher.Observe(events.LogObserver(logging.GetEventsLogger()))

	renderer, err := delivery.NewRenderer(delivery.DefaultCompressThreshold)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer renderer.Close()

	sessions := delivery.NewSessions()
	players := player.NewRegistry()
	delivery.NewDelivery(sessions, players, renderer).Install(dispatcher)

	if cfg.Events.NATSURL != "" {
		mirror, err := delivery.NewNATSMirror(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, renderer)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer mirror.Close()
		dispatcher.Observe(mirror.Observer())
	}

	// === ИГРА ===
	policy, err := movement.ParseObstaclePolicy(cfg.World.ObstaclePolicy)
	if err != nil {
		return err
	}
	metro := game.NewMetro(w.Registry, queue, w.MetroLines)
	engine := movement.NewEngine(w.Registry, trigger.DefaultDispatch(), queue,
		movement.WithObstaclePolicy(policy),
		movement.WithMetro(metro),
	)
	interactions := interaction.NewService(w.Registry, queue, economy.NewDebtPool(cfg.World.InitialDebt))

	spawner := spawn.NewManager(w.Registry, reach, w.NPCs, w.Objects, queue)
	populate(spawner, w, cfg.World)

	ticker := game.NewTicker(game.Config{
		Interval:     cfg.World.TickInterval,
		HazardDamage: cfg.World.HazardDamage,
	}, w.Registry, players, index, metro, queue)

	// === ХРАНИЛИЩЕ ===
	positions, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer positions.Close()

	gateway := delivery.NewGateway(delivery.GatewayConfig{
		World:       w.Registry,
		Players:     players,
		Sessions:    sessions,
		Sink:        queue,
		Movement:    engine,
		Interaction: interactions,
		Positions:   positions,
		StartMap:    startMap,
	})

	rest := api.NewRestServer(api.Config{
		Addr:         fmt.Sprintf(":%d", cfg.Server.RESTPort),
		World:        w.Registry,
		Reachability: reach,
		Index:        index,
		Players:      players,
		Sink:         queue,
		Queue:        queue,
		JWTSecret:    cfg.Admin.JWTSecret,
		Registerer:   promReg,
		Gatherer:     promReg,
		WSPath:       cfg.Server.WSPath,
		WS:           gateway,
	})

	var metricsSrv *http.Server
	if cfg.Server.MetricsPort > 0 && cfg.Server.MetricsPort != cfg.Server.RESTPort {
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           middleware.MetricsHandler(promReg),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// === ЗАПУСК ===
	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	// диспетчер живёт дольше сигнального контекста и останавливается закрытием очереди
	goRun("dispatcher", func() error { return dispatcher.Run(context.Background()) })
	goRun("ticker", func() error { return ticker.Run(ctx) })
	wg.Add(1)
	go func() {
		defer wg.Done()
		storage.Autosave(ctx, positions, cfg.Storage.SaveInterval, gateway.Snapshot)
	}()
	go func() {
		if err := rest.Start(); err != nil {
			errCh <- fmt.Errorf("rest: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			logging.Info("📈 Метрики на %s/metrics", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	logging.Info("✅ Сервер запущен: карт %d, стартовая %s, websocket %s, хранилище %s",
		len(w.Registry.Maps()), startMap, cfg.Server.WSPath, cfg.Storage.Backend)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения")
	case runErr = <-errCh:
		logging.Error("❌ Сбой компонента: %v", runErr)
	}

	// === GRACEFUL SHUTDOWN ===
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rest.Shutdown(sctx); err != nil {
		logging.Warn("Ошибка остановки REST API: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(sctx)
	}
	// ticker и autosave останавливаются по ctx, затем очередь дочитывается
	stop()
	queue.Close()
	wg.Wait()

	logging.Info("👋 Сервер остановлен")
	return runErr
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			log.Printf("каталог логов %s недоступен: %v", cfg.Dir, err)
		} else {
			logging.GetLoggerManager().SetLogDir(cfg.Dir)
		}
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Level))
}

// populate заполняет маркерные слоты и добавляет случайные сущности на каждую карту
func populate(m *spawn.Manager, w *worlddata.World, cfg config.WorldConfig) {
	var npcIDs, objectIDs []string
	for _, t := range w.NPCs.Templates() {
		npcIDs = append(npcIDs, t.ID)
	}
	for _, t := range w.Objects.Templates() {
		objectIDs = append(objectIDs, t.ID)
	}

	for _, wm := range w.Registry.Maps() {
		if _, err := m.SpawnAtSlots(wm.ID, npcIDs, objectIDs); err != nil {
			logging.Warn("Слоты карты %s: %v", wm.ID, err)
		}
		if wm.Zone == world.ZoneSafe {
			continue
		}
		if len(npcIDs) > 0 && cfg.NPCsPerMap > 0 {
			if _, err := m.SpawnRandomNPCs(wm.ID, npcIDs, cfg.NPCsPerMap); err != nil {
				logging.Warn("NPC на карте %s: %v", wm.ID, err)
			}
		}
		if len(objectIDs) > 0 && cfg.ObjectsPerMap > 0 {
			if _, err := m.SpawnRandomObjects(wm.ID, objectIDs, cfg.ObjectsPerMap); err != nil {
				logging.Warn("Объекты на карте %s: %v", wm.ID, err)
			}
		}
	}
}
