package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
// Значения берутся из Default(), затем из YAML-файла, затем из переменных окружения.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Events    EventsConfig    `yaml:"events"`
	Storage   StorageConfig   `yaml:"storage"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port" env:"TILEWORLD_REST_PORT"`
	MetricsPort int    `yaml:"metrics_port" env:"TILEWORLD_METRICS_PORT"`
	WSPath      string `yaml:"ws_path" env:"TILEWORLD_WS_PATH"`
}

type WorldConfig struct {
	DataFile       string        `yaml:"data_file" env:"TILEWORLD_WORLD_FILE"`
	StartMap       string        `yaml:"start_map" env:"TILEWORLD_START_MAP"`
	ObstaclePolicy string        `yaml:"obstacle_policy" env:"TILEWORLD_OBSTACLE_POLICY"`
	TickInterval   time.Duration `yaml:"tick_interval" env:"TILEWORLD_TICK_INTERVAL"`
	HazardDamage   int           `yaml:"hazard_damage" env:"TILEWORLD_HAZARD_DAMAGE"`
	InitialDebt    int64         `yaml:"initial_debt" env:"TILEWORLD_INITIAL_DEBT"`
	NPCsPerMap     int           `yaml:"npcs_per_map" env:"TILEWORLD_NPCS_PER_MAP"`
	ObjectsPerMap  int           `yaml:"objects_per_map" env:"TILEWORLD_OBJECTS_PER_MAP"`
}

// EventsConfig: зеркалирование рассылок в NATS. Пустой URL отключает зеркало.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url" env:"TILEWORLD_NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"TILEWORLD_NATS_SUBJECT_PREFIX"`
}

type StorageConfig struct {
	Backend      string        `yaml:"backend" env:"TILEWORLD_STORAGE_BACKEND"`
	DSN          string        `yaml:"dsn" env:"TILEWORLD_STORAGE_DSN"`
	Database     string        `yaml:"database" env:"TILEWORLD_STORAGE_DATABASE"`
	SaveInterval time.Duration `yaml:"save_interval" env:"TILEWORLD_SAVE_INTERVAL"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"TILEWORLD_JWT_SECRET"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"TILEWORLD_TELEMETRY"`
	ServiceName string `yaml:"service_name" env:"TILEWORLD_SERVICE_NAME"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"TILEWORLD_LOG_LEVEL"`
	Dir   string `yaml:"dir" env:"TILEWORLD_LOG_DIR"`
}

// Поддерживаемые хранилища позиций
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMaria  = "maria"
	BackendMongo  = "mongo"
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RESTPort:    8088,
			MetricsPort: 2112,
			WSPath:      "/ws",
		},
		World: WorldConfig{
			DataFile:       "data/world.yaml",
			ObstaclePolicy: "block",
			TickInterval:   time.Second,
			HazardDamage:   1,
			InitialDebt:    1_000_000,
			NPCsPerMap:     4,
			ObjectsPerMap:  4,
		},
		Events: EventsConfig{
			SubjectPrefix: "tileworld.events",
		},
		Storage: StorageConfig{
			Backend:      BackendMemory,
			SaveInterval: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tileworld",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load собирает конфигурацию. Если path пуст, берётся TILEWORLD_CONFIG;
// если и он пуст, используются значения по умолчанию и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TILEWORLD_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error
	if c.Server.RESTPort <= 0 {
		errs = append(errs, fmt.Errorf("server.rest_port должен быть положительным"))
	}
	if c.World.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("world.tick_interval должен быть положительным"))
	}
	switch c.World.ObstaclePolicy {
	case "", "block", "commit":
	default:
		errs = append(errs, fmt.Errorf("world.obstacle_policy: неизвестное значение %q", c.World.ObstaclePolicy))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger, BackendRedis, BackendMaria, BackendMongo:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn обязателен для %s", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: неизвестное хранилище %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}
