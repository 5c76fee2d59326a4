package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers accepted by store.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Coverage  CoverageConfig  `mapstructure:"coverage"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	OpenAPIPath  string `mapstructure:"openapi_path"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// StoreConfig selects the tower store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // postgres | sqlite | memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

// NATSConfig configures event fan-out between instances. An empty URL disables it.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Durable string `mapstructure:"durable"`
}

// ValkeyConfig configures the query cache. An empty address disables it.
type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CoverageConfig tunes boundary construction and the coverage test.
type CoverageConfig struct {
	Segments        int     `mapstructure:"segments"`
	MinRadiusKm     float64 `mapstructure:"min_radius_km"`
	MaxRadiusKm     float64 `mapstructure:"max_radius_km"`
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`
	ToleranceFloorM float64 `mapstructure:"tolerance_floor_m"`
	ToleranceRatio  float64 `mapstructure:"tolerance_ratio"`
}

// GenerateConfig bounds random tower generation.
type GenerateConfig struct {
	MaxCount    int     `mapstructure:"max_count"`
	RadiusMinKm float64 `mapstructure:"radius_min_km"`
	RadiusMaxKm float64 `mapstructure:"radius_max_km"`
	TowerType   string  `mapstructure:"tower_type"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.openapi_path", "api/openapi.yaml")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "towers")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "towerlocator")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.sqlite_path", "towers.db")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.durable", service)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "coverage-rebuild")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("coverage.segments", 64)
	v.SetDefault("coverage.min_radius_km", 0.1)
	v.SetDefault("coverage.max_radius_km", 5.0)
	v.SetDefault("coverage.default_radius_km", 1.0)
	v.SetDefault("coverage.tolerance_floor_m", 150.0)
	v.SetDefault("coverage.tolerance_ratio", 0.15)
	v.SetDefault("generate.max_count", 1000)
	v.SetDefault("generate.radius_min_km", 0.5)
	v.SetDefault("generate.radius_max_km", 3.0)
	v.SetDefault("generate.tower_type", "4G")
	v.SetDefault("cache.ttl_seconds", 30)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TOWERS_DATABASE_HOST → database.host
	v.SetEnvPrefix("TOWERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "database.max_conns must be positive")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres, sqlite or memory, got %q", c.Store.Driver))
	}

	cv := c.Coverage
	if cv.Segments < 32 {
		errs = append(errs, fmt.Sprintf("coverage.segments must be at least 32, got %d", cv.Segments))
	}
	if cv.MinRadiusKm <= 0 || cv.MinRadiusKm > cv.MaxRadiusKm {
		errs = append(errs, "coverage.min_radius_km must be positive and not above coverage.max_radius_km")
	}
	if cv.DefaultRadiusKm < cv.MinRadiusKm || cv.DefaultRadiusKm > cv.MaxRadiusKm {
		errs = append(errs, "coverage.default_radius_km must lie within [min_radius_km, max_radius_km]")
	}
	if cv.ToleranceFloorM < 0 || cv.ToleranceRatio < 0 {
		errs = append(errs, "coverage tolerances must not be negative")
	}

	g := c.Generate
	if g.MaxCount <= 0 {
		errs = append(errs, "generate.max_count must be positive")
	}
	if g.RadiusMinKm <= 0 || g.RadiusMinKm > g.RadiusMaxKm {
		errs = append(errs, "generate.radius_min_km must be positive and not above generate.radius_max_km")
	}
	if g.RadiusMinKm < cv.MinRadiusKm || g.RadiusMaxKm > cv.MaxRadiusKm {
		errs = append(errs, "generate radius range must lie within the coverage radius limits")
	}

	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, "cache.ttl_seconds must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "telemetry.sample_ratio must be in [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
