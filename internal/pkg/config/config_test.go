package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("towers-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.Store.Driver)
	}
	if cfg.Coverage.Segments != 64 || cfg.Coverage.DefaultRadiusKm != 1.0 {
		t.Errorf("unexpected coverage defaults %+v", cfg.Coverage)
	}
	if cfg.Coverage.ToleranceFloorM != 150 || cfg.Coverage.ToleranceRatio != 0.15 {
		t.Errorf("unexpected tolerance defaults %+v", cfg.Coverage)
	}
	if cfg.Generate.MaxCount != 1000 {
		t.Errorf("expected max_count 1000, got %d", cfg.Generate.MaxCount)
	}
	if cfg.Telemetry.ServiceName != "towers-test" || cfg.NATS.Durable != "towers-test" {
		t.Errorf("service name not applied: %+v %+v", cfg.Telemetry, cfg.NATS)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TOWERS_STORE_DRIVER", "sqlite")
	t.Setenv("TOWERS_STORE_SQLITE_PATH", "/tmp/towers.db")
	t.Setenv("TOWERS_COVERAGE_SEGMENTS", "128")

	cfg, err := Load("towers-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.SQLitePath != "/tmp/towers.db" {
		t.Errorf("store env not applied: %+v", cfg.Store)
	}
	if cfg.Coverage.Segments != 128 {
		t.Errorf("expected 128 segments, got %d", cfg.Coverage.Segments)
	}
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8000, ReadTimeout: 10, WriteTimeout: 10},
		Database:  DatabaseConfig{Host: "localhost", Port: 5432, User: "towers", DBName: "towerlocator", MaxConns: 10},
		Store:     StoreConfig{Driver: DriverPostgres},
		Coverage:  CoverageConfig{Segments: 64, MinRadiusKm: 0.1, MaxRadiusKm: 5, DefaultRadiusKm: 1, ToleranceFloorM: 150, ToleranceRatio: 0.15},
		Generate:  GenerateConfig{MaxCount: 1000, RadiusMinKm: 0.5, RadiusMaxKm: 3},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
}

func TestValidate(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"port":           {func(c *Config) { c.Server.Port = 0 }, "server.port"},
		"driver":         {func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		"sqlite path":    {func(c *Config) { c.Store.Driver = DriverSQLite }, "store.sqlite_path"},
		"segments":       {func(c *Config) { c.Coverage.Segments = 16 }, "coverage.segments"},
		"default radius": {func(c *Config) { c.Coverage.DefaultRadiusKm = 9 }, "coverage.default_radius_km"},
		"generate range": {func(c *Config) { c.Generate.RadiusMaxKm = 8 }, "generate radius range"},
		"sample ratio":   {func(c *Config) { c.Telemetry.SampleRatio = 2 }, "telemetry.sample_ratio"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_MemoryNeedsNoDatabase(t *testing.T) {
	c := validConfig()
	c.Store.Driver = DriverMemory
	c.Database = DatabaseConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("memory driver should not need database settings: %v", err)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	c := validConfig()
	c.Server.Port = -1
	c.Generate.MaxCount = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "server.port") || !strings.Contains(err.Error(), "generate.max_count") {
		t.Errorf("expected both errors, got %v", err)
	}
}
