package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/towerlocator/internal/adapters/http"
	natsadapter "github.com/samirrijal/towerlocator/internal/adapters/nats"
	"github.com/samirrijal/towerlocator/internal/app"
	"github.com/samirrijal/towerlocator/internal/pkg/config"
	"github.com/samirrijal/towerlocator/internal/pkg/logging"
	"github.com/samirrijal/towerlocator/internal/pkg/telemetry"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load("towerlocator-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Store, cache, event publisher and the tower service
	rt, err := app.Open(ctx, cfg, app.Options{Cache: true, Events: true})
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	if rt.DB != nil {
		go rt.DB.ReportStats(ctx, 15*time.Second)
	}

	// Replicas reload their index when another instance changes the tower set
	if cfg.NATS.URL != "" {
		durable := fmt.Sprintf("%s-%s", cfg.NATS.Durable, rt.InstanceID[:8])
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, durable)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeTowerEvents(ctx, rt.Towers.HandleEvent); err != nil {
				slog.Warn("subscribe tower events", "error", err)
			}
		}
	}

	// Raw NATS connection for WebSocket relay
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
		}
	}

	deps := &http.Dependencies{
		Towers:      rt.Towers,
		NATS:        natsConn,
		OpenAPIPath: cfg.Server.OpenAPIPath,
	}
	if rt.Cache != nil {
		deps.Cache = rt.Cache
	}

	// Fiber
	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Tower Locator API",
	})
	server.Use(recover.New())
	server.Use(logger.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(server, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "instance", rt.InstanceID)
		if err := server.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Cached answers are scoped to this instance and useless after it exits
	if rt.Cache != nil {
		if n, err := rt.Cache.Purge(shutdownCtx, "towers:"+rt.InstanceID+":*"); err != nil {
			slog.Warn("cache purge failed", "error", err)
		} else {
			slog.Info("cache purged", "keys", n)
		}
	}

	slog.Info("server stopped")
}
