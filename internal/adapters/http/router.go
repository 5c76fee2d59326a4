package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/towerlocator/internal/pkg/metrics"
)

// SetupRoutes registers the REST, GraphQL and WebSocket routes of the tower API.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "towerlocator",
			"docs":    "/docs",
			"health":  "/v1/health",
		})
	})

	// REST API v1 with a per-request timeout
	const reqTimeout = 15 * time.Second
	v1 := app.Group("/v1")
	v1.Get("/towers", timeout.NewWithContext(ListTowersHandler(deps), reqTimeout))
	v1.Post("/towers", timeout.NewWithContext(CreateTowerHandler(deps), reqTimeout))
	v1.Delete("/towers", timeout.NewWithContext(ClearTowersHandler(deps), reqTimeout))
	v1.Get("/towers/nearest", timeout.NewWithContext(NearestTowerHandler(deps), reqTimeout))
	v1.Get("/towers/in-area", timeout.NewWithContext(TowersInAreaHandler(deps), reqTimeout))
	v1.Post("/towers/generate", timeout.NewWithContext(GenerateTowersHandler(deps), reqTimeout))
	v1.Get("/towers/:id", timeout.NewWithContext(GetTowerHandler(deps), reqTimeout))
	v1.Put("/towers/:id", timeout.NewWithContext(UpdateTowerHandler(deps), reqTimeout))
	v1.Delete("/towers/:id", timeout.NewWithContext(DeleteTowerHandler(deps), reqTimeout))
	v1.Get("/coverage", timeout.NewWithContext(CoverageHandler(deps), reqTimeout))

	// Routes of the first API version, kept for existing map clients
	setupLegacyRoutes(app, deps)

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
