package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a Cache-Control header on GET responses by endpoint
// unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/graphql":
			ttl = "private, max-age=0"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		// Tower sets change on every mutation; query answers are short lived.
		case path == "/v1/towers/nearest" || path == "/v1/towers/in-area":
			ttl = "public, max-age=30"

		case path == "/v1/coverage":
			ttl = "public, max-age=60"

		case strings.HasPrefix(path, "/v1/towers"), strings.HasPrefix(path, "/api/v1/towers"):
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
