package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set
// their own.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"
		case path == "/metrics", strings.HasPrefix(path, "/ws"):
			ttl = "no-cache"
		case strings.HasPrefix(path, "/v1/contacted-agencies"), strings.HasPrefix(path, "/v1/outreach"):
			ttl = "private, no-store"
		case path == "/v1/agencies/nearby", path == "/v1/agencies/search", path == "/v1/agencies/within":
			ttl = "public, max-age=300"
		case path == "/v1/agencies/facets", path == "/v1/agencies/featured":
			ttl = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/agencies/"):
			ttl = "public, max-age=600"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}
		return err
	}
}
