package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers the REST, GraphQL and map socket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/v1/health" || c.Path() == "/metrics"
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Directory. Fixed paths must come before /:slug.
	v1.Get("/agencies", withTimeout(ListAgenciesHandler(deps)))
	v1.Get("/agencies/featured", withTimeout(FeaturedAgenciesHandler(deps)))
	v1.Get("/agencies/facets", withTimeout(FacetsHandler(deps)))
	v1.Get("/agencies/nearby", withTimeout(NearbyAgenciesHandler(deps)))
	v1.Get("/agencies/search", withTimeout(SearchAgenciesHandler(deps)))
	v1.Get("/agencies/within", withTimeout(WithinBoundsHandler(deps)))
	v1.Get("/agencies/geojson", withTimeout(MarkersGeoJSONHandler(deps)))
	v1.Get("/agencies/:slug", withTimeout(GetAgencyHandler(deps)))

	v1.Get("/contacted-agencies", withTimeout(ListContactedHandler(deps)))
	v1.Post("/contacted-agencies", withTimeout(UpdateContactedHandler(deps)))

	v1.Get("/outreach/candidates", withTimeout(OutreachCandidatesHandler(deps)))
	v1.Post("/outreach/requests", withTimeout(RequestOutreachHandler(deps)))
	v1.Get("/outreach/preview/:id", withTimeout(PreviewOutreachHandler(deps)))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	docsPath := deps.DocsPath
	if docsPath == "" {
		docsPath = DefaultOpenAPIPath
	}
	SetupDocs(app, docsPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/map", websocket.New(MapSocketHandler(deps)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}
