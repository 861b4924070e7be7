package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		}
		if deps.MapSessions != nil {
			body["map_sessions"] = deps.MapSessions.Active()
		}
		return c.JSON(body)
	}
}

type probe struct {
	name     string
	required bool
	check    func(ctx context.Context) (configured bool, err error)
}

func readinessProbes(deps *Dependencies) []probe {
	return []probe{
		{name: "database", required: true, check: func(ctx context.Context) (bool, error) {
			if deps.DB == nil {
				return false, nil
			}
			return true, deps.DB.Ping(ctx)
		}},
		{name: "cache", check: func(ctx context.Context) (bool, error) {
			if deps.Cache == nil {
				return false, nil
			}
			return true, deps.Cache.Ping(ctx)
		}},
		{name: "nats", check: func(context.Context) (bool, error) {
			if deps.Events == nil {
				return false, nil
			}
			if !deps.Events.Connected() {
				return true, errDisconnected
			}
			return true, nil
		}},
	}
}

var errDisconnected = errors.New("disconnected")

// ReadyHandler reports backend connectivity. The database must be
// configured; cache and NATS may be absent but not failing.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	probes := readinessProbes(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string, len(probes))
		ready := true
		for _, p := range probes {
			configured, err := p.check(ctx)
			switch {
			case !configured:
				checks[p.name] = "not configured"
				if p.required {
					ready = false
				}
			case err != nil:
				checks[p.name] = "error: " + err.Error()
				ready = false
			default:
				checks[p.name] = "ok"
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": checks})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}
