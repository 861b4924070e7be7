package http

import (
	"context"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
)

// Pinger is a backend that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity reports whether a long-lived connection is up.
type Connectivity interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers. Backends left
// nil are reported as not configured by the readiness check.
type Dependencies struct {
	Agencies    *usecases.AgencyService
	MapSessions *usecases.MapSessionService
	Outreach    *usecases.OutreachService
	DB          Pinger
	Cache       Pinger
	Events      Connectivity
	Version     string
	// DocsPath overrides DefaultOpenAPIPath.
	DocsPath string
}
