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
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/http"
	natsadapter "github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/nats"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/postgres"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/valkey"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/config"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/logging"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("annuaire-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup("annuaire-api", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: db, Version: version}

	// Optional backends stay nil interfaces when unavailable.
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer p.Close()
		publisher = p
		deps.Events = p
	}

	agencyRepo := postgres.NewAgencyRepo(db)
	contactRepo := postgres.NewContactRepo(db)

	deps.Agencies = usecases.NewAgencyService(agencyRepo, cache)
	deps.MapSessions = usecases.NewMapSessionService(deps.Agencies, cache, publisher, mapview.Config{
		MaxMarkers:       cfg.Map.MaxMarkers,
		MaxSearchResults: cfg.Map.MaxSearchResults,
		SettleInterval:   cfg.Map.SettleInterval(),
		LocateTimeout:    cfg.Map.LocateTimeout(),
		RelocateTimeout:  cfg.Map.RelocateTimeout(),
	}, cfg.Map.SessionTTL())
	// Invitations are sent by the outreach worker; the API only queues them.
	deps.Outreach = usecases.NewOutreachService(agencyRepo, contactRepo, nil, publisher, usecases.OutreachConfig{
		ProfileBaseURL: cfg.Outreach.ProfileBaseURL,
		ReferralCode:   cfg.Outreach.ReferralCode,
		SentBy:         cfg.Outreach.SentBy,
	})

	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		subscribeDirectoryEvents(ctx, sub, deps)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Annuaire Voyage API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://travelagencies.world",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// subscribeDirectoryEvents reloads open map sessions after an ingest and
// keeps an audit trail of contacted registry changes.
func subscribeDirectoryEvents(ctx context.Context, sub *natsadapter.Subscriber, deps *http.Dependencies) {
	err := sub.SubscribeDatasetUpdated(ctx, func(ctx context.Context, u *domain.DatasetUpdate) error {
		if err := deps.Agencies.Invalidate(ctx); err != nil {
			slog.Warn("invalidate agency cache", "error", err)
		}
		if err := deps.MapSessions.Refresh(ctx); err != nil {
			return err
		}
		slog.Info("agency listing reloaded", "source", u.Source, "count", u.Count, "sessions", deps.MapSessions.Active())
		return nil
	})
	if err != nil {
		slog.Warn("subscribe dataset updates", "error", err)
	}

	err = sub.SubscribeAgencyContacted(ctx, func(ctx context.Context, rec *domain.ContactRecord) error {
		slog.Info("agency contacted", "agency_id", rec.AgencyID, "by", rec.ContactedBy, "at", rec.ContactedAt)
		return nil
	})
	if err != nil {
		slog.Warn("subscribe agency contacted", "error", err)
	}
}
