package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/nats"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/postgres"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/smtp"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/config"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/logging"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/telemetry"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/workflows"
)

func main() {
	cfg, err := config.Load("annuaire-outreach")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("annuaire-outreach", cfg.Log.Level, cfg.Log.Format)

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

	mailer, err := smtp.New(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		log.Fatalf("smtp: %v", err)
	}

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats publisher unavailable, contact events disabled", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	outreach := usecases.NewOutreachService(
		postgres.NewAgencyRepo(db),
		postgres.NewContactRepo(db),
		mailer,
		publisher,
		usecases.OutreachConfig{
			ProfileBaseURL: cfg.Outreach.ProfileBaseURL,
			ReferralCode:   cfg.Outreach.ReferralCode,
			SentBy:         cfg.Outreach.SentBy,
		},
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.OutreachWorkflow)
	w.RegisterActivity(&workflows.OutreachActivities{Outreach: outreach})

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeOutreachRequests(ctx, func(ctx context.Context, req *domain.OutreachRequest) error {
		return startOutreach(ctx, c, cfg.Temporal.TaskQueue, req)
	})
	if err != nil {
		log.Fatalf("subscribe outreach requests: %v", err)
	}

	slog.Info("outreach worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// startOutreach starts one workflow per agency. A request for an agency whose
// run is still open is acknowledged without starting another.
func startOutreach(ctx context.Context, c client.Client, taskQueue string, req *domain.OutreachRequest) error {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(req.AgencyID),
		TaskQueue: taskQueue,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.OutreachWorkflow, workflows.OutreachInput{
		AgencyID:    req.AgencyID,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			slog.Info("outreach already running", "agency_id", req.AgencyID)
			return nil
		}
		return err
	}
	slog.Info("outreach workflow started", "agency_id", req.AgencyID, "run_id", run.GetRunID())
	return nil
}
