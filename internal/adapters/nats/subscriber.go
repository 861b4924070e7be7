package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS and makes sure the streams exist.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeOutreachRequests consumes queued invitations. A message is
// redelivered when the handler fails, up to three times.
func (s *Subscriber) SubscribeOutreachRequests(ctx context.Context, handler func(ctx context.Context, req *domain.OutreachRequest) error) error {
	return subscribe(ctx, s, SubjectOutreachRequested, "outreach-worker", handler)
}

// SubscribeAgencyContacted consumes contacted registry changes.
func (s *Subscriber) SubscribeAgencyContacted(ctx context.Context, handler func(ctx context.Context, rec *domain.ContactRecord) error) error {
	return subscribe(ctx, s, SubjectAgencyContacted, "contact-audit", handler)
}

// SubscribeDatasetUpdated delivers listing reloads published from now on.
// Every subscriber gets every update, so each API replica can refresh its
// own map sessions.
func (s *Subscriber) SubscribeDatasetUpdated(ctx context.Context, handler func(ctx context.Context, update *domain.DatasetUpdate) error) error {
	return subscribe(ctx, s, SubjectDatasetUpdated, "", handler)
}

func subscribe[T any](ctx context.Context, s *Subscriber, subject, durable string, handler func(context.Context, *T) error) error {
	opts := []nats.SubOpt{nats.ManualAck(), nats.MaxDeliver(3)}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	} else {
		opts = append(opts, nats.DeliverNew())
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			slog.Warn("dropping malformed message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &v); err != nil {
			slog.Warn("handler failed", "subject", msg.Subject, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
