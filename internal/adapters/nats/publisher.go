package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// Subjects carried by the directory streams.
const (
	SubjectMapDisplaySet     = "directory.map.display_set"
	SubjectOutreachRequested = "directory.outreach.requested"
	SubjectAgencyContacted   = "directory.agency.contacted"
	SubjectDatasetUpdated    = "directory.agencies.updated"
)

// Streams are created on first connect and updated when they already exist.
var streams = []nats.StreamConfig{
	{
		Name:      "MAP_EVENTS",
		Subjects:  []string{SubjectMapDisplaySet + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:       "OUTREACH",
		Subjects:   []string{SubjectOutreachRequested},
		Retention:  nats.WorkQueuePolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 24 * time.Hour,
	},
	{
		Name:      "CONTACTS",
		Subjects:  []string{SubjectAgencyContacted},
		Retention: nats.InterestPolicy,
		MaxAge:    30 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "DIRECTORY",
		Subjects:  []string{SubjectDatasetUpdated},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		MaxMsgs:   100,
		Storage:   nats.FileStorage,
	},
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	for i := range streams {
		cfg := streams[i]
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishMapEvent records a display-set change of one map session.
func (p *Publisher) PublishMapEvent(ctx context.Context, event *domain.MapEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectMapDisplaySet+"."+event.SessionID, data, nats.Context(ctx))
	return err
}

// PublishOutreachRequested queues an invitation. Requests for the same
// agency within the duplicate window are dropped by the server.
func (p *Publisher) PublishOutreachRequested(ctx context.Context, req *domain.OutreachRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectOutreachRequested, data,
		nats.Context(ctx),
		nats.MsgId("outreach-"+req.AgencyID),
	)
	return err
}

// PublishAgencyContacted announces a contacted registry change.
func (p *Publisher) PublishAgencyContacted(ctx context.Context, rec *domain.ContactRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectAgencyContacted, data, nats.Context(ctx))
	return err
}

// PublishDatasetUpdated announces that the agency listing was reloaded.
func (p *Publisher) PublishDatasetUpdated(ctx context.Context, update *domain.DatasetUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectDatasetUpdated, data, nats.Context(ctx))
	return err
}

// Connected reports whether the connection is currently up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// connect opens a plain NATS connection with reconnects enabled.
func connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("annuaire"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
