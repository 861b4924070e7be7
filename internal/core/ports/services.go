package ports

import (
	"context"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishMapEvent(ctx context.Context, event *domain.MapEvent) error
	PublishOutreachRequested(ctx context.Context, req *domain.OutreachRequest) error
	PublishAgencyContacted(ctx context.Context, rec *domain.ContactRecord) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeOutreachRequests(ctx context.Context, handler func(ctx context.Context, req *domain.OutreachRequest) error) error
	SubscribeAgencyContacted(ctx context.Context, handler func(ctx context.Context, rec *domain.ContactRecord) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Mailer delivers outreach emails.
type Mailer interface {
	Send(ctx context.Context, email *domain.OutreachEmail) error
}
