package ports

import (
	"context"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// AgencyRepository persists agencies.
type AgencyRepository interface {
	Upsert(ctx context.Context, agency *domain.Agency) error
	UpsertBatch(ctx context.Context, agencies []domain.Agency) error
	GetBySlug(ctx context.Context, slug string) (*domain.Agency, error)
	GetByID(ctx context.Context, id string) (*domain.Agency, error)
	List(ctx context.Context) ([]domain.Agency, error)
}

// ContactRepository persists the outreach contacted registry.
type ContactRepository interface {
	// Reserve inserts a pending record. It fails with domain.ErrAlreadyContacted
	// when a record for the agency already exists.
	Reserve(ctx context.Context, agencyID, by string) error
	Mark(ctx context.Context, rec *domain.ContactRecord) error
	Unmark(ctx context.Context, agencyID string) error
	Get(ctx context.Context, agencyID string) (*domain.ContactRecord, error)
	List(ctx context.Context) ([]domain.ContactRecord, error)
}
