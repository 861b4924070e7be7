package postgres

import (
	"context"
	"fmt"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// ContactRepo implements ports.ContactRepository with pgx.
type ContactRepo struct {
	db *DB
}

// NewContactRepo creates a new ContactRepo.
func NewContactRepo(db *DB) *ContactRepo {
	return &ContactRepo{db: db}
}

// Reserve inserts a pending record unless one already exists.
func (r *ContactRepo) Reserve(ctx context.Context, agencyID, by string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO contacted_agencies (agency_id, contacted, contacted_by, pending)
		VALUES ($1, FALSE, $2, TRUE)
		ON CONFLICT (agency_id) DO NOTHING
	`, agencyID, by)
	if err != nil {
		return fmt.Errorf("reserve contact %s: %w", agencyID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyContacted
	}
	return nil
}

// Mark records the agency as contacted, confirming any reservation.
func (r *ContactRepo) Mark(ctx context.Context, rec *domain.ContactRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO contacted_agencies (agency_id, contacted, contacted_by, contacted_at, pending)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agency_id) DO UPDATE
		SET contacted = EXCLUDED.contacted, contacted_by = EXCLUDED.contacted_by,
		    contacted_at = EXCLUDED.contacted_at, pending = EXCLUDED.pending
	`, rec.AgencyID, rec.Contacted, rec.ContactedBy, rec.ContactedAt, rec.Pending)
	if err != nil {
		return fmt.Errorf("mark contact %s: %w", rec.AgencyID, err)
	}
	return nil
}

// Unmark deletes the record for an agency. Missing records are ignored.
func (r *ContactRepo) Unmark(ctx context.Context, agencyID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM contacted_agencies WHERE agency_id = $1`, agencyID); err != nil {
		return fmt.Errorf("unmark contact %s: %w", agencyID, err)
	}
	return nil
}

// Get returns the record for one agency.
func (r *ContactRepo) Get(ctx context.Context, agencyID string) (*domain.ContactRecord, error) {
	var rec domain.ContactRecord
	err := r.db.Pool.QueryRow(ctx, `
		SELECT agency_id, contacted, contacted_by, contacted_at, pending
		FROM contacted_agencies WHERE agency_id = $1
	`, agencyID).Scan(&rec.AgencyID, &rec.Contacted, &rec.ContactedBy, &rec.ContactedAt, &rec.Pending)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// List returns every record, most recent first.
func (r *ContactRepo) List(ctx context.Context) ([]domain.ContactRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT agency_id, contacted, contacted_by, contacted_at, pending
		FROM contacted_agencies ORDER BY contacted_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContactRecord
	for rows.Next() {
		var rec domain.ContactRecord
		if err := rows.Scan(&rec.AgencyID, &rec.Contacted, &rec.ContactedBy, &rec.ContactedAt, &rec.Pending); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
