package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

const agencyColumns = `
	id, slug, title, total_score, reviews_count, street, city, city_normalized,
	state, country_code, country, website, phone, email, category_name, category,
	url, description, featured, verified, image_url,
	ST_Y(location::geometry) AS lat, ST_X(location::geometry) AS lng, created_at`

const upsertAgency = `
	INSERT INTO agencies (
		id, slug, title, total_score, reviews_count, street, city, city_normalized,
		state, country_code, country, website, phone, email, category_name, category,
		url, description, featured, verified, image_url, location, position, created_at)
	VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21,
		CASE WHEN $22::float8 IS NULL OR $23::float8 IS NULL THEN NULL
		     ELSE ST_SetSRID(ST_MakePoint($23, $22), 4326)::geography END,
		COALESCE($24::int, (SELECT COALESCE(MAX(position), -1) + 1 FROM agencies)), $25)
	ON CONFLICT (id) DO UPDATE
	SET slug = EXCLUDED.slug, title = EXCLUDED.title,
	    total_score = EXCLUDED.total_score, reviews_count = EXCLUDED.reviews_count,
	    street = EXCLUDED.street, city = EXCLUDED.city, city_normalized = EXCLUDED.city_normalized,
	    state = EXCLUDED.state, country_code = EXCLUDED.country_code, country = EXCLUDED.country,
	    website = EXCLUDED.website, phone = EXCLUDED.phone, email = EXCLUDED.email,
	    category_name = EXCLUDED.category_name, category = EXCLUDED.category,
	    url = EXCLUDED.url, description = EXCLUDED.description,
	    featured = EXCLUDED.featured, verified = EXCLUDED.verified,
	    image_url = EXCLUDED.image_url, location = EXCLUDED.location,
	    position = COALESCE($24::int, agencies.position)`

// AgencyRepo implements ports.AgencyRepository with pgx.
type AgencyRepo struct {
	db *DB
}

// NewAgencyRepo creates a new AgencyRepo.
func NewAgencyRepo(db *DB) *AgencyRepo {
	return &AgencyRepo{db: db}
}

// Upsert inserts or updates a single agency. New agencies are appended to
// the end of the listing.
func (r *AgencyRepo) Upsert(ctx context.Context, a *domain.Agency) error {
	if _, err := r.db.Pool.Exec(ctx, upsertAgency, upsertArgs(a, nil)...); err != nil {
		return fmt.Errorf("upsert agency %s: %w", a.ID, err)
	}
	return nil
}

// UpsertBatch inserts many agencies using pgx.Batch. The slice order
// becomes the listing order.
func (r *AgencyRepo) UpsertBatch(ctx context.Context, agencies []domain.Agency) error {
	batch := &pgx.Batch{}
	for i := range agencies {
		pos := i
		batch.Queue(upsertAgency, upsertArgs(&agencies[i], &pos)...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range agencies {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec %s: %w", agencies[i].ID, err)
		}
	}
	return nil
}

// GetBySlug returns an agency by slug.
func (r *AgencyRepo) GetBySlug(ctx context.Context, slug string) (*domain.Agency, error) {
	a, err := scanAgency(r.db.Pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE slug = $1`, slug))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetByID returns an agency by id.
func (r *AgencyRepo) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	a, err := scanAgency(r.db.Pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// List returns every agency in listing order.
func (r *AgencyRepo) List(ctx context.Context) ([]domain.Agency, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+agencyColumns+` FROM agencies ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agencies []domain.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		agencies = append(agencies, *a)
	}
	return agencies, rows.Err()
}

func upsertArgs(a *domain.Agency, position *int) []any {
	var lat, lng *float64
	if a.Location != nil {
		lat, lng = &a.Location.Lat, &a.Location.Lng
	}
	return []any{
		a.ID, a.Slug, a.Title, a.TotalScore, a.ReviewsCount, a.Street, a.City, a.CityNormalized,
		a.State, a.CountryCode, a.Country, a.Website, a.Phone, a.Email, a.CategoryName, a.Category,
		a.URL, a.Description, a.Featured, a.Verified, a.ImageURL,
		lat, lng, position, a.CreatedAt,
	}
}

func scanAgency(row pgx.Row) (*domain.Agency, error) {
	var (
		a        domain.Agency
		lat, lng *float64
	)
	err := row.Scan(
		&a.ID, &a.Slug, &a.Title, &a.TotalScore, &a.ReviewsCount, &a.Street, &a.City, &a.CityNormalized,
		&a.State, &a.CountryCode, &a.Country, &a.Website, &a.Phone, &a.Email, &a.CategoryName, &a.Category,
		&a.URL, &a.Description, &a.Featured, &a.Verified, &a.ImageURL,
		&lat, &lng, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		a.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return &a, nil
}
