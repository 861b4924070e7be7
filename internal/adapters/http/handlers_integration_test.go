//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/http"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/postgres"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/config"
)

// setupTestDB connects to the database configured for annuaire-test. The
// schema must already be migrated.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("annuaire-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	agencies := postgres.NewAgencyRepo(db)
	contacts := postgres.NewContactRepo(db)
	return &handler.Dependencies{
		Agencies:    usecases.NewAgencyService(agencies, nil),
		MapSessions: usecases.NewMapSessionService(agencies, nil, nil, mapview.DefaultConfig(), time.Hour),
		Outreach:    usecases.NewOutreachService(agencies, contacts, nil, nil, usecases.OutreachConfig{}),
		DB:          db,
	}
}

// seedTestAgency upserts one agency and removes it when the test ends.
func seedTestAgency(t *testing.T, db *postgres.DB, a domain.Agency) {
	t.Helper()
	ctx := context.Background()
	if err := postgres.NewAgencyRepo(db).Upsert(ctx, &a); err != nil {
		t.Fatalf("seed agency: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM contacted_agencies WHERE agency_id = $1`, a.ID)
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM agencies WHERE id = $1`, a.ID)
	})
}

func integrationApp(db *postgres.DB) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, setupTestDeps(db))
	return app
}

func TestGetAgency_Integration(t *testing.T) {
	db := setupTestDB(t)
	seedTestAgency(t, db, domain.Agency{
		ID: "it-agency-1", Slug: "it-agency-1", Title: "Integration Voyages",
		City: "Fes", CityNormalized: "Fes", Country: "Morocco", Category: "Travel agency",
		Location: &domain.GeoPoint{Lat: 34.0331, Lng: -5.0003},
	})
	app := integrationApp(db)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/agencies/it-agency-1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var a domain.Agency
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Location == nil || a.Location.Lat != 34.0331 || a.Location.Lng != -5.0003 {
		t.Errorf("location did not round-trip: %+v", a.Location)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/agencies/it-missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestNearbyAgencies_Integration(t *testing.T) {
	db := setupTestDB(t)
	seedTestAgency(t, db, domain.Agency{
		ID: "it-near", Slug: "it-near", Title: "Near Integration", CityNormalized: "Tangier", Country: "Morocco",
		Location: &domain.GeoPoint{Lat: 35.7595, Lng: -5.8340},
	})
	seedTestAgency(t, db, domain.Agency{
		ID: "it-unmapped", Slug: "it-unmapped", Title: "Unmapped Integration", CityNormalized: "Unknown", Country: "Unknown",
	})
	app := integrationApp(db)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/agencies/nearby?lat=35.76&lng=-5.83&limit=1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var ranked []domain.RankedAgency
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ranked) != 1 || ranked[0].ID != "it-near" {
		t.Errorf("expected it-near first, got %+v", ranked)
	}
}

func TestContactRegistry_Integration(t *testing.T) {
	db := setupTestDB(t)
	seedTestAgency(t, db, domain.Agency{ID: "it-contact", Slug: "it-contact", Title: "Contact Integration"})
	contacts := postgres.NewContactRepo(db)
	ctx := context.Background()

	if err := contacts.Reserve(ctx, "it-contact", "tester"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := contacts.Reserve(ctx, "it-contact", "tester"); !errors.Is(err, domain.ErrAlreadyContacted) {
		t.Fatalf("expected ErrAlreadyContacted on second reserve, got %v", err)
	}
	if err := contacts.Mark(ctx, &domain.ContactRecord{AgencyID: "it-contact", Contacted: true, ContactedBy: "tester", ContactedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	rec, err := contacts.Get(ctx, "it-contact")
	if err != nil || rec.Pending || !rec.Contacted {
		t.Fatalf("unexpected record %+v err=%v", rec, err)
	}
	if err := contacts.Unmark(ctx, "it-contact"); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if _, err := contacts.Get(ctx, "it-contact"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after unmark, got %v", err)
	}
}
