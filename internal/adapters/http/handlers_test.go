package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/http"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
)

// ---- Mocks ----

type mockAgencyRepo struct {
	listFn      func(ctx context.Context) ([]domain.Agency, error)
	getBySlugFn func(ctx context.Context, slug string) (*domain.Agency, error)
	getByIDFn   func(ctx context.Context, id string) (*domain.Agency, error)
}

func (m *mockAgencyRepo) Upsert(ctx context.Context, a *domain.Agency) error       { return nil }
func (m *mockAgencyRepo) UpsertBatch(ctx context.Context, a []domain.Agency) error { return nil }
func (m *mockAgencyRepo) List(ctx context.Context) ([]domain.Agency, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockAgencyRepo) GetBySlug(ctx context.Context, slug string) (*domain.Agency, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, domain.ErrNotFound
}
func (m *mockAgencyRepo) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type mockContactRepo struct {
	mu      sync.Mutex
	records map[string]domain.ContactRecord
}

func newMockContactRepo() *mockContactRepo {
	return &mockContactRepo{records: map[string]domain.ContactRecord{}}
}

func (m *mockContactRepo) Reserve(ctx context.Context, agencyID, by string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[agencyID]; ok {
		return domain.ErrAlreadyContacted
	}
	m.records[agencyID] = domain.ContactRecord{AgencyID: agencyID, ContactedBy: by, Pending: true}
	return nil
}
func (m *mockContactRepo) Mark(ctx context.Context, rec *domain.ContactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.AgencyID] = *rec
	return nil
}
func (m *mockContactRepo) Unmark(ctx context.Context, agencyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, agencyID)
	return nil
}
func (m *mockContactRepo) Get(ctx context.Context, agencyID string) (*domain.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[agencyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}
func (m *mockContactRepo) List(ctx context.Context) ([]domain.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ContactRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	requested []domain.OutreachRequest
}

func (m *mockPublisher) PublishMapEvent(ctx context.Context, e *domain.MapEvent) error { return nil }
func (m *mockPublisher) PublishOutreachRequested(ctx context.Context, r *domain.OutreachRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = append(m.requested, *r)
	return nil
}
func (m *mockPublisher) PublishAgencyContacted(ctx context.Context, r *domain.ContactRecord) error {
	return nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func fixtureAgencies() []domain.Agency {
	return []domain.Agency{
		{
			ID: "a1", Slug: "atlas-voyages", Title: "Atlas Voyages", City: "Casablanca", CityNormalized: "Casablanca",
			Country: "Morocco", Category: "Travel agency", TotalScore: fptr(4.7), ReviewsCount: iptr(1500),
			Email: "hello@atlas-voyages.ma", Featured: true,
			Location: &domain.GeoPoint{Lat: 33.5731, Lng: -7.5898},
		},
		{
			ID: "a2", Slug: "paris-tours", Title: "Paris Tours", City: "Paris", CityNormalized: "Paris",
			Country: "France", Category: "Tour operator", TotalScore: fptr(4.2), ReviewsCount: iptr(80),
			Website:  "https://paris-tours.fr",
			Location: &domain.GeoPoint{Lat: 48.8566, Lng: 2.3522},
		},
		{
			ID: "a3", Slug: "rabat-travel", Title: "Rabat Travel", City: "Rabat", CityNormalized: "Rabat",
			Country: "Morocco", Category: "Travel agency", TotalScore: fptr(3.9), ReviewsCount: iptr(12),
			Location: &domain.GeoPoint{Lat: 34.0209, Lng: -6.8416},
		},
		{
			ID: "a4", Slug: "nowhere-trips", Title: "Nowhere Trips", CityNormalized: "Unknown",
			Country: "Unknown", Category: "Travel agency",
		},
	}
}

func fixtureRepo() *mockAgencyRepo {
	agencies := fixtureAgencies()
	return &mockAgencyRepo{
		listFn: func(ctx context.Context) ([]domain.Agency, error) { return agencies, nil },
		getBySlugFn: func(ctx context.Context, slug string) (*domain.Agency, error) {
			for i := range agencies {
				if agencies[i].Slug == slug {
					return &agencies[i], nil
				}
			}
			return nil, domain.ErrNotFound
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Agency, error) {
			for i := range agencies {
				if agencies[i].ID == id {
					return &agencies[i], nil
				}
			}
			return nil, domain.ErrNotFound
		},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	repo := fixtureRepo()
	d := &handler.Dependencies{
		Agencies:    usecases.NewAgencyService(repo, nil),
		MapSessions: usecases.NewMapSessionService(repo, nil, nil, mapview.DefaultConfig(), 0),
		Outreach: usecases.NewOutreachService(repo, newMockContactRepo(), nil, nil, usecases.OutreachConfig{
			ProfileBaseURL: "https://travelagencies.world/agencies",
			ReferralCode:   "FOUNDER",
			SentBy:         "outreach-bot",
		}),
		Version: "test",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte, map[string][]string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b, resp.Header
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

// ---- Directory ----

func TestListAgencies_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	result := decode[struct {
		Data       []domain.Agency    `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}](t, body)
	if result.Pagination.Total != 4 || len(result.Data) != 4 {
		t.Fatalf("expected 4 agencies, got %d (total %d)", len(result.Data), result.Pagination.Total)
	}
	if result.Data[0].ID != "a1" {
		t.Errorf("expected featured agency first, got %s", result.Data[0].ID)
	}
}

func TestListAgencies_Filters(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		query string
		want  []string
	}{
		{"country=Morocco", []string{"a1", "a3"}},
		{"city=Paris", []string{"a2"}},
		{"min_rating=4.5", []string{"a1"}},
		{"website=with", []string{"a2"}},
		{"q=rabat", []string{"a3"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, body, _ := do(t, app, "GET", "/v1/agencies?"+tt.query, "")
			if status != 200 {
				t.Fatalf("expected 200, got %d: %s", status, body)
			}
			result := decode[struct {
				Data []domain.Agency `json:"data"`
			}](t, body)
			var got []string
			for _, a := range result.Data {
				got = append(got, a.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListAgencies_BadWebsiteFilter(t *testing.T) {
	app := setupApp(makeDeps())
	status, body, _ := do(t, app, "GET", "/v1/agencies?website=maybe", "")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	apiErr := decode[handler.APIError](t, body)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request code, got %q", apiErr.Code)
	}
}

func TestListAgencies_LinkHeader(t *testing.T) {
	app := setupApp(makeDeps())

	_, _, headers := do(t, app, "GET", "/v1/agencies?country=Morocco&limit=1&offset=0", "")
	link := strings.Join(headers["Link"], ",")
	if !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}
	if strings.Contains(link, `rel="prev"`) {
		t.Errorf("unexpected prev link on first page: %q", link)
	}
	if !strings.Contains(link, "country=Morocco") {
		t.Errorf("expected filters carried into links, got %q", link)
	}
}

func TestGetAgency_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies/paris-tours", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if a := decode[domain.Agency](t, body); a.ID != "a2" {
		t.Errorf("expected a2, got %s", a.ID)
	}
}

func TestGetAgency_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies/missing", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if apiErr := decode[handler.APIError](t, body); apiErr.Message != "agency not found" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestFeaturedAndFacets(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies/featured", "")
	if status != 200 {
		t.Fatalf("featured: expected 200, got %d", status)
	}
	featured := decode[[]domain.Agency](t, body)
	if len(featured) != 1 || featured[0].ID != "a1" {
		t.Errorf("expected only a1 featured, got %+v", featured)
	}

	status, body, _ = do(t, app, "GET", "/v1/agencies/facets", "")
	if status != 200 {
		t.Fatalf("facets: expected 200, got %d", status)
	}
	facets := decode[domain.Facets](t, body)
	if strings.Join(facets.Countries, ",") != "France,Morocco" {
		t.Errorf("unexpected countries %v", facets.Countries)
	}
}

// ---- Map ----

func TestNearbyAgencies_Ranked(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, headers := do(t, app, "GET", "/v1/agencies/nearby?lat=33.9&lng=-6.9", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	ranked := decode[[]domain.RankedAgency](t, body)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 mappable agencies, got %d", len(ranked))
	}
	if ranked[0].ID != "a3" || ranked[1].ID != "a1" || ranked[2].ID != "a2" {
		t.Errorf("unexpected order %s,%s,%s", ranked[0].ID, ranked[1].ID, ranked[2].ID)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].DistanceKm < ranked[i-1].DistanceKm {
			t.Errorf("distances not ascending at %d", i)
		}
	}
	if cc := strings.Join(headers["Cache-Control"], ""); cc != "public, max-age=300" {
		t.Errorf("expected Cache-Control 'public, max-age=300', got %q", cc)
	}
}

func TestNearbyAgencies_Validation(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/v1/agencies/nearby",
		"/v1/agencies/nearby?lat=33.5",
		"/v1/agencies/nearby?lat=abc&lng=1",
		"/v1/agencies/nearby?lat=91&lng=0",
		"/v1/agencies/nearby?lat=0&lng=181",
	} {
		if status, _, _ := do(t, app, "GET", target, ""); status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}

	if status, _, _ := do(t, app, "GET", "/v1/agencies/nearby?lat=0&lng=0", ""); status != 200 {
		t.Errorf("zero coordinates must be accepted, got %d", status)
	}
}

func TestSearchAgencies(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies/search?q=MOROCCO", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := decode[[]domain.Agency](t, body); len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}

	// non-mappable agencies are never search results
	status, body, _ = do(t, app, "GET", "/v1/agencies/search?q=nowhere", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := decode[[]domain.Agency](t, body); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}

	if status, _, _ := do(t, app, "GET", "/v1/agencies/search?q=%20%20", ""); status != 400 {
		t.Errorf("blank query: expected 400, got %d", status)
	}
	long := strings.Repeat("a", 201)
	if status, _, _ := do(t, app, "GET", "/v1/agencies/search?q="+long, ""); status != 400 {
		t.Errorf("long query: expected 400, got %d", status)
	}
}

func TestWithinBounds(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/agencies/within?min_lat=30&min_lng=-10&max_lat=36&max_lng=-5", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	got := decode[[]domain.Agency](t, body)
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a3" {
		t.Errorf("unexpected agencies in bounds: %+v", got)
	}

	if status, _, _ := do(t, app, "GET", "/v1/agencies/within?min_lat=36&min_lng=-10&max_lat=30&max_lng=-5", ""); status != 400 {
		t.Errorf("inverted bounds: expected 400, got %d", status)
	}
	if status, _, _ := do(t, app, "GET", "/v1/agencies/within?min_lat=30", ""); status != 400 {
		t.Errorf("missing bounds: expected 400, got %d", status)
	}
}

func TestMarkersGeoJSON(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, headers := do(t, app, "GET", "/v1/agencies/geojson?lat=48.8&lng=2.3&limit=2", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if ct := strings.Join(headers["Content-Type"], ""); !strings.HasPrefix(ct, "application/geo+json") {
		t.Errorf("unexpected content type %q", ct)
	}

	fc := decode[struct {
		Type     string    `json:"type"`
		Reason   string    `json:"reason"`
		Summary  string    `json:"summary"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			ID         string         `json:"id"`
			Geometry   map[string]any `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, body)

	if fc.Type != "FeatureCollection" || fc.Reason != "location" {
		t.Fatalf("unexpected collection type=%s reason=%s", fc.Type, fc.Reason)
	}
	if len(fc.Features) != 2 || fc.Features[0].ID != "a2" {
		t.Fatalf("expected a2 nearest of 2 features, got %+v", fc.Features)
	}
	coords := fc.Features[0].Geometry["coordinates"].([]any)
	if coords[0].(float64) != 2.3522 || coords[1].(float64) != 48.8566 {
		t.Errorf("expected [lng, lat] coordinates, got %v", coords)
	}
	if _, ok := fc.Features[0].Properties["distance_km"]; !ok {
		t.Error("expected distance_km property")
	}
	if len(fc.BBox) != 4 {
		t.Errorf("expected bbox, got %v", fc.BBox)
	}

	// search wins over coordinates
	status, body, _ = do(t, app, "GET", "/v1/agencies/geojson?q=rabat&lat=48.8&lng=2.3", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	search := decode[struct {
		Reason  string `json:"reason"`
		Summary string `json:"summary"`
	}](t, body)
	if search.Reason != "search" || search.Summary != "1 results" {
		t.Errorf("unexpected search collection %+v", search)
	}
}

// ---- GraphQL ----

func TestGraphQL_AgenciesNearby(t *testing.T) {
	app := setupApp(makeDeps())

	q := `{"query":"{ agenciesNearby(lat: 33.9, lng: -6.9, limit: 1) { slug distance_km } }"}`
	status, body, _ := do(t, app, "POST", "/graphql", q)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	result := decode[struct {
		Data struct {
			AgenciesNearby []struct {
				Slug       string  `json:"slug"`
				DistanceKm float64 `json:"distance_km"`
			} `json:"agenciesNearby"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}](t, body)
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.AgenciesNearby) != 1 || result.Data.AgenciesNearby[0].Slug != "rabat-travel" {
		t.Errorf("unexpected result %+v", result.Data.AgenciesNearby)
	}
}

// ---- Contacted registry ----

func TestContactedRegistry(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, headers := do(t, app, "POST", "/v1/contacted-agencies", `{"id":"a1","contacted":true,"contactedBy":"Sara"}`)
	if status != 200 {
		t.Fatalf("mark: expected 200, got %d: %s", status, body)
	}
	marked := decode[struct {
		Success bool                 `json:"success"`
		Data    domain.ContactRecord `json:"data"`
	}](t, body)
	if !marked.Success || marked.Data.ContactedBy != "Sara" {
		t.Errorf("unexpected mark response %+v", marked)
	}
	if cc := strings.Join(headers["Cache-Control"], ""); cc != "" && cc != "private, no-store" {
		t.Errorf("unexpected Cache-Control on POST: %q", cc)
	}

	status, body, headers = do(t, app, "GET", "/v1/contacted-agencies", "")
	if status != 200 {
		t.Fatalf("list: expected 200, got %d", status)
	}
	registry := decode[map[string]domain.ContactRecord](t, body)
	if rec, ok := registry["a1"]; !ok || !rec.Contacted {
		t.Errorf("expected a1 in registry, got %+v", registry)
	}
	if cc := strings.Join(headers["Cache-Control"], ""); cc != "private, no-store" {
		t.Errorf("expected private Cache-Control, got %q", cc)
	}

	status, _, _ = do(t, app, "POST", "/v1/contacted-agencies", `{"id":"a1","contacted":false}`)
	if status != 200 {
		t.Fatalf("unmark: expected 200, got %d", status)
	}
	_, body, _ = do(t, app, "GET", "/v1/contacted-agencies", "")
	if registry := decode[map[string]domain.ContactRecord](t, body); len(registry) != 0 {
		t.Errorf("expected empty registry, got %+v", registry)
	}

	if status, _, _ := do(t, app, "POST", "/v1/contacted-agencies", `{"contacted":true}`); status != 400 {
		t.Errorf("missing id: expected 400, got %d", status)
	}
}

// ---- Outreach ----

func TestRequestOutreach_Accepted(t *testing.T) {
	pub := &mockPublisher{}
	repo := fixtureRepo()
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Outreach = usecases.NewOutreachService(repo, newMockContactRepo(), nil, pub, usecases.OutreachConfig{SentBy: "bot"})
	}))

	status, body, _ := do(t, app, "POST", "/v1/outreach/requests", `{"agency_id":"a1"}`)
	if status != 202 {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	req := decode[domain.OutreachRequest](t, body)
	if req.AgencyID != "a1" || req.RequestedBy != "bot" {
		t.Errorf("unexpected request %+v", req)
	}
	if len(pub.requested) != 1 {
		t.Errorf("expected 1 published request, got %d", len(pub.requested))
	}

	if status, _, _ := do(t, app, "POST", "/v1/outreach/requests", `{"agency_id":"zzz"}`); status != 404 {
		t.Errorf("unknown agency: expected 404, got %d", status)
	}
}

func TestRequestOutreach_NoQueue(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "POST", "/v1/outreach/requests", `{"agency_id":"a1"}`)
	if status != 503 {
		t.Fatalf("expected 503, got %d: %s", status, body)
	}
	if apiErr := decode[handler.APIError](t, body); apiErr.Code != "unavailable" {
		t.Errorf("expected unavailable code, got %q", apiErr.Code)
	}
}

func TestOutreachCandidatesAndPreview(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/outreach/candidates", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	candidates := decode[[]domain.Agency](t, body)
	if len(candidates) != 1 || candidates[0].ID != "a1" {
		t.Errorf("expected only a1 as candidate, got %+v", candidates)
	}

	status, body, _ = do(t, app, "GET", "/v1/outreach/preview/a1", "")
	if status != 200 {
		t.Fatalf("preview: expected 200, got %d: %s", status, body)
	}
	email := decode[domain.OutreachEmail](t, body)
	if email.To != "hello@atlas-voyages.ma" || !strings.Contains(email.HTML, "https://travelagencies.world/agencies/atlas-voyages") {
		t.Errorf("unexpected email %+v", email)
	}

	if status, _, _ := do(t, app, "GET", "/v1/outreach/preview/a2", ""); status != 400 {
		t.Errorf("agency without email: expected 400, got %d", status)
	}
}

// ---- System ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	health := decode[map[string]any](t, body)
	if health["status"] != "healthy" || health["version"] != "test" {
		t.Errorf("unexpected health body %v", health)
	}
	if health["map_sessions"] != float64(0) {
		t.Errorf("expected 0 map sessions, got %v", health["map_sessions"])
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		deps func(*handler.Dependencies)
		want int
	}{
		{"no database", func(d *handler.Dependencies) {}, 503},
		{"database up", func(d *handler.Dependencies) { d.DB = mockPinger{} }, 200},
		{"database down", func(d *handler.Dependencies) { d.DB = mockPinger{err: errors.New("refused")} }, 503},
		{"cache down", func(d *handler.Dependencies) {
			d.DB = mockPinger{}
			d.Cache = mockPinger{err: errors.New("refused")}
		}, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(tt.deps))
			if status, body, _ := do(t, app, "GET", "/v1/ready", ""); status != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, status, body)
			}
		})
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	_, _, headers := do(t, app, "GET", "/v1/health", "")
	if v := strings.Join(headers["X-Api-Version"], ""); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps())

	if status, _, _ := do(t, app, "GET", "/ws/map", ""); status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", status)
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", body)
	}
}
