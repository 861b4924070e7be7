package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mapEvents chan *domain.MapEvent
	requested []*domain.OutreachRequest
	contacted []*domain.ContactRecord
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{mapEvents: make(chan *domain.MapEvent, 16)}
}

func (m *mockPublisher) PublishMapEvent(ctx context.Context, event *domain.MapEvent) error {
	m.mapEvents <- event
	return nil
}

func (m *mockPublisher) PublishOutreachRequested(ctx context.Context, req *domain.OutreachRequest) error {
	m.requested = append(m.requested, req)
	return nil
}

func (m *mockPublisher) PublishAgencyContacted(ctx context.Context, rec *domain.ContactRecord) error {
	m.contacted = append(m.contacted, rec)
	return nil
}

func listing() usecases.AgencyLister {
	return &mockAgencyRepo{listFn: func(ctx context.Context) ([]domain.Agency, error) { return directory(), nil }}
}

func staticGeo(p domain.GeoPoint) mapview.Geolocator {
	return mapview.GeolocatorFunc(func(ctx context.Context, opts mapview.LocateOptions) (domain.GeoPoint, error) {
		return p, nil
	})
}

func nextEvent(t *testing.T, pub *mockPublisher) *domain.MapEvent {
	t.Helper()
	select {
	case ev := <-pub.mapEvents:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no map event published")
		return nil
	}
}

func TestMapSessionService_Open(t *testing.T) {
	pub := newMockPublisher()
	svc := usecases.NewMapSessionService(listing(), nil, pub, mapview.DefaultConfig(), 30*time.Minute)

	sess, err := svc.Open(context.Background(), "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close(sess.ID)

	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("expected uuid session id, got %q", sess.ID)
	}
	if svc.Active() != 1 {
		t.Errorf("expected 1 active session, got %d", svc.Active())
	}

	ev := nextEvent(t, pub)
	if ev.SessionID != sess.ID || ev.Reason != string(mapview.ReasonInitial) || ev.Count != 3 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestMapSessionService_Open_MalformedID(t *testing.T) {
	svc := usecases.NewMapSessionService(listing(), nil, nil, mapview.DefaultConfig(), time.Minute)
	if _, err := svc.Open(context.Background(), "not-a-uuid", nil, nil); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestMapSessionService_LocationSurvivesReconnect(t *testing.T) {
	cache := newMemCache()
	svc := usecases.NewMapSessionService(listing(), cache, nil, mapview.DefaultConfig(), 30*time.Minute)

	sess, err := svc.Open(context.Background(), "", staticGeo(domain.GeoPoint{Lat: 34.0, Lng: -6.8}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sess.Locate(context.Background()); err != nil {
		t.Fatalf("locate: %v", err)
	}

	raw, err := cache.Get(context.Background(), "map:session:"+sess.ID+":location")
	if err != nil {
		t.Fatalf("expected cached location: %v", err)
	}
	var p domain.GeoPoint
	if err := json.Unmarshal(raw, &p); err != nil || p.Lat != 34.0 {
		t.Errorf("unexpected cached location %s", raw)
	}
	if cache.ttl["map:session:"+sess.ID+":location"] != 1800 {
		t.Errorf("expected session ttl, got %d", cache.ttl["map:session:"+sess.ID+":location"])
	}
	svc.Close(sess.ID)

	again, err := svc.Open(context.Background(), sess.ID, nil, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer svc.Close(again.ID)
	st := again.Controller.State()
	if st.Location != mapview.StateLocated || again.Controller.DisplaySet().Reason != mapview.ReasonLocation {
		t.Errorf("expected restored location, got %s %s", st.Location, again.Controller.DisplaySet().Reason)
	}
}

func TestMapSessionService_ReplaceAndClose(t *testing.T) {
	svc := usecases.NewMapSessionService(listing(), nil, nil, mapview.DefaultConfig(), time.Minute)

	first, err := svc.Open(context.Background(), "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Open(context.Background(), first.ID, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Active() != 1 {
		t.Fatalf("expected replacement, got %d sessions", svc.Active())
	}

	svc.CloseIf(first)
	if got, ok := svc.Get(first.ID); !ok || got != second {
		t.Fatal("closing the replaced session removed its successor")
	}
	svc.CloseIf(second)
	if svc.Active() != 0 {
		t.Errorf("expected no sessions, got %d", svc.Active())
	}
}

func TestMapSessionService_Refresh(t *testing.T) {
	agencies := directory()
	repo := &mockAgencyRepo{listFn: func(ctx context.Context) ([]domain.Agency, error) { return agencies, nil }}
	svc := usecases.NewMapSessionService(repo, nil, nil, mapview.DefaultConfig(), time.Minute)

	sess, err := svc.Open(context.Background(), "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close(sess.ID)

	agencies = append(agencies, domain.Agency{ID: "6", Slug: "tanger", Title: "Tanger Voyages", Location: &domain.GeoPoint{Lat: 35.76, Lng: -5.83}})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := sess.Controller.DisplaySet().Len(); got != 4 {
		t.Errorf("expected 4 markers after refresh, got %d", got)
	}
}
