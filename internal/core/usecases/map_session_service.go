package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/metrics"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/telemetry"
)

// AgencyLister supplies the listing a map session ranks over.
type AgencyLister interface {
	List(ctx context.Context) ([]domain.Agency, error)
}

// MapSession is one open map view.
type MapSession struct {
	ID         string
	OpenedAt   time.Time
	Controller *mapview.Controller
}

// Locate resolves the user's location once for the session.
func (m *MapSession) Locate(ctx context.Context) (domain.GeoPoint, error) {
	ctx, span := telemetry.StartSpan(ctx, "MapSession.Locate")
	defer span.End()
	span.SetAttributes(telemetry.AttrSessionID.String(m.ID))

	p, err := m.Controller.ResolveUserLocation(ctx)
	recordLocation(err)
	return p, err
}

// Relocate forces a fresh high-accuracy location.
func (m *MapSession) Relocate(ctx context.Context) (domain.GeoPoint, error) {
	ctx, span := telemetry.StartSpan(ctx, "MapSession.Relocate")
	defer span.End()
	span.SetAttributes(telemetry.AttrSessionID.String(m.ID))

	p, err := m.Controller.Relocate(ctx)
	recordLocation(err)
	return p, err
}

func recordLocation(err error) {
	var le *mapview.LocationError
	switch {
	case err == nil:
		metrics.LocationResolutions.WithLabelValues("located").Inc()
	case errors.Is(err, mapview.ErrSuperseded):
		metrics.LocationResolutions.WithLabelValues("superseded").Inc()
	case errors.As(err, &le):
		metrics.LocationResolutions.WithLabelValues(string(le.Reason)).Inc()
	default:
		metrics.LocationResolutions.WithLabelValues("error").Inc()
	}
}

// MapSessionService owns the map controllers of connected clients.
type MapSessionService struct {
	agencies  AgencyLister
	cache     ports.CacheService
	publisher ports.EventPublisher
	cfg       mapview.Config
	ttl       time.Duration

	mu       sync.RWMutex
	sessions map[string]*MapSession
}

// NewMapSessionService creates a new MapSessionService. cache and publisher
// may be nil.
func NewMapSessionService(
	agencies AgencyLister,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	cfg mapview.Config,
	ttl time.Duration,
) *MapSessionService {
	return &MapSessionService{
		agencies:  agencies,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		ttl:       ttl,
		sessions:  make(map[string]*MapSession),
	}
}

func locationKey(sessionID string) string {
	return "map:session:" + sessionID + ":location"
}

// Open starts a map session. An empty sessionID gets a fresh one; reusing
// an id replaces the previous session and restores its cached location.
func (s *MapSessionService) Open(ctx context.Context, sessionID string, geo mapview.Geolocator, surface mapview.Surface) (*MapSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "MapSessionService.Open")
	defer span.End()

	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: malformed session id", domain.ErrInvalidQuery)
	}
	span.SetAttributes(telemetry.AttrSessionID.String(sessionID))

	agencies, err := s.agencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agencies: %w", err)
	}

	logger := slog.Default().With("session_id", sessionID)
	opts := mapview.Options{
		Config:         s.cfg,
		Surface:        surface,
		Logger:         logger,
		CachedLocation: s.cachedLocation(ctx, sessionID),
		OnLocated: func(p domain.GeoPoint) {
			s.storeLocation(sessionID, p)
		},
		OnStale: func(op string) {
			metrics.StaleResultsDiscarded.WithLabelValues(op).Inc()
		},
	}

	ctrl := mapview.New(agencies, geo, opts)
	ctrl.OnDisplaySetChanged(func(set mapview.DisplaySet) {
		metrics.DisplaySetUpdates.WithLabelValues(string(set.Reason)).Inc()
		logger.Debug("display set applied", "seq", set.Seq, "reason", set.Reason, "count", set.Len())
		s.publish(sessionID, set)
	})

	sess := &MapSession{ID: sessionID, OpenedAt: time.Now(), Controller: ctrl}

	s.mu.Lock()
	prev := s.sessions[sessionID]
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	if prev != nil {
		prev.Controller.Close()
	} else {
		metrics.ActiveMapSessions.Inc()
	}

	ctrl.Start()
	logger.Info("map session opened", "agencies", len(agencies))
	return sess, nil
}

// Get returns an open session.
func (s *MapSessionService) Get(sessionID string) (*MapSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Close ends a session. The cached location outlives it until its TTL.
func (s *MapSessionService) Close(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}
	sess.Controller.Close()
	metrics.ActiveMapSessions.Dec()
	slog.Info("map session closed", "session_id", sessionID, "duration", time.Since(sess.OpenedAt).String())
}

// CloseIf ends the session only if sess is still the one registered under
// its id, so a replaced connection does not close its successor.
func (s *MapSessionService) CloseIf(sess *MapSession) {
	s.mu.RLock()
	current := s.sessions[sess.ID]
	s.mu.RUnlock()
	if current == sess {
		s.Close(sess.ID)
	}
}

// Active returns the number of open sessions.
func (s *MapSessionService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Refresh reloads the listing into every open session.
func (s *MapSessionService) Refresh(ctx context.Context) error {
	agencies, err := s.agencies.List(ctx)
	if err != nil {
		return fmt.Errorf("load agencies: %w", err)
	}

	s.mu.RLock()
	open := make([]*MapSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.RUnlock()

	for _, sess := range open {
		sess.Controller.SetAgencies(agencies)
	}
	return nil
}

func (s *MapSessionService) cachedLocation(ctx context.Context, sessionID string) *domain.GeoPoint {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, locationKey(sessionID))
	if err != nil {
		return nil
	}
	var p domain.GeoPoint
	if err := json.Unmarshal(data, &p); err != nil || !p.Valid() {
		return nil
	}
	return &p
}

func (s *MapSessionService) storeLocation(sessionID string, p domain.GeoPoint) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, locationKey(sessionID), data, int(s.ttl.Seconds())); err != nil {
		slog.Warn("cache session location", "session_id", sessionID, "error", err)
	}
}

func (s *MapSessionService) publish(sessionID string, set mapview.DisplaySet) {
	if s.publisher == nil {
		return
	}
	event := &domain.MapEvent{
		SessionID: sessionID,
		Seq:       set.Seq,
		Reason:    string(set.Reason),
		Count:     set.Len(),
		AgencyIDs: set.IDs(),
		At:        time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishMapEvent(ctx, event); err != nil {
			slog.Warn("publish map event", "session_id", sessionID, "error", err)
		}
	}()
}
