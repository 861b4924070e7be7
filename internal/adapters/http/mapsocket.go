package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/metrics"
)

const pingInterval = 30 * time.Second

// mapClientMessage is any event sent by the browser.
//
//	{"type":"viewport","lat":33.57,"lng":-7.59}
//	{"type":"search","query":"marrakech"}
//	{"type":"clear_search"}
//	{"type":"locate"} / {"type":"relocate"}
//	{"type":"position","request_id":"...","lat":33.57,"lng":-7.59}
//	{"type":"position_error","request_id":"...","code":"denied"}
//	{"type":"state"}
type mapClientMessage struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Query     string   `json:"query,omitempty"`
	Code      string   `json:"code,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func (m mapClientMessage) point() (domain.GeoPoint, bool) {
	if m.Lat == nil || m.Lng == nil {
		return domain.GeoPoint{}, false
	}
	p := domain.GeoPoint{Lat: *m.Lat, Lng: *m.Lng}
	return p, p.Valid()
}

type sessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type displaySetMessage struct {
	Type      string                     `json:"type"`
	Seq       uint64                     `json:"seq"`
	Reason    mapview.Reason             `json:"reason"`
	Summary   string                     `json:"summary"`
	Reference *domain.GeoPoint           `json:"reference,omitempty"`
	Markers   []mapview.Marker           `json:"markers"`
	GeoJSON   *geojson.FeatureCollection `json:"geojson,omitempty"`
}

type locateRequestMessage struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id"`
	HighAccuracy bool   `json:"high_accuracy"`
	TimeoutMS    int64  `json:"timeout_ms"`
}

type panToMessage struct {
	Type     string          `json:"type"`
	Position domain.GeoPoint `json:"position"`
}

type locationErrorMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type stateMessage struct {
	Type  string        `json:"type"`
	State mapview.State `json:"state"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type positionReply struct {
	point domain.GeoPoint
	err   error
}

type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// mapConn is one browser connection. It is both the session's geolocation
// provider, forwarding requests to the browser, and its rendering surface.
type mapConn struct {
	ws      frameWriter
	geojson bool
	logger  *slog.Logger

	writeMu sync.Mutex
	closed  bool

	mu      sync.Mutex
	pending map[string]chan positionReply
	wg      sync.WaitGroup
}

func newMapConn(ws frameWriter, withGeoJSON bool, logger *slog.Logger) *mapConn {
	return &mapConn{
		ws:      ws,
		geojson: withGeoJSON,
		logger:  logger,
		pending: make(map[string]chan positionReply),
	}
}

func (m *mapConn) write(messageType int, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	return m.ws.WriteMessage(messageType, data)
}

func (m *mapConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.write(websocket.TextMessage, data)
}

func (m *mapConn) sendError(msg string) {
	_ = m.writeJSON(errorMessage{Type: "error", Message: msg})
}

// CurrentPosition asks the browser for its position and waits for the
// matching position or position_error reply.
func (m *mapConn) CurrentPosition(ctx context.Context, opts mapview.LocateOptions) (domain.GeoPoint, error) {
	id := uuid.NewString()
	reply := make(chan positionReply, 1)

	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return domain.GeoPoint{}, mapview.ErrLocationUnavailable
	}
	m.pending[id] = reply
	m.mu.Unlock()
	defer m.forget(id)

	err := m.writeJSON(locateRequestMessage{
		Type:         "locate_request",
		RequestID:    id,
		HighAccuracy: opts.HighAccuracy,
		TimeoutMS:    opts.Timeout.Milliseconds(),
	})
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("send locate request: %w", err)
	}

	select {
	case r := <-reply:
		return r.point, r.err
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	}
}

func (m *mapConn) forget(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// resolve hands a browser reply to the waiting request. Replies to unknown
// or expired requests are dropped.
func (m *mapConn) resolve(id string, r positionReply) bool {
	m.mu.Lock()
	ch, ok := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()
	if ok {
		ch <- r
	}
	return ok
}

// SetMarkers sends the display set to the browser.
func (m *mapConn) SetMarkers(set mapview.DisplaySet) {
	msg := displaySetMessage{
		Type:      "display_set",
		Seq:       set.Seq,
		Reason:    set.Reason,
		Summary:   set.Summary(),
		Reference: set.Reference,
		Markers:   set.Markers,
	}
	if msg.Markers == nil {
		msg.Markers = []mapview.Marker{}
	}
	if m.geojson {
		msg.GeoJSON = displaySetFeatures(set)
	}
	if err := m.writeJSON(msg); err != nil {
		m.logger.Debug("display set not delivered", "seq", set.Seq, "error", err)
	}
}

// PanTo asks the browser to centre the map.
func (m *mapConn) PanTo(p domain.GeoPoint) {
	_ = m.writeJSON(panToMessage{Type: "pan_to", Position: p})
}

// handle dispatches one client message. Location requests run in the
// background because their answer arrives through this same read loop.
func (m *mapConn) handle(ctx context.Context, sess *usecases.MapSession, msg mapClientMessage) {
	ctrl := sess.Controller
	switch msg.Type {
	case "viewport":
		p, ok := msg.point()
		if !ok {
			m.sendError("viewport requires valid lat and lng")
			return
		}
		ctrl.ViewportChanged(p)

	case "search":
		if len(msg.Query) > maxQueryLength {
			m.sendError("query too long (max 200 characters)")
			return
		}
		ctrl.SetSearchQuery(msg.Query)

	case "clear_search":
		ctrl.ClearSearch()

	case "locate":
		m.background(ctx, sess.Locate)

	case "relocate":
		m.background(ctx, sess.Relocate)

	case "position":
		p, ok := msg.point()
		r := positionReply{point: p}
		if !ok {
			r.err = fmt.Errorf("%w: invalid coordinates", mapview.ErrLocationUnavailable)
		}
		m.resolve(msg.RequestID, r)

	case "position_error":
		m.resolve(msg.RequestID, positionReply{err: positionError(msg.Code, msg.Message)})

	case "state":
		_ = m.writeJSON(stateMessage{Type: "state", State: ctrl.State()})

	default:
		m.sendError("unknown message type: " + msg.Type)
	}
}

func (m *mapConn) background(ctx context.Context, locate func(context.Context) (domain.GeoPoint, error)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, err := locate(ctx)
		if err == nil || errors.Is(err, mapview.ErrSuperseded) {
			return
		}
		msg := locationErrorMessage{Type: "location_error", Reason: string(mapview.FailureUnavailable), Message: "Could not get your location"}
		var le *mapview.LocationError
		if errors.As(err, &le) {
			msg.Reason = string(le.Reason)
			msg.Message = le.UserMessage()
		}
		_ = m.writeJSON(msg)
	}()
}

// shutdown fails pending location requests, waits for background work and
// stops all writes.
func (m *mapConn) shutdown() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, ch := range pending {
		ch <- positionReply{err: mapview.ErrLocationUnavailable}
	}

	m.wg.Wait()

	m.writeMu.Lock()
	m.closed = true
	m.writeMu.Unlock()
}

// positionError maps a browser geolocation error code onto the location
// sentinels. Numeric codes follow GeolocationPositionError.
func positionError(code, msg string) error {
	var base error
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "1", "denied", "permission_denied":
		base = mapview.ErrLocationDenied
	case "3", "timeout":
		base = mapview.ErrLocationTimeout
	case "unsupported":
		base = mapview.ErrUnsupported
	default:
		base = mapview.ErrLocationUnavailable
	}
	if msg == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}

// MapSocketHandler serves /ws/map. ?session=<uuid> resumes a session and
// its cached location; ?format=geojson adds a FeatureCollection to every
// display_set message.
func MapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		sessionID := c.Query("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		logger := slog.Default().With("session_id", sessionID, "remote", c.RemoteAddr().String())
		conn := newMapConn(c, c.Query("format") == "geojson", logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := conn.writeJSON(sessionMessage{Type: "session", SessionID: sessionID}); err != nil {
			return
		}

		sess, err := deps.MapSessions.Open(ctx, sessionID, conn, conn)
		if err != nil {
			logger.Warn("map session rejected", "error", err)
			if errors.Is(err, domain.ErrInvalidQuery) {
				conn.sendError(err.Error())
			} else {
				conn.sendError("map unavailable")
			}
			conn.shutdown()
			return
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := conn.write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			var msg mapClientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.sendError("invalid JSON")
				continue
			}
			conn.handle(ctx, sess, msg)
		}

		close(done)
		deps.MapSessions.CloseIf(sess)
		cancel()
		conn.shutdown()
		logger.Debug("map socket disconnected")
	}
}
