package mapview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// Config holds the tunables of a Controller.
type Config struct {
	MaxMarkers       int
	MaxSearchResults int
	SettleInterval   time.Duration
	LocateTimeout    time.Duration
	RelocateTimeout  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxMarkers:       DefaultLimit,
		MaxSearchResults: DefaultLimit,
		SettleInterval:   300 * time.Millisecond,
		LocateTimeout:    5 * time.Second,
		RelocateTimeout:  10 * time.Second,
	}
}

// Options wires a Controller to its collaborators. Only Config is required.
type Options struct {
	Config

	Surface Surface
	Logger  *slog.Logger

	// CachedLocation seeds the controller with a location resolved earlier
	// in the same session; ResolveUserLocation then returns it directly.
	CachedLocation *domain.GeoPoint

	// OnLocated is called with every freshly resolved location.
	OnLocated func(p domain.GeoPoint)
	// OnStale is called when a result is discarded because a newer request
	// overtook it. op is "locate" or "relocate".
	OnStale func(op string)
}

// State is a read-only snapshot of a Controller.
type State struct {
	Location   LocationState    `json:"location_state"`
	Position   *domain.GeoPoint `json:"position,omitempty"`
	Error      string           `json:"error,omitempty"`
	Query      string           `json:"query,omitempty"`
	Refreshing bool             `json:"refreshing"`
	Seq        uint64           `json:"seq"`
	Reason     Reason           `json:"reason"`
	Count      int              `json:"count"`
}

// Controller owns the display set of one map session. All methods are safe
// for concurrent use. Listeners and the Surface are called synchronously and
// must not call mutating Controller methods from within the callback.
type Controller struct {
	cfg       Config
	geo       Geolocator
	surface   Surface
	logger    *slog.Logger
	onLocated func(domain.GeoPoint)
	onStale   func(string)
	settle    *Debouncer

	mu         sync.Mutex
	agencies   []domain.Agency
	state      LocationState
	location   *domain.GeoPoint
	locErr     *LocationError
	locGen     uint64
	refreshing bool
	query      string
	lastCenter *domain.GeoPoint
	seq        uint64
	current    DisplaySet
	listeners  []func(DisplaySet)
	closed     bool

	emitMu  sync.Mutex
	emitted uint64
}

// New creates a controller over agencies. The initial display set is
// computed immediately; Start publishes it.
func New(agencies []domain.Agency, geo Geolocator, opts Options) *Controller {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.MaxMarkers == 0 {
		cfg.MaxMarkers = def.MaxMarkers
	}
	if cfg.MaxSearchResults == 0 {
		cfg.MaxSearchResults = def.MaxSearchResults
	}
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = def.SettleInterval
	}
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = def.LocateTimeout
	}
	if cfg.RelocateTimeout <= 0 {
		cfg.RelocateTimeout = def.RelocateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:       cfg,
		geo:       geo,
		surface:   opts.Surface,
		logger:    logger,
		onLocated: opts.OnLocated,
		onStale:   opts.OnStale,
		settle:    NewDebouncer(cfg.SettleInterval),
		agencies:  agencies,
		state:     StateNoLocation,
	}

	if p := opts.CachedLocation; p != nil && p.Valid() {
		loc := *p
		c.location = &loc
		c.state = StateLocated
		c.applyLocked(c.locationSetLocked(loc))
	} else {
		c.applyLocked(c.initialSetLocked())
	}
	return c
}

// Start publishes the current display set to the surface and listeners.
func (c *Controller) Start() {
	c.mu.Lock()
	set := c.current
	c.mu.Unlock()
	c.emit(set)
}

// Close stops the viewport debouncer and discards any in-flight location
// request. The controller keeps answering reads.
func (c *Controller) Close() {
	c.settle.Stop()
	c.mu.Lock()
	c.closed = true
	c.locGen++
	c.mu.Unlock()
}

// OnDisplaySetChanged registers fn to receive every applied display set.
func (c *Controller) OnDisplaySetChanged(fn func(DisplaySet)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// DisplaySet returns the currently applied display set.
func (c *Controller) DisplaySet() DisplaySet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Location:   c.state,
		Query:      c.query,
		Refreshing: c.refreshing,
		Seq:        c.current.Seq,
		Reason:     c.current.Reason,
		Count:      len(c.current.Markers),
	}
	if c.location != nil {
		p := *c.location
		s.Position = &p
	}
	if c.locErr != nil {
		s.Error = c.locErr.UserMessage()
	}
	return s
}

// SetAgencies replaces the dataset and recomputes the display set under
// the rule that produced the current one.
func (c *Controller) SetAgencies(agencies []domain.Agency) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.agencies = agencies
	var set DisplaySet
	switch {
	case c.query != "":
		set = c.searchSetLocked(c.query)
	case c.current.Reason == ReasonLocation && c.location != nil:
		set = c.locationSetLocked(*c.location)
	case c.current.Reason == ReasonViewport && c.lastCenter != nil:
		set = c.viewportSetLocked(*c.lastCenter)
	default:
		set = c.initialSetLocked()
	}
	set = c.applyLocked(set)
	c.mu.Unlock()
	c.emit(set)
}

// ResolveUserLocation obtains the user's position once per session. A
// location that is already known is returned without asking the provider.
// On success the display switches to proximity ranking unless a search is
// active; on failure it falls back to the initial set.
func (c *Controller) ResolveUserLocation(ctx context.Context) (domain.GeoPoint, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.GeoPoint{}, ErrSuperseded
	}
	if c.state == StateLocated && c.location != nil {
		p := *c.location
		c.mu.Unlock()
		return p, nil
	}
	c.locGen++
	gen := c.locGen
	c.state = StateLocating
	c.mu.Unlock()

	p, lerr := c.locate(ctx, LocateOptions{Timeout: c.cfg.LocateTimeout})

	c.mu.Lock()
	if gen != c.locGen {
		c.mu.Unlock()
		c.stale("locate")
		return domain.GeoPoint{}, ErrSuperseded
	}

	if lerr != nil {
		c.state = StateDenied
		c.locErr = lerr
		var set DisplaySet
		applied := false
		if c.query == "" {
			set = c.applyLocked(c.initialSetLocked())
			applied = true
		}
		c.mu.Unlock()
		c.logger.Info("user location unavailable", "reason", lerr.Reason, "error", lerr.Err)
		if applied {
			c.emit(set)
		}
		return domain.GeoPoint{}, lerr
	}

	c.state = StateLocated
	c.location = &p
	c.locErr = nil
	var set DisplaySet
	applied := false
	if c.query == "" {
		set = c.applyLocked(c.locationSetLocked(p))
		applied = true
	}
	c.mu.Unlock()

	if c.onLocated != nil {
		c.onLocated(p)
	}
	if applied {
		c.emit(set)
	}
	return p, nil
}

// Relocate forces a fresh high-accuracy position. A previously resolved
// location survives a failed refresh. On success any active search is
// cleared, the display is re-ranked and the surface pans to the new position.
func (c *Controller) Relocate(ctx context.Context) (domain.GeoPoint, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.GeoPoint{}, ErrSuperseded
	}
	c.locGen++
	gen := c.locGen
	c.refreshing = true
	if c.state != StateLocated {
		c.state = StateLocating
	}
	c.mu.Unlock()

	p, lerr := c.locate(ctx, LocateOptions{Timeout: c.cfg.RelocateTimeout, HighAccuracy: true})

	c.mu.Lock()
	if gen != c.locGen {
		c.mu.Unlock()
		c.stale("relocate")
		return domain.GeoPoint{}, ErrSuperseded
	}
	c.refreshing = false

	if lerr != nil {
		c.locErr = lerr
		var set DisplaySet
		applied := false
		if c.location == nil {
			c.state = StateDenied
			if c.query == "" {
				set = c.applyLocked(c.initialSetLocked())
				applied = true
			}
		} else {
			c.state = StateLocated
		}
		c.mu.Unlock()
		c.logger.Warn("relocate failed", "reason", lerr.Reason, "error", lerr.Err)
		if applied {
			c.emit(set)
		}
		return domain.GeoPoint{}, lerr
	}

	c.state = StateLocated
	c.location = &p
	c.locErr = nil
	c.query = ""
	set := c.applyLocked(c.locationSetLocked(p))
	c.mu.Unlock()

	if c.onLocated != nil {
		c.onLocated(p)
	}
	if c.surface != nil {
		c.surface.PanTo(p)
	}
	c.emit(set)
	return p, nil
}

// SetSearchQuery switches the display to search results. A blank query is
// equivalent to ClearSearch.
func (c *Controller) SetSearchQuery(query string) {
	if strings.TrimSpace(query) == "" {
		c.ClearSearch()
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = query
	set := c.applyLocked(c.searchSetLocked(query))
	c.mu.Unlock()
	c.emit(set)
}

// ClearSearch leaves search mode. The display returns to proximity ranking
// around the user if located, else around the last settled viewport, else
// to the initial set.
func (c *Controller) ClearSearch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = ""
	var set DisplaySet
	switch {
	case c.state == StateLocated && c.location != nil:
		set = c.locationSetLocked(*c.location)
	case c.lastCenter != nil:
		set = c.viewportSetLocked(*c.lastCenter)
	default:
		set = c.initialSetLocked()
	}
	set = c.applyLocked(set)
	c.mu.Unlock()
	c.emit(set)
}

// ViewportChanged records a raw viewport movement. Bursts are coalesced and
// OnViewportSettled runs once with the last center after the settle interval.
func (c *Controller) ViewportChanged(center domain.GeoPoint) {
	c.settle.Trigger(func() { c.OnViewportSettled(center) })
}

// OnViewportSettled re-ranks around center. It is ignored while a search is
// active or once the user's location is known.
func (c *Controller) OnViewportSettled(center domain.GeoPoint) {
	if !center.Valid() {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	p := center
	c.lastCenter = &p
	if c.query != "" || c.state == StateLocated {
		c.mu.Unlock()
		return
	}
	set := c.applyLocked(c.viewportSetLocked(center))
	c.mu.Unlock()
	c.emit(set)
}

func (c *Controller) locate(ctx context.Context, opts LocateOptions) (domain.GeoPoint, *LocationError) {
	if c.geo == nil {
		return domain.GeoPoint{}, &LocationError{Reason: FailureUnsupported, Err: ErrUnsupported}
	}
	lctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	p, err := c.geo.CurrentPosition(lctx, opts)
	if err != nil {
		return domain.GeoPoint{}, classifyLocationError(lctx, err)
	}
	if !p.Valid() {
		return domain.GeoPoint{}, &LocationError{Reason: FailureUnavailable, Err: errors.New("provider returned invalid coordinates")}
	}
	return p, nil
}

func (c *Controller) stale(op string) {
	c.logger.Debug("discarding superseded location result", "op", op)
	if c.onStale != nil {
		c.onStale(op)
	}
}

func (c *Controller) initialSetLocked() DisplaySet {
	return DisplaySet{
		Reason:  ReasonInitial,
		Markers: plainMarkers(InitialDisplaySet(c.agencies, c.cfg.MaxMarkers)),
	}
}

func (c *Controller) locationSetLocked(p domain.GeoPoint) DisplaySet {
	return DisplaySet{
		Reason:    ReasonLocation,
		Reference: &p,
		Markers:   rankedMarkers(RankByProximity(c.agencies, p, c.cfg.MaxMarkers)),
	}
}

func (c *Controller) viewportSetLocked(center domain.GeoPoint) DisplaySet {
	return DisplaySet{
		Reason:    ReasonViewport,
		Reference: &center,
		Markers:   rankedMarkers(RankByProximity(c.agencies, center, c.cfg.MaxMarkers)),
	}
}

func (c *Controller) searchSetLocked(query string) DisplaySet {
	return DisplaySet{
		Reason:  ReasonSearch,
		Markers: plainMarkers(SearchByQuery(c.agencies, query, c.cfg.MaxSearchResults)),
	}
}

// applyLocked stamps set with the next sequence number and makes it current.
func (c *Controller) applyLocked(set DisplaySet) DisplaySet {
	c.seq++
	set.Seq = c.seq
	c.current = set
	return set
}

// emit delivers set unless a newer one has already been delivered.
func (c *Controller) emit(set DisplaySet) {
	c.mu.Lock()
	listeners := append([]func(DisplaySet){}, c.listeners...)
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if set.Seq <= c.emitted {
		return
	}
	c.emitted = set.Seq
	if c.surface != nil {
		c.surface.SetMarkers(set)
	}
	for _, fn := range listeners {
		fn(set)
	}
}
