package mapview

import (
	"fmt"
	"strings"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// Reason records which rule produced a DisplaySet.
type Reason string

const (
	ReasonInitial  Reason = "initial"
	ReasonLocation Reason = "location"
	ReasonSearch   Reason = "search"
	ReasonViewport Reason = "viewport"
)

// LocationState is the lifecycle of the user's location within a session.
type LocationState string

const (
	StateNoLocation LocationState = "no_location"
	StateLocating   LocationState = "locating"
	StateLocated    LocationState = "located"
	StateDenied     LocationState = "location_denied"
)

// Marker is one agency placed on the map. Distance is set only for
// proximity-ranked sets.
type Marker struct {
	domain.Agency
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// DisplaySet is the authoritative list of markers the map should render.
type DisplaySet struct {
	Seq       uint64           `json:"seq"`
	Reason    Reason           `json:"reason"`
	Reference *domain.GeoPoint `json:"reference,omitempty"`
	Markers   []Marker         `json:"markers"`
}

// Len returns the number of markers.
func (d DisplaySet) Len() int { return len(d.Markers) }

// Summary is the visible-count badge text.
func (d DisplaySet) Summary() string {
	switch d.Reason {
	case ReasonLocation:
		return fmt.Sprintf("%d agencies nearby", len(d.Markers))
	case ReasonSearch:
		return fmt.Sprintf("%d results", len(d.Markers))
	default:
		return fmt.Sprintf("%d agencies", len(d.Markers))
	}
}

// IDs returns the agency ids in display order.
func (d DisplaySet) IDs() []string {
	ids := make([]string, len(d.Markers))
	for i := range d.Markers {
		ids[i] = d.Markers[i].ID
	}
	return ids
}

func rankedMarkers(ranked []domain.RankedAgency) []Marker {
	out := make([]Marker, len(ranked))
	for i := range ranked {
		d := ranked[i].DistanceKm
		out[i] = Marker{Agency: ranked[i].Agency, DistanceKm: &d}
	}
	return out
}

func plainMarkers(agencies []domain.Agency) []Marker {
	out := make([]Marker, len(agencies))
	for i := range agencies {
		out[i] = Marker{Agency: agencies[i]}
	}
	return out
}

// Snapshot computes, without a session, the set a fresh controller would show
// for query and reference point: a non-blank query wins, then proximity to
// ref, then the initial set. The result carries no sequence number.
func Snapshot(agencies []domain.Agency, query string, ref *domain.GeoPoint, cfg Config) DisplaySet {
	if cfg.MaxMarkers <= 0 {
		cfg.MaxMarkers = DefaultLimit
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = DefaultLimit
	}
	switch {
	case strings.TrimSpace(query) != "":
		return DisplaySet{Reason: ReasonSearch, Markers: plainMarkers(SearchByQuery(agencies, query, cfg.MaxSearchResults))}
	case ref != nil && ref.Valid():
		p := *ref
		return DisplaySet{Reason: ReasonLocation, Reference: &p, Markers: rankedMarkers(RankByProximity(agencies, p, cfg.MaxMarkers))}
	default:
		return DisplaySet{Reason: ReasonInitial, Markers: plainMarkers(InitialDisplaySet(agencies, cfg.MaxMarkers))}
	}
}
