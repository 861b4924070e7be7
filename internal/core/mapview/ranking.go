// Package mapview decides which agencies a map shows and keeps that decision
// current as the user's location, the search query and the viewport change.
package mapview

import (
	"sort"
	"strings"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/geospatial"
)

// DefaultLimit bounds marker count when the caller does not configure one.
const DefaultLimit = 100

// Mappable returns the agencies with a valid position, in input order.
func Mappable(agencies []domain.Agency) []domain.Agency {
	out := make([]domain.Agency, 0, len(agencies))
	for i := range agencies {
		if agencies[i].Mappable() {
			out = append(out, agencies[i])
		}
	}
	return out
}

// RankByProximity returns the mappable agencies nearest to ref, nearest first,
// truncated to limit. Equal distances keep input order.
func RankByProximity(agencies []domain.Agency, ref domain.GeoPoint, limit int) []domain.RankedAgency {
	if limit <= 0 || !ref.Valid() {
		return []domain.RankedAgency{}
	}

	ranked := make([]domain.RankedAgency, 0, len(agencies))
	for i := range agencies {
		a := agencies[i]
		if !a.Mappable() {
			continue
		}
		ranked = append(ranked, domain.RankedAgency{
			Agency:     a,
			DistanceKm: geospatial.HaversineKm(ref.Lat, ref.Lng, a.Location.Lat, a.Location.Lng),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// SearchByQuery returns the first limit mappable agencies whose searchable
// fields contain query, case-insensitively. A blank query matches nothing.
func SearchByQuery(agencies []domain.Agency, query string, limit int) []domain.Agency {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return []domain.Agency{}
	}

	q := strings.ToLower(query)
	out := make([]domain.Agency, 0, min(limit, len(agencies)))
	for i := range agencies {
		a := &agencies[i]
		if !a.Mappable() {
			continue
		}
		if matches(a, q) {
			out = append(out, *a)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func matches(a *domain.Agency, lowered string) bool {
	for _, f := range a.SearchableFields() {
		if f != "" && strings.Contains(strings.ToLower(f), lowered) {
			return true
		}
	}
	return false
}

// InitialDisplaySet returns the first limit mappable agencies in input order.
// It is the fallback when neither a location nor a query is available and
// intentionally applies no ranking.
func InitialDisplaySet(agencies []domain.Agency, limit int) []domain.Agency {
	if limit <= 0 {
		return []domain.Agency{}
	}
	out := make([]domain.Agency, 0, min(limit, len(agencies)))
	for i := range agencies {
		if !agencies[i].Mappable() {
			continue
		}
		out = append(out, agencies[i])
		if len(out) == limit {
			break
		}
	}
	return out
}
