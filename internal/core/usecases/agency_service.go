package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/metrics"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/telemetry"
)

const (
	listCacheKey     = "agencies:all"
	listCacheTTL     = 300
	slugCacheTTL     = 600
	maxQueryLength   = 200
	defaultPageLimit = 24
	maxPageLimit     = 100
	featuredDefault  = 6
	featuredMinVotes = 1000
	unknownFacet     = "Unknown"
)

// AgencyService handles agency-related business logic.
type AgencyService struct {
	agencies ports.AgencyRepository
	cache    ports.CacheService
}

// NewAgencyService creates a new AgencyService. cache may be nil.
func NewAgencyService(agencies ports.AgencyRepository, cache ports.CacheService) *AgencyService {
	return &AgencyService{agencies: agencies, cache: cache}
}

// List returns all agencies in listing order.
func (s *AgencyService) List(ctx context.Context) ([]domain.Agency, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgencyService.List")
	defer span.End()

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, listCacheKey); err == nil {
			var agencies []domain.Agency
			if err := json.Unmarshal(data, &agencies); err == nil {
				metrics.CacheHits.WithLabelValues("agencies_list").Inc()
				span.SetAttributes(telemetry.AttrCacheHit.Bool(true), telemetry.AttrResultCount.Int(len(agencies)))
				return agencies, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("agencies_list").Inc()
	}

	agencies, err := s.agencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	span.SetAttributes(telemetry.AttrCacheHit.Bool(false), telemetry.AttrResultCount.Int(len(agencies)))

	if s.cache != nil {
		if data, err := json.Marshal(agencies); err == nil {
			_ = s.cache.Set(ctx, listCacheKey, data, listCacheTTL)
		}
	}
	return agencies, nil
}

// GetBySlug returns an agency by slug.
func (s *AgencyService) GetBySlug(ctx context.Context, slug string) (*domain.Agency, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgencyService.GetBySlug")
	defer span.End()
	span.SetAttributes(telemetry.AttrAgencySlug.String(slug))

	cacheKey := "agencies:slug:" + slug
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var a domain.Agency
			if err := json.Unmarshal(data, &a); err == nil {
				metrics.CacheHits.WithLabelValues("agency_slug").Inc()
				return &a, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("agency_slug").Inc()
	}

	a, err := s.agencies.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(a); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, slugCacheTTL)
		}
	}
	return a, nil
}

// Filter applies the directory browse filters and returns one page of
// results plus the total number of matches. Results are ordered featured
// first, then by rating, then by review count.
func (s *AgencyService) Filter(ctx context.Context, f domain.AgencyFilter) ([]domain.Agency, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgencyService.Filter")
	defer span.End()

	all, err := s.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	matched := make([]domain.Agency, 0, len(all))
	for i := range all {
		a := &all[i]
		if q != "" &&
			!strings.Contains(strings.ToLower(a.Title), q) &&
			!strings.Contains(strings.ToLower(a.CityNormalized), q) &&
			!strings.Contains(strings.ToLower(a.Category), q) {
			continue
		}
		if f.City != "" && a.CityNormalized != f.City {
			continue
		}
		if f.Country != "" && a.Country != f.Country {
			continue
		}
		if f.MinRating > 0 && a.Score() < f.MinRating {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		switch f.Website {
		case domain.WebsiteWith:
			if a.Website == "" {
				continue
			}
		case domain.WebsiteWithout:
			if a.Website != "" {
				continue
			}
		}
		matched = append(matched, *a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := &matched[i], &matched[j]
		if a.Featured != b.Featured {
			return a.Featured
		}
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		return a.Reviews() > b.Reviews()
	})

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Agency{}, total, nil
	}
	end := min(offset+limit, total)

	span.SetAttributes(telemetry.AttrResultCount.Int(total))
	return matched[offset:end], total, nil
}

// Featured returns the best-known featured agencies: at least 1000 reviews,
// Latin-script titles, most reviewed first.
func (s *AgencyService) Featured(ctx context.Context, limit int) ([]domain.Agency, error) {
	if limit <= 0 {
		limit = featuredDefault
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Agency, 0, limit)
	for i := range all {
		a := &all[i]
		if a.Featured && !containsArabic(a.Title) && a.Reviews() >= featuredMinVotes {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reviews() != out[j].Reviews() {
			return out[i].Reviews() > out[j].Reviews()
		}
		return out[i].Score() > out[j].Score()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Facets returns the sorted distinct cities, countries and categories.
func (s *AgencyService) Facets(ctx context.Context) (*domain.Facets, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	cities := map[string]struct{}{}
	countries := map[string]struct{}{}
	categories := map[string]struct{}{}
	for i := range all {
		a := &all[i]
		if a.CityNormalized != "" && a.CityNormalized != unknownFacet {
			cities[a.CityNormalized] = struct{}{}
		}
		if a.Country != "" && a.Country != unknownFacet {
			countries[a.Country] = struct{}{}
		}
		if a.Category != "" {
			categories[a.Category] = struct{}{}
		}
	}
	return &domain.Facets{
		Cities:     sortedKeys(cities),
		Countries:  sortedKeys(countries),
		Categories: sortedKeys(categories),
	}, nil
}

// Nearby ranks the listing by distance from p.
func (s *AgencyService) Nearby(ctx context.Context, p domain.GeoPoint, limit int) ([]domain.RankedAgency, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidQuery)
	}
	if limit <= 0 || limit > mapview.DefaultLimit {
		limit = mapview.DefaultLimit
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return mapview.RankByProximity(all, p, limit), nil
}

// Search matches query against name, city, country and category of the
// mappable agencies.
func (s *AgencyService) Search(ctx context.Context, query string, limit int) ([]domain.Agency, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgencyService.Search")
	defer span.End()
	span.SetAttributes(telemetry.AttrQuery.String(query))

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query must not be empty", domain.ErrInvalidQuery)
	}
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("%w: search query longer than %d characters", domain.ErrInvalidQuery, maxQueryLength)
	}
	if limit <= 0 || limit > mapview.DefaultLimit {
		limit = mapview.DefaultLimit
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := mapview.SearchByQuery(all, query, limit)
	span.SetAttributes(telemetry.AttrResultCount.Int(len(out)))
	return out, nil
}

// Snapshot returns the marker set a new map view would show for query and
// ref, without opening a session.
func (s *AgencyService) Snapshot(ctx context.Context, query string, ref *domain.GeoPoint, limit int) (mapview.DisplaySet, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgencyService.Snapshot")
	defer span.End()

	if len(query) > maxQueryLength {
		return mapview.DisplaySet{}, fmt.Errorf("%w: search query longer than %d characters", domain.ErrInvalidQuery, maxQueryLength)
	}
	if ref != nil && !ref.Valid() {
		return mapview.DisplaySet{}, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidQuery)
	}
	if limit <= 0 || limit > mapview.DefaultLimit {
		limit = mapview.DefaultLimit
	}
	all, err := s.List(ctx)
	if err != nil {
		return mapview.DisplaySet{}, err
	}
	set := mapview.Snapshot(all, query, ref, mapview.Config{MaxMarkers: limit, MaxSearchResults: limit})
	span.SetAttributes(telemetry.AttrReason.String(string(set.Reason)), telemetry.AttrResultCount.Int(set.Len()))
	return set, nil
}

// InBounds returns the mappable agencies inside b, in listing order.
func (s *AgencyService) InBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Agency, error) {
	if limit <= 0 || limit > mapview.DefaultLimit {
		limit = mapview.DefaultLimit
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Agency, 0, limit)
	for i := range all {
		a := &all[i]
		if a.Mappable() && b.Contains(*a.Location) {
			out = append(out, *a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Invalidate drops the cached listing after the dataset changed.
func (s *AgencyService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, listCacheKey)
}

func containsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
