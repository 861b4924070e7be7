package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/mapview"
)

// displaySetFeatures converts markers into a FeatureCollection of points,
// one per agency, in display order. The collection carries the set's
// metadata as foreign members and a bbox when it is not empty.
func displaySetFeatures(set mapview.DisplaySet) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	points := make(orb.MultiPoint, 0, len(set.Markers))

	for i := range set.Markers {
		m := &set.Markers[i]
		if m.Location == nil {
			continue
		}
		pt := orb.Point{m.Location.Lng, m.Location.Lat}
		points = append(points, pt)

		f := geojson.NewFeature(pt)
		f.ID = m.ID
		f.Properties["slug"] = m.Slug
		f.Properties["title"] = m.Title
		f.Properties["city"] = m.CityNormalized
		f.Properties["country"] = m.Country
		f.Properties["category"] = m.Category
		f.Properties["featured"] = m.Featured
		if m.TotalScore != nil {
			f.Properties["rating"] = *m.TotalScore
		}
		if m.ReviewsCount != nil {
			f.Properties["reviews"] = *m.ReviewsCount
		}
		if m.DistanceKm != nil {
			f.Properties["distance_km"] = *m.DistanceKm
		}
		fc.Append(f)
	}

	if len(points) > 0 {
		fc.BBox = geojson.NewBBox(points.Bound())
	}
	fc.ExtraMembers = geojson.Properties{
		"seq":     set.Seq,
		"reason":  set.Reason,
		"summary": set.Summary(),
	}
	if set.Reference != nil {
		fc.ExtraMembers["reference"] = []float64{set.Reference.Lng, set.Reference.Lat}
	}
	return fc
}

// MarkersGeoJSONHandler returns the marker set a new map view would show,
// as GeoJSON. q selects search results, lat/lng ranks by proximity.
func MarkersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var ref *domain.GeoPoint
		p, ok, err := pointFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if ok {
			if !p.Valid() {
				return errBadRequest(c, "lat must be within [-90,90] and lng within [-180,180]")
			}
			ref = &p
		}

		set, err := deps.Agencies.Snapshot(c.UserContext(), c.Query("q"), ref, c.QueryInt("limit", 100))
		if err != nil {
			return errFromDomain(c, err, "")
		}

		data, err := displaySetFeatures(set).MarshalJSON()
		if err != nil {
			return errInternal(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
