package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

const maxQueryLength = 200

// ListAgenciesHandler returns one filtered page of the directory.
func ListAgenciesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := domain.AgencyFilter{
			Query:     c.Query("q"),
			City:      c.Query("city"),
			Country:   c.Query("country"),
			MinRating: c.QueryFloat("min_rating", 0),
			Category:  c.Query("category"),
			Website:   domain.WebsiteFilter(c.Query("website", string(domain.WebsiteAll))),
			Offset:    c.QueryInt("offset", 0),
			Limit:     c.QueryInt("limit", 24),
		}
		if len(f.Query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		switch f.Website {
		case domain.WebsiteAll, domain.WebsiteWith, domain.WebsiteWithout:
		default:
			return errBadRequest(c, "website must be one of all, with, without")
		}
		if f.Offset < 0 {
			f.Offset = 0
		}
		if f.Limit <= 0 || f.Limit > 100 {
			f.Limit = 24
		}

		agencies, total, err := deps.Agencies.Filter(c.UserContext(), f)
		if err != nil {
			return errFromDomain(c, err, "")
		}

		pg := Pagination{Offset: f.Offset, Limit: f.Limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: agencies, Pagination: pg})
	}
}

// GetAgencyHandler returns a single agency by slug.
func GetAgencyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return errBadRequest(c, "agency slug is required")
		}
		agency, err := deps.Agencies.GetBySlug(c.UserContext(), slug)
		if err != nil {
			return errFromDomain(c, err, "agency not found")
		}
		return c.JSON(agency)
	}
}

// FeaturedAgenciesHandler returns the homepage selection.
func FeaturedAgenciesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 6)
		if limit <= 0 || limit > 50 {
			limit = 6
		}
		agencies, err := deps.Agencies.Featured(c.UserContext(), limit)
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(agencies)
	}
}

// FacetsHandler returns the values available to the browse filters.
func FacetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		facets, err := deps.Agencies.Facets(c.UserContext())
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(facets)
	}
}

// NearbyAgenciesHandler ranks agencies by distance from lat/lng.
func NearbyAgenciesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok, err := pointFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if !ok {
			return errBadRequest(c, "lat and lng are required")
		}
		if !p.Valid() {
			return errBadRequest(c, "lat must be within [-90,90] and lng within [-180,180]")
		}

		ranked, err := deps.Agencies.Nearby(c.UserContext(), p, c.QueryInt("limit", 100))
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(ranked)
	}
}

// SearchAgenciesHandler matches q against name, city, country and category.
func SearchAgenciesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if strings.TrimSpace(query) == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		agencies, err := deps.Agencies.Search(c.UserContext(), query, c.QueryInt("limit", 100))
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(agencies)
	}
}

// WithinBoundsHandler returns the mappable agencies inside a bounding box.
func WithinBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b domain.Bounds
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"min_lat", &b.MinLat}, {"min_lng", &b.MinLng},
			{"max_lat", &b.MaxLat}, {"max_lng", &b.MaxLng},
		} {
			raw := c.Query(f.name)
			if raw == "" {
				return errBadRequest(c, "min_lat, min_lng, max_lat and max_lng are required")
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, f.name+" must be a number")
			}
			*f.dst = v
		}
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return errBadRequest(c, "bounds minimum exceeds maximum")
		}

		agencies, err := deps.Agencies.InBounds(c.UserContext(), b, c.QueryInt("limit", 100))
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(agencies)
	}
}

// pointFromQuery parses lat/lng. ok is false when either is absent.
func pointFromQuery(c *fiber.Ctx) (domain.GeoPoint, bool, error) {
	rawLat, rawLng := c.Query("lat"), c.Query("lng")
	if rawLat == "" || rawLng == "" {
		return domain.GeoPoint{}, false, nil
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.GeoPoint{}, false, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return domain.GeoPoint{}, false, fiber.NewError(fiber.StatusBadRequest, "lng must be a number")
	}
	return domain.GeoPoint{Lat: lat, Lng: lng}, true, nil
}

// ---- Contacted registry ----

type contactedRequest struct {
	ID          string `json:"id"`
	Contacted   bool   `json:"contacted"`
	ContactedBy string `json:"contactedBy"`
}

// ListContactedHandler returns the contacted registry keyed by agency id.
func ListContactedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		registry, err := deps.Outreach.Contacted(c.UserContext())
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(registry)
	}
}

// UpdateContactedHandler marks an agency as contacted, or clears the mark
// when contacted is false.
func UpdateContactedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req contactedRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.ID == "" {
			return errBadRequest(c, "agency id is required")
		}

		if !req.Contacted {
			if err := deps.Outreach.UnmarkContacted(c.UserContext(), req.ID); err != nil {
				return errFromDomain(c, err, "")
			}
			return c.JSON(fiber.Map{"success": true, "data": nil})
		}

		rec, err := deps.Outreach.MarkContacted(c.UserContext(), req.ID, req.ContactedBy)
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(fiber.Map{"success": true, "data": rec})
	}
}

// ---- Outreach ----

type outreachRequestBody struct {
	AgencyID    string `json:"agency_id"`
	RequestedBy string `json:"requested_by"`
}

// OutreachCandidatesHandler lists agencies that can still be invited.
func OutreachCandidatesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		candidates, err := deps.Outreach.Candidates(c.UserContext(), c.QueryInt("limit", 50))
		if err != nil {
			return errFromDomain(c, err, "")
		}
		return c.JSON(candidates)
	}
}

// RequestOutreachHandler queues an invitation for one agency.
func RequestOutreachHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body outreachRequestBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.AgencyID == "" {
			return errBadRequest(c, "agency_id is required")
		}
		req, err := deps.Outreach.Request(c.UserContext(), body.AgencyID, body.RequestedBy)
		if err != nil {
			return errFromDomain(c, err, "agency not found")
		}
		return c.Status(fiber.StatusAccepted).JSON(req)
	}
}

// PreviewOutreachHandler renders the invitation for one agency without
// sending it.
func PreviewOutreachHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := deps.Outreach.ComposeFor(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err, "agency not found")
		}
		return c.JSON(email)
	}
}
