package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery is returned for empty or oversized search input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrAlreadyContacted is returned when an agency already has a contact record.
	ErrAlreadyContacted = errors.New("agency already contacted")
	// ErrUnavailable is returned when a backing service is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// Agency is a listed travel agency.
type Agency struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	TotalScore     *float64  `json:"total_score,omitempty"`
	ReviewsCount   *int      `json:"reviews_count,omitempty"`
	Street         string    `json:"street,omitempty"`
	City           string    `json:"city,omitempty"`
	CityNormalized string    `json:"city_normalized"`
	State          string    `json:"state,omitempty"`
	CountryCode    string    `json:"country_code,omitempty"`
	Country        string    `json:"country"`
	Website        string    `json:"website,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	CategoryName   string    `json:"category_name,omitempty"`
	Category       string    `json:"category"`
	URL            string    `json:"url,omitempty"`
	Description    string    `json:"description,omitempty"`
	Featured       bool      `json:"featured"`
	Verified       bool      `json:"verified"`
	ImageURL       string    `json:"image_url,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Mappable reports whether the agency has a usable position.
func (a *Agency) Mappable() bool {
	return a.Location != nil && a.Location.Valid()
}

// SearchableFields returns the fields matched by free-text search, in
// name, city, country, category order.
func (a *Agency) SearchableFields() []string {
	return []string{a.Title, a.City, a.Country, a.Category}
}

// Score returns the rating or 0 when unrated.
func (a *Agency) Score() float64 {
	if a.TotalScore == nil {
		return 0
	}
	return *a.TotalScore
}

// Reviews returns the review count or 0 when unknown.
func (a *Agency) Reviews() int {
	if a.ReviewsCount == nil {
		return 0
	}
	return *a.ReviewsCount
}

// RankedAgency is an agency annotated with its distance from a reference point.
type RankedAgency struct {
	Agency
	DistanceKm float64 `json:"distance_km"`
}

// WebsiteFilter restricts listings by presence of a website.
type WebsiteFilter string

const (
	WebsiteAll     WebsiteFilter = "all"
	WebsiteWith    WebsiteFilter = "with"
	WebsiteWithout WebsiteFilter = "without"
)

// AgencyFilter holds the directory browse filters.
type AgencyFilter struct {
	Query     string        `json:"query,omitempty"`
	City      string        `json:"city,omitempty"`
	Country   string        `json:"country,omitempty"`
	MinRating float64       `json:"min_rating,omitempty"`
	Category  string        `json:"category,omitempty"`
	Website   WebsiteFilter `json:"website,omitempty"`
	Offset    int           `json:"offset"`
	Limit     int           `json:"limit"`
}

// Facets lists the distinct values available to the browse filters.
type Facets struct {
	Cities     []string `json:"cities"`
	Countries  []string `json:"countries"`
	Categories []string `json:"categories"`
}

// ContactRecord marks an agency as reached by outreach.
type ContactRecord struct {
	AgencyID    string    `json:"id"`
	Contacted   bool      `json:"contacted"`
	ContactedBy string    `json:"contacted_by"`
	ContactedAt time.Time `json:"contacted_at"`
	Pending     bool      `json:"pending,omitempty"`
}

// OutreachEmail is a composed invitation for an unregistered agency.
type OutreachEmail struct {
	AgencyID string `json:"agency_id"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
}

// OutreachRequest asks for an invitation to be sent to one agency.
type OutreachRequest struct {
	AgencyID    string    `json:"agency_id"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// MapEvent is published whenever a map session applies a new display set.
type MapEvent struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Reason    string    `json:"reason"`
	Count     int       `json:"count"`
	AgencyIDs []string  `json:"agency_ids"`
	At        time.Time `json:"at"`
}

// DatasetUpdate is published after the agency listing was reloaded.
type DatasetUpdate struct {
	Source string    `json:"source"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}
