// Package ingest turns scraped agency rows into directory listings.
package ingest

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// RawAgency is one row of the scraped dataset.
type RawAgency struct {
	Title        string   `json:"title"`
	TotalScore   *float64 `json:"totalScore"`
	ReviewsCount *int     `json:"reviewsCount"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	CountryCode  string   `json:"countryCode"`
	Website      string   `json:"website"`
	Phone        string   `json:"phone"`
	Email        string   `json:"email"`
	CategoryName string   `json:"categoryName"`
	URL          string   `json:"url"`
	ImageURL     string   `json:"imageUrl"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
}

// Options tunes normalisation.
type Options struct {
	// CountryCaps keeps only the best N agencies of a country code.
	CountryCaps map[string]int
	// Geocode places agencies without coordinates at their city centre.
	Geocode bool
	Now     func() time.Time
}

const (
	featuredMinScore   = 4.8
	featuredMinReviews = 50
	jitterDegrees      = 0.02
	unknown            = "Unknown"
	defaultCategory    = "Travel Agency"
)

var categories = map[string]string{
	"مكتب سفريات":  "Travel Agency",
	"وكالة سياحية": "Tourism Agency",
	"وكالة عمل جولات في المعالم السياحية":  "Tour Operator",
	"شركة سياحية لتنظيم رحلات غوص السكوبا": "Adventure Tours",
	"وكالة تسويق":                    "Marketing Agency",
	"Agence de voyages":              "Travel Agency",
	"Agence de visites touristiques": "Tour Operator",
}

var cities = map[string]string{
	"الدار البيضاء": "Casablanca",
	"مراكش":         "Marrakech",
	"الرباط":        "Rabat",
	"أگادير":        "Agadir",
	"فاس":           "Fes",
	"طنجة":          "Tangier",
	"تمارة":         "Temara",
	"مكناس":         "Meknes",
	"إنزكان":        "Inezgane",
	"جليز،":         "Gueliz",
	"قلعة مكونة":    "Kelaat M'Gouna",
	"Tanger":        "Tangier",
	"Fès":           "Fes",
	"Marrakesh":     "Marrakech",
	"Tétouan":       "Tetouan",
	"Mhamid":        "M'hamid",
}

// Normalize converts raw rows into agencies. Rows without a title are
// dropped; ids and slug fallbacks use the row's position in the input.
func Normalize(rows []RawAgency, opts Options) []domain.Agency {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	created := now().UTC()

	out := make([]domain.Agency, 0, len(rows))
	slugs := make(map[string]int, len(rows))
	for i, r := range rows {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}

		slug := Slugify(title)
		if slug == "" {
			slug = fmt.Sprintf("agency-%d", i)
		}
		if n := slugs[slug]; n > 0 {
			slugs[slug] = n + 1
			slug = fmt.Sprintf("%s-%d", slug, n+1)
		} else {
			slugs[slug] = 1
		}

		city := CityName(r.City)
		a := domain.Agency{
			ID:             fmt.Sprintf("agency-%d", i),
			Slug:           slug,
			Title:          title,
			TotalScore:     r.TotalScore,
			ReviewsCount:   r.ReviewsCount,
			Street:         r.Street,
			City:           r.City,
			CityNormalized: city,
			State:          r.State,
			CountryCode:    strings.ToUpper(r.CountryCode),
			Country:        CountryName(r.CountryCode),
			Website:        strings.TrimSpace(r.Website),
			Phone:          strings.Join(strings.Fields(r.Phone), " "),
			Email:          strings.TrimSpace(r.Email),
			CategoryName:   r.CategoryName,
			Category:       NormalizeCategory(r.CategoryName),
			URL:            r.URL,
			ImageURL:       r.ImageURL,
			CreatedAt:      created,
		}
		a.Featured = a.Score() >= featuredMinScore && a.Reviews() >= featuredMinReviews
		a.Location = locate(r, city, a.CountryCode, slug, opts.Geocode)
		out = append(out, a)
	}

	if len(opts.CountryCaps) > 0 {
		out = capCountries(out, opts.CountryCaps)
	}
	return out
}

func locate(r RawAgency, city, country, slug string, geocode bool) *domain.GeoPoint {
	if r.Lat != nil && r.Lng != nil {
		p := domain.GeoPoint{Lat: *r.Lat, Lng: *r.Lng}
		if p.Valid() {
			return &p
		}
		return nil
	}
	if !geocode {
		return nil
	}
	c, ok := CityCoordinates(city, country)
	if !ok {
		return nil
	}
	// Spread agencies of the same city so their markers do not stack.
	dLat, dLng := jitter(slug)
	p := domain.GeoPoint{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
	return &p
}

func jitter(seed string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	v := h.Sum64()
	a := float64(v&0xffff)/0xffff - 0.5
	b := float64((v>>16)&0xffff)/0xffff - 0.5
	return a * jitterDegrees, b * jitterDegrees
}

// capCountries keeps the top-rated agencies of each capped country and
// every agency of other countries, preserving input order.
func capCountries(agencies []domain.Agency, caps map[string]int) []domain.Agency {
	byCountry := map[string][]int{}
	for i := range agencies {
		if _, ok := caps[agencies[i].CountryCode]; ok {
			byCountry[agencies[i].CountryCode] = append(byCountry[agencies[i].CountryCode], i)
		}
	}
	keep := map[int]bool{}
	for code, idx := range byCountry {
		sort.SliceStable(idx, func(x, y int) bool {
			a, b := &agencies[idx[x]], &agencies[idx[y]]
			if a.Score() != b.Score() {
				return a.Score() > b.Score()
			}
			return a.Reviews() > b.Reviews()
		})
		n := min(caps[code], len(idx))
		for _, i := range idx[:n] {
			keep[i] = true
		}
	}

	out := agencies[:0:0]
	for i := range agencies {
		if _, capped := caps[agencies[i].CountryCode]; capped && !keep[i] {
			continue
		}
		out = append(out, agencies[i])
	}
	return out
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWord       = regexp.MustCompile(`[^\w\-]+`)
	dashRun       = regexp.MustCompile(`-{2,}`)
)

// Slugify lower-cases text, turns whitespace into dashes and strips
// everything but ASCII letters, digits, underscores and dashes.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonWord.ReplaceAllString(s, "")
	s = dashRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeCategory maps Arabic and French category names to English.
func NormalizeCategory(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultCategory
	}
	if en, ok := categories[name]; ok {
		return en
	}
	return name
}

// CityName maps local spellings to the English city name.
func CityName(city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return unknown
	}
	if en, ok := cities[city]; ok {
		return en
	}
	return city
}

// CountryName resolves an ISO code. Unknown codes are returned unchanged.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return unknown
	}
	if name, ok := countries[code]; ok {
		return name
	}
	return code
}
