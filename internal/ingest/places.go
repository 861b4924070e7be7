package ingest

import (
	"strings"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

var countries = map[string]string{
	// Africa
	"MA": "Morocco", "EG": "Egypt", "TN": "Tunisia", "DZ": "Algeria", "ZA": "South Africa",
	"KE": "Kenya", "NG": "Nigeria", "GH": "Ghana", "EH": "Morocco",
	// Europe
	"FR": "France", "ES": "Spain", "IT": "Italy", "DE": "Germany", "GB": "United Kingdom",
	"UK": "United Kingdom", "NL": "Netherlands", "BE": "Belgium", "AT": "Austria",
	"CH": "Switzerland", "PT": "Portugal", "IE": "Ireland", "SE": "Sweden", "NO": "Norway",
	"DK": "Denmark", "FI": "Finland", "PL": "Poland", "CZ": "Czech Republic", "GR": "Greece",
	"TR": "Turkey", "RU": "Russia", "IS": "Iceland", "HU": "Hungary", "RO": "Romania",
	"BG": "Bulgaria", "HR": "Croatia", "SK": "Slovakia", "SI": "Slovenia", "LU": "Luxembourg",
	"MT": "Malta", "CY": "Cyprus",
	// North America
	"US": "United States", "CA": "Canada", "MX": "Mexico",
	// South America
	"BR": "Brazil", "AR": "Argentina", "CL": "Chile", "CO": "Colombia", "PE": "Peru",
	"VE": "Venezuela", "EC": "Ecuador", "UY": "Uruguay",
	// Asia
	"AE": "United Arab Emirates", "SA": "Saudi Arabia", "QA": "Qatar", "KW": "Kuwait",
	"BH": "Bahrain", "OM": "Oman", "JO": "Jordan", "LB": "Lebanon", "IL": "Israel",
	"JP": "Japan", "KR": "South Korea", "CN": "China", "HK": "Hong Kong", "TW": "Taiwan",
	"SG": "Singapore", "MY": "Malaysia", "TH": "Thailand", "VN": "Vietnam", "ID": "Indonesia",
	"PH": "Philippines", "IN": "India", "PK": "Pakistan", "BD": "Bangladesh", "LK": "Sri Lanka",
	"NP": "Nepal", "MM": "Myanmar", "KH": "Cambodia", "LA": "Laos",
	// Oceania
	"AU": "Australia", "NZ": "New Zealand", "FJ": "Fiji",
	// Caribbean
	"JM": "Jamaica", "CU": "Cuba", "DO": "Dominican Republic", "PR": "Puerto Rico",
	"TT": "Trinidad and Tobago", "BS": "Bahamas",
}

type cityKey struct {
	name    string
	country string
}

// City centres used to place agencies whose rows carry no coordinates.
var cityCentres = map[cityKey]domain.GeoPoint{
	{"casablanca", "MA"}:     {Lat: 33.5731, Lng: -7.5898},
	{"rabat", "MA"}:          {Lat: 34.0209, Lng: -6.8416},
	{"marrakech", "MA"}:      {Lat: 31.6295, Lng: -7.9811},
	{"fes", "MA"}:            {Lat: 34.0181, Lng: -5.0078},
	{"tangier", "MA"}:        {Lat: 35.7595, Lng: -5.8340},
	{"agadir", "MA"}:         {Lat: 30.4278, Lng: -9.5981},
	{"meknes", "MA"}:         {Lat: 33.8935, Lng: -5.5473},
	{"temara", "MA"}:         {Lat: 33.9287, Lng: -6.9063},
	{"tetouan", "MA"}:        {Lat: 35.5889, Lng: -5.3626},
	{"ouarzazate", "MA"}:     {Lat: 30.9189, Lng: -6.8934},
	{"inezgane", "MA"}:       {Lat: 30.3551, Lng: -9.5386},
	{"gueliz", "MA"}:         {Lat: 31.6368, Lng: -8.0106},
	{"oujda", "MA"}:          {Lat: 34.6814, Lng: -1.9086},
	{"essaouira", "MA"}:      {Lat: 31.5085, Lng: -9.7595},
	{"paris", "FR"}:          {Lat: 48.8566, Lng: 2.3522},
	{"lyon", "FR"}:           {Lat: 45.7640, Lng: 4.8357},
	{"marseille", "FR"}:      {Lat: 43.2965, Lng: 5.3698},
	{"madrid", "ES"}:         {Lat: 40.4168, Lng: -3.7038},
	{"barcelona", "ES"}:      {Lat: 41.3874, Lng: 2.1686},
	{"lisbon", "PT"}:         {Lat: 38.7223, Lng: -9.1393},
	{"london", "GB"}:         {Lat: 51.5072, Lng: -0.1276},
	{"rome", "IT"}:           {Lat: 41.9028, Lng: 12.4964},
	{"berlin", "DE"}:         {Lat: 52.5200, Lng: 13.4050},
	{"brussels", "BE"}:       {Lat: 50.8503, Lng: 4.3517},
	{"amsterdam", "NL"}:      {Lat: 52.3676, Lng: 4.9041},
	{"istanbul", "TR"}:       {Lat: 41.0082, Lng: 28.9784},
	{"cairo", "EG"}:          {Lat: 30.0444, Lng: 31.2357},
	{"tunis", "TN"}:          {Lat: 36.8065, Lng: 10.1815},
	{"algiers", "DZ"}:        {Lat: 36.7538, Lng: 3.0588},
	{"dubai", "AE"}:          {Lat: 25.2048, Lng: 55.2708},
	{"new york", "US"}:       {Lat: 40.7128, Lng: -74.0060},
	{"montreal", "CA"}:       {Lat: 45.5019, Lng: -73.5674},
	{"tokyo", "JP"}:          {Lat: 35.6762, Lng: 139.6503},
	{"sydney", "AU"}:         {Lat: -33.8688, Lng: 151.2093},
	{"rio de janeiro", "BR"}: {Lat: -22.9068, Lng: -43.1729},
}

// CityCoordinates returns the centre of a known city.
func CityCoordinates(city, countryCode string) (domain.GeoPoint, bool) {
	p, ok := cityCentres[cityKey{strings.ToLower(strings.TrimSpace(city)), strings.ToUpper(countryCode)}]
	return p, ok
}
