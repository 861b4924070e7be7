package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadJSON decodes a JSON array of raw rows.
func ReadJSON(r io.Reader) ([]RawAgency, error) {
	var rows []RawAgency
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return rows, nil
}

// ReadCSV reads a scraper CSV export. Columns are matched by header name
// using the JSON field names; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]RawAgency, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, fmt.Errorf("dataset has no title column")
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []RawAgency
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, RawAgency{
			Title:        get(rec, "title"),
			TotalScore:   parseFloat(get(rec, "totalScore")),
			ReviewsCount: parseInt(get(rec, "reviewsCount")),
			Street:       get(rec, "street"),
			City:         get(rec, "city"),
			State:        get(rec, "state"),
			CountryCode:  get(rec, "countryCode"),
			Website:      get(rec, "website"),
			Phone:        get(rec, "phone"),
			Email:        get(rec, "email"),
			CategoryName: get(rec, "categoryName"),
			URL:          get(rec, "url"),
			ImageURL:     get(rec, "imageUrl"),
			Lat:          parseFloat(get(rec, "lat")),
			Lng:          parseFloat(get(rec, "lng")),
		})
	}
	return rows, nil
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		v = int(f)
	}
	return &v
}
