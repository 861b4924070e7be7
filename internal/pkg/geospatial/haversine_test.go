package geospatial_test

import (
	"math"
	"testing"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/geospatial"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	if d := geospatial.HaversineKm(34.02, -6.84, 34.02, -6.84); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversineKm_RabatCasablanca(t *testing.T) {
	d := geospatial.HaversineKm(34.00, -6.80, 33.57, -7.59)
	if d < 80 || d > 90 {
		t.Errorf("expected ~86 km, got %f", d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := geospatial.HaversineKm(48.8566, 2.3522, 40.4168, -3.7038)
	b := geospatial.HaversineKm(40.4168, -3.7038, 48.8566, 2.3522)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}
