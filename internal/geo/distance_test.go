package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_ZeroDistance(t *testing.T) {
	d := HaversineKm(10, 20, 10, 20)
	if d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Dubai (DXB) to Abu Dhabi (AUH) is roughly 117 km.
	d := HaversineKm(25.2532, 55.3657, 24.4330, 54.6511)
	if math.Abs(d-117) > 3 {
		t.Fatalf("DXB-AUH = %.1f km, want ~117", d)
	}
}

func TestIsWithinRadius_Boundary(t *testing.T) {
	lat1, lng1 := 0.0, 0.0
	lat2, lng2 := 0.0, 0.000001
	if !IsWithinRadius(lat1, lng1, lat2, lng2, 0.1) {
		t.Fatalf("expected points to be within radius")
	}
	if IsWithinRadius(0, 0, 1, 0, 100) {
		t.Fatalf("one degree of latitude is ~111 km")
	}
}

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		lat, lng float64
		ok       bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
	}
	for _, c := range cases {
		if got := ValidCoordinate(c.lat, c.lng); got != c.ok {
			t.Fatalf("ValidCoordinate(%v, %v) = %v, want %v", c.lat, c.lng, got, c.ok)
		}
	}
}

func TestNearest(t *testing.T) {
	type pt struct {
		name     string
		lat, lng float64
	}
	pts := []pt{{"far", 1, 0}, {"near", 0.01, 0}, {"mid", 0.5, 0}}
	pos := func(p pt) (float64, float64) { return p.lat, p.lng }

	got := Nearest(0, 0, pts, pos, 2, 0)
	if len(got) != 2 || got[0].Item.name != "near" || got[1].Item.name != "mid" {
		t.Fatalf("unexpected order: %+v", got)
	}
	got = Nearest(0, 0, pts, pos, 0, 60)
	if len(got) != 2 {
		t.Fatalf("maxKm should drop the far point: %+v", got)
	}
}
