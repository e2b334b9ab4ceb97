package geospatial

import (
	"math"
	"testing"

	"github.com/samirrijal/aparka/internal/core/domain"
)

func TestHaversine_KnownDistances(t *testing.T) {
	// Abando station to the Casco Viejo, roughly 1.15 km.
	d := Haversine(43.2630, -2.9350, 43.2569, -2.9234)
	if d < 1100 || d > 1250 {
		t.Errorf("Abando-Casco distance = %.0f m, want ~1150", d)
	}

	// Bilbao to Donostia, roughly 79 km on the great circle.
	d = Haversine(43.2630, -2.9350, 43.3183, -1.9812)
	if d < 76_000 || d > 82_000 {
		t.Errorf("Bilbao-Donostia distance = %.0f m, want ~79 km", d)
	}
}

func TestHaversine_ZeroAndSymmetry(t *testing.T) {
	if d := Haversine(43.2630, -2.9350, 43.2630, -2.9350); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}

	ab := Haversine(43.2630, -2.9350, 43.2569, -2.9234)
	ba := Haversine(43.2569, -2.9234, 43.2630, -2.9350)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("asymmetric distance: %f vs %f", ab, ba)
	}
}

func TestDistance_MatchesHaversine(t *testing.T) {
	a := domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}
	b := domain.GeoPoint{Lat: 43.2569, Lon: -2.9234}
	if got, want := Distance(a, b), Haversine(a.Lat, a.Lon, b.Lat, b.Lon); got != want {
		t.Errorf("Distance = %f, Haversine = %f", got, want)
	}
}

func TestBoundsOf(t *testing.T) {
	if _, ok := BoundsOf(); ok {
		t.Error("no points must yield no bounds")
	}

	p := domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}
	b, ok := BoundsOf(p)
	if !ok {
		t.Fatal("expected bounds for a single point")
	}
	if b.MinLat != p.Lat || b.MaxLat != p.Lat || b.MinLon != p.Lon || b.MaxLon != p.Lon {
		t.Errorf("single-point bounds = %+v", b)
	}
	if c := b.Center(); c != p {
		t.Errorf("Center = %v, want %v", c, p)
	}

	b, ok = BoundsOf(
		domain.GeoPoint{Lat: 43.25, Lon: -2.95},
		domain.GeoPoint{Lat: 43.27, Lon: -2.91},
		domain.GeoPoint{Lat: 43.26, Lon: -2.93},
	)
	if !ok {
		t.Fatal("expected bounds")
	}
	if b.MinLat != 43.25 || b.MaxLat != 43.27 || b.MinLon != -2.95 || b.MaxLon != -2.91 {
		t.Errorf("bounds = %+v", b)
	}
}
