package geo

import (
	"strings"
	"testing"
)

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		lat, lon  float64
		precision int
		want      string
	}{
		// Reference value from the original geohash paper example.
		{57.64911, 10.40744, 9, "u4pruydqq"},
		{57.64911, 10.40744, 5, "u4pru"},
		{0, 0, 1, "s"},
		{-23.5505, -46.6333, 6, Encode(-23.5505, -46.6333, 9)[:6]},
	}
	for _, tc := range cases {
		got := Encode(tc.lat, tc.lon, tc.precision)
		if got != tc.want {
			t.Errorf("Encode(%v, %v, %d) = %q, want %q", tc.lat, tc.lon, tc.precision, got, tc.want)
		}
	}
}

func TestEncodeDecodeBoxRoundTrip(t *testing.T) {
	lat, lon := -23.5505, -46.6333
	hash := Encode(lat, lon, MaxPrecision)
	minLat, maxLat, minLon, maxLon, err := DecodeBox(hash)
	if err != nil {
		t.Fatal(err)
	}
	if lat < minLat || lat > maxLat || lon < minLon || lon > maxLon {
		t.Errorf("point (%v,%v) outside decoded box of its own hash", lat, lon)
	}
}

func TestNeighborsCoverAdjacentPoints(t *testing.T) {
	// Two points closer than one precision-6 cell height can still land in
	// different cells; one must then be among the other's neighbors.
	a := Encode(-23.5505, -46.6333, 6)
	b := Encode(-23.5540, -46.6333, 6)
	if a == b {
		t.Skip("points share a cell at this precision")
	}
	cells := append(Neighbors(a), a)
	for _, c := range cells {
		if c == b {
			return
		}
	}
	t.Errorf("cell %q not among %q and its neighbors %v", b, a, Neighbors(a))
}

func TestPrecisionForRadius(t *testing.T) {
	cases := []struct {
		radiusKm float64
		want     int
	}{
		{0, MaxPrecision},
		{-1, MaxPrecision},
		{0.004, 9},
		{1, 6},
		{10, 4},
		{100, 3},
		{2000, 1},
		{99999, 1},
	}
	for _, tc := range cases {
		if got := PrecisionForRadius(tc.radiusKm); got != tc.want {
			t.Errorf("PrecisionForRadius(%v) = %d, want %d", tc.radiusKm, got, tc.want)
		}
	}
}

func TestHaversine(t *testing.T) {
	// São Paulo -> Rio de Janeiro, roughly 361 km.
	d := Haversine(-23.5505, -46.6333, -22.9068, -43.1729)
	if d < 350 || d > 370 {
		t.Errorf("São Paulo-Rio distance = %v km, want ~361", d)
	}
	if d := Haversine(10, 20, 10, 20); d != 0 {
		t.Errorf("zero distance = %v", d)
	}
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("-23.5505, -46.6333")
	if err != nil {
		t.Fatal(err)
	}
	if p.Lat != -23.5505 || p.Lon != -46.6333 {
		t.Errorf("parsed %+v", p)
	}
	if !strings.HasPrefix(p.Geohash(), "6gyf") {
		t.Errorf("São Paulo geohash = %q, want 6gyf... prefix", p.Geohash())
	}

	for _, bad := range []string{"", "1.0", "a,b", "91,0", "0,181"} {
		if _, err := ParsePoint(bad); err == nil {
			t.Errorf("ParsePoint(%q) should fail", bad)
		}
	}
}
