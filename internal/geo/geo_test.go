package geo

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/zemljevid/internal/fault"
)

func TestRectangleBounds(t *testing.T) {
	poly, err := RectangleBounds(LatLng{Lat: 61.5, Lng: 23.8}, LatLng{Lat: 61.4, Lng: 23.7})
	if err != nil {
		t.Fatalf("RectangleBounds: %v", err)
	}
	if poly.Type != TypePolygon {
		t.Errorf("expected type Polygon, got %q", poly.Type)
	}

	want := [][]float64{
		{23.8, 61.5},
		{23.8, 61.4},
		{23.7, 61.4},
		{23.7, 61.5},
		{23.8, 61.5},
	}
	if diff := cmp.Diff(want, poly.Ring()); diff != "" {
		t.Errorf("ring mismatch (-want +got):\n%s", diff)
	}
}

func TestRectangleBoundsClosedRing(t *testing.T) {
	corners := []struct{ tr, bl LatLng }{
		{LatLng{1, 1}, LatLng{0, 0}},
		{LatLng{90, 180}, LatLng{-90, -180}},
		{LatLng{-10.25, -40.5}, LatLng{-20, -41}},
		{LatLng{46.1, 14.6}, LatLng{46.0, 14.4}},
	}

	for _, c := range corners {
		poly, err := RectangleBounds(c.tr, c.bl)
		if err != nil {
			t.Fatalf("RectangleBounds(%v, %v): %v", c.tr, c.bl, err)
		}
		ring := poly.Ring()
		if len(ring) != 5 {
			t.Fatalf("expected 5 points, got %d", len(ring))
		}
		if diff := cmp.Diff(ring[0], ring[4]); diff != "" {
			t.Errorf("ring not closed for %v/%v:\n%s", c.tr, c.bl, diff)
		}
	}
}

func TestRectangleBoundsRejects(t *testing.T) {
	tests := []struct {
		name string
		tr   LatLng
		bl   LatLng
	}{
		{"latitude too high", LatLng{91, 10}, LatLng{0, 0}},
		{"latitude too low", LatLng{10, 10}, LatLng{-90.5, 0}},
		{"longitude too high", LatLng{10, 181}, LatLng{0, 0}},
		{"longitude too low", LatLng{10, 10}, LatLng{0, -180.1}},
		{"swapped corners", LatLng{0, 0}, LatLng{10, 10}},
		{"zero height", LatLng{10, 10}, LatLng{10, 0}},
		{"zero width", LatLng{10, 10}, LatLng{0, 10}},
		{"same point", LatLng{5, 5}, LatLng{5, 5}},
		{"NaN top-right", LatLng{math.NaN(), math.NaN()}, LatLng{61.4, 23.7}},
		{"NaN bottom-left latitude", LatLng{61.5, 23.8}, LatLng{math.NaN(), 23.7}},
		{"infinite latitude", LatLng{math.Inf(1), 0}, LatLng{0, -10}},
		{"infinite longitude", LatLng{10, math.Inf(1)}, LatLng{0, 0}},
		{"negative infinite longitude", LatLng{10, 10}, LatLng{0, math.Inf(-1)}},
	}

	for _, tt := range tests {
		_, err := RectangleBounds(tt.tr, tt.bl)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if code := fault.CodeOf(err); code != fault.CodeInvalidGeometry {
			t.Errorf("%s: expected INVALID_GEOMETRY, got %s", tt.name, code)
		}
	}
}

func TestParseLatLng(t *testing.T) {
	got, err := ParseLatLng("61.5, 23.8")
	if err != nil {
		t.Fatalf("ParseLatLng: %v", err)
	}
	if got.Lat != 61.5 || got.Lng != 23.8 {
		t.Errorf("expected 61.5,23.8, got %v", got)
	}

	for _, bad := range []string{"", "61.5", "a,b", "61.5,", ",23.8"} {
		if _, err := ParseLatLng(bad); err == nil {
			t.Errorf("ParseLatLng(%q): expected error", bad)
		}
	}
}

func TestParsedNonFiniteCornersRejected(t *testing.T) {
	bl := LatLng{Lat: 61.4, Lng: 23.7}
	for _, s := range []string{"NaN,NaN", "Inf,0", "61.5,+Inf", "-Inf,23.8"} {
		tr, err := ParseLatLng(s)
		if err != nil {
			continue
		}
		if _, err := RectangleBounds(tr, bl); fault.CodeOf(err) != fault.CodeInvalidGeometry {
			t.Errorf("%q: expected INVALID_GEOMETRY, got %v", s, err)
		}
	}
}

func TestContains(t *testing.T) {
	poly, _ := RectangleBounds(LatLng{Lat: 61.5, Lng: 23.8}, LatLng{Lat: 61.4, Lng: 23.7})

	tests := []struct {
		name string
		pt   Point
		want bool
	}{
		{"center", NewPoint(61.45, 23.75), true},
		{"corner", NewPoint(61.5, 23.8), true},
		{"edge", NewPoint(61.4, 23.75), true},
		{"just north", NewPoint(61.5001, 23.75), false},
		{"just west", NewPoint(61.45, 23.6999), false},
		{"far away", NewPoint(46.05, 14.5), false},
	}

	for _, tt := range tests {
		if got := Contains(poly, tt.pt); got != tt.want {
			t.Errorf("%s: Contains = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPointValidate(t *testing.T) {
	if err := NewPoint(46.05, 14.5).Validate(); err != nil {
		t.Errorf("expected valid point, got %v", err)
	}
	if err := NewPoint(95, 14.5).Validate(); err == nil {
		t.Error("expected error for latitude out of range")
	}
	if err := NewPoint(math.NaN(), 14.5).Validate(); err == nil {
		t.Error("expected error for NaN latitude")
	}
	if err := NewPoint(46.05, math.Inf(-1)).Validate(); err == nil {
		t.Error("expected error for infinite longitude")
	}
	if err := (Point{Type: "Line", Coordinates: []float64{1, 2}}).Validate(); err == nil {
		t.Error("expected error for wrong type")
	}
	if err := (Point{Type: TypePoint, Coordinates: []float64{1}}).Validate(); err == nil {
		t.Error("expected error for missing coordinate")
	}
}

func TestPolygonBounds(t *testing.T) {
	poly, _ := RectangleBounds(LatLng{Lat: 2, Lng: 4}, LatLng{Lat: -1, Lng: 3})
	minLng, minLat, maxLng, maxLat := poly.Bounds()
	if minLng != 3 || minLat != -1 || maxLng != 4 || maxLat != 2 {
		t.Errorf("unexpected bounds: %v %v %v %v", minLng, minLat, maxLng, maxLat)
	}
}
