// Package geo holds the GeoJSON values stored with items and the bounding
// rectangle used for area lookups. Positions are [longitude, latitude].
package geo

import (
	"strconv"
	"strings"

	"github.com/erazemk/zemljevid/internal/fault"
)

// GeoJSON geometry types.
const (
	TypePoint   = "Point"
	TypePolygon = "Polygon"
)

// LatLng is a coordinate pair as supplied by clients.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a GeoJSON point.
type Point struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewPoint builds a point from a latitude/longitude pair.
func NewPoint(lat, lng float64) Point {
	return Point{Type: TypePoint, Coordinates: []float64{lng, lat}}
}

// Lng returns the point's longitude.
func (p Point) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the point's latitude.
func (p Point) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Validate checks the point is a well-formed position on the globe.
func (p Point) Validate() error {
	if p.Type != TypePoint {
		return fault.Newf(fault.CodeInvalidGeometry, "location type must be %q", TypePoint)
	}
	if len(p.Coordinates) != 2 {
		return fault.New(fault.CodeInvalidGeometry, "location must have exactly two coordinates")
	}
	return checkRange(LatLng{Lat: p.Lat(), Lng: p.Lng()}, "location")
}

// Polygon is a GeoJSON polygon. Only the outer ring is used.
type Polygon struct {
	Type        string        `json:"type" bson:"type"`
	Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
}

// Ring returns the outer ring.
func (p Polygon) Ring() [][]float64 {
	if len(p.Coordinates) == 0 {
		return nil
	}
	return p.Coordinates[0]
}

// Bounds returns the min/max longitude and latitude covered by the ring.
func (p Polygon) Bounds() (minLng, minLat, maxLng, maxLat float64) {
	ring := p.Ring()
	for i, pos := range ring {
		lng, lat := pos[0], pos[1]
		if i == 0 {
			minLng, maxLng, minLat, maxLat = lng, lng, lat, lat
			continue
		}
		minLng = min(minLng, lng)
		maxLng = max(maxLng, lng)
		minLat = min(minLat, lat)
		maxLat = max(maxLat, lat)
	}
	return minLng, minLat, maxLng, maxLat
}

// RectangleBounds builds the closed five-point ring of the axis-aligned
// rectangle spanned by two opposite corners, ordered top-right,
// bottom-right, bottom-left, top-left, top-right.
//
// Zero-area rectangles and rectangles crossing the antimeridian are
// rejected: topRight must lie strictly north-east of bottomLeft.
func RectangleBounds(topRight, bottomLeft LatLng) (Polygon, error) {
	if err := checkRange(topRight, "topRight"); err != nil {
		return Polygon{}, err
	}
	if err := checkRange(bottomLeft, "bottomLeft"); err != nil {
		return Polygon{}, err
	}
	if topRight.Lat <= bottomLeft.Lat || topRight.Lng <= bottomLeft.Lng {
		return Polygon{}, fault.New(fault.CodeInvalidGeometry, "topRight must lie strictly north-east of bottomLeft")
	}

	ring := [][]float64{
		{topRight.Lng, topRight.Lat},
		{topRight.Lng, bottomLeft.Lat},
		{bottomLeft.Lng, bottomLeft.Lat},
		{bottomLeft.Lng, topRight.Lat},
		{topRight.Lng, topRight.Lat},
	}
	return Polygon{Type: TypePolygon, Coordinates: [][][]float64{ring}}, nil
}

// ParseLatLng parses a "lat,lng" pair.
func ParseLatLng(s string) (LatLng, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, fault.Newf(fault.CodeInvalidGeometry, "%q is not a lat,lng pair", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return LatLng{}, fault.Newf(fault.CodeInvalidGeometry, "invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return LatLng{}, fault.Newf(fault.CodeInvalidGeometry, "invalid longitude %q", lngStr)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// Contains reports whether pt lies inside the polygon ring or on its edge.
func Contains(poly Polygon, pt Point) bool {
	ring := poly.Ring()
	if len(ring) < 4 || len(pt.Coordinates) < 2 {
		return false
	}
	x, y := pt.Lng(), pt.Lat()

	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if onSegment(x, y, xi, yi, xj, yj) {
			return true
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	cross := (x-x1)*(y2-y1) - (y-y1)*(x2-x1)
	if cross != 0 {
		return false
	}
	return x >= min(x1, x2) && x <= max(x1, x2) && y >= min(y1, y2) && y <= max(y1, y2)
}

// checkRange rejects out-of-range and non-finite coordinates.
func checkRange(c LatLng, name string) error {
	if !(c.Lat >= -90 && c.Lat <= 90) {
		return fault.Newf(fault.CodeInvalidGeometry, "%s latitude %v outside [-90, 90]", name, c.Lat)
	}
	if !(c.Lng >= -180 && c.Lng <= 180) {
		return fault.Newf(fault.CodeInvalidGeometry, "%s longitude %v outside [-180, 180]", name, c.Lng)
	}
	return nil
}
