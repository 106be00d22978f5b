// Package geo holds the geographic value types shared by the marker engine
// and the math that turns consecutive points into a heading.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when a latitude or longitude is missing,
// unparseable or out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point is an immutable WGS84 position.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the point is finite and inside [-90,90] x [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Sample is one rendered marker pose.
type Sample struct {
	Point
	Bearing float64 `json:"bearing"`
}

// NewSample builds a sample with its bearing normalized into [0,360).
func NewSample(p Point, bearing float64) Sample {
	return Sample{Point: p, Bearing: NormalizeBearing(bearing)}
}

// InitialBearing returns the forward azimuth from one point to another in
// degrees clockwise from true north, in [0,360). Identical points yield 0.
func InitialBearing(from, to Point) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLon := toRadians(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	raw := toDegrees(math.Atan2(y, x))
	return NormalizeBearing(raw)
}

// NormalizeBearing folds any finite angle into [0,360). Non-finite input
// maps to 0.
func NormalizeBearing(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	b := math.Mod(deg+360, 360)
	if b < 0 {
		b += 360
	}
	// -1e-15 + 360 rounds to 360
	if b >= 360 {
		b = 0
	}
	return b
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// ParsePoint parses a "lat,lon" string.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, ErrInvalidCoordinates
	}
	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, ErrInvalidCoordinates
	}
	return p, nil
}

// MarkerFeatures returns the single-feature collection the marker source
// holds for p. GeoJSON order is lon,lat.
func MarkerFeatures(p Point) geom.GeoJSONFeatureCollection {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.Lon, Y: p.Lat},
		Type: geom.DimXY,
	})
	if err != nil {
		pt = geom.NewEmptyPoint(geom.DimXY)
	}
	return geom.GeoJSONFeatureCollection{
		{Geometry: pt.AsGeometry(), Properties: map[string]any{}},
	}
}

// FeaturePoint extracts the position of the first point feature in fc.
func FeaturePoint(fc geom.GeoJSONFeatureCollection) (Point, bool) {
	if len(fc) == 0 {
		return Point{}, false
	}
	pt, ok := fc[0].Geometry.AsPoint()
	if !ok {
		return Point{}, false
	}
	xy, ok := pt.XY()
	if !ok {
		return Point{}, false
	}
	return Point{Lat: xy.Y, Lon: xy.X}, true
}

// WebMercator projects p to EPSG:3857 metres.
func WebMercator(p Point) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(p.Lon, p.Lat, 0)
	return x, y
}
