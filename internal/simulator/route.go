package simulator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"gopkg.in/yaml.v3"
)

// Route is a named script as stored in a route file:
//
//	name: aveiro
//	step: 1200ms
//	points:
//	  - {lat: 40.64325, lon: -8.64680}
type Route struct {
	Name   string        `yaml:"name"`
	Step   time.Duration `yaml:"step"`
	Points []geo.Point   `yaml:"points"`
}

// LoadRoute reads a YAML route file and validates every point.
func LoadRoute(path string) (Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Route{}, fmt.Errorf("reading route file: %w", err)
	}
	return ParseRoute(data)
}

// ParseRoute decodes a YAML route. A route needs at least one point, every
// point must be valid and the step may not be negative.
func ParseRoute(data []byte) (Route, error) {
	var r Route
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Route{}, fmt.Errorf("parsing route: %w", err)
	}
	if len(r.Points) == 0 {
		return Route{}, errors.New("route has no points")
	}
	for i, p := range r.Points {
		if !p.Valid() {
			return Route{}, fmt.Errorf("point %d (%v,%v): %w", i, p.Lat, p.Lon, geo.ErrInvalidCoordinates)
		}
	}
	if r.Step < 0 {
		return Route{}, fmt.Errorf("negative step %s", r.Step)
	}
	return r, nil
}

// DemoRoute is a short drive north-east through Aveiro.
func DemoRoute() Route {
	points := make([]geo.Point, 20)
	for i := range points {
		points[i] = geo.Point{
			Lat: 40.64325 + float64(i)*0.00005,
			Lon: -8.64680 + float64(i)*0.0001,
		}
	}
	return Route{Name: "aveiro-demo", Step: DefaultStep, Points: points}
}
