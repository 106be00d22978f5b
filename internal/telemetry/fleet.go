package telemetry

import (
	"fmt"

	"github.com/arrowdash/engine/internal/geo"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultFleetSize bounds the number of vehicles tracked by a Fleet.
const DefaultFleetSize = 64

// Fleet remembers the last sample seen per car. It is safe for concurrent use.
type Fleet struct {
	last *lru.Cache[string, geo.Sample]
}

// NewFleet creates a Fleet holding at most size vehicles.
func NewFleet(size int) (*Fleet, error) {
	if size <= 0 {
		size = DefaultFleetSize
	}
	c, err := lru.New[string, geo.Sample](size)
	if err != nil {
		return nil, fmt.Errorf("creating fleet cache: %w", err)
	}
	return &Fleet{last: c}, nil
}

// Observe turns a decoded update into a Sample and records it.
//
// A reported heading wins. Without one, the bearing is taken from the
// previous position if the car moved, otherwise the previous bearing, or 0
// for a car seen for the first time.
func (f *Fleet) Observe(u VehicleUpdate) geo.Sample {
	p := u.Point()
	prev, seen := f.last.Get(u.CarID)

	var bearing float64
	switch {
	case u.HeadingDeg != nil:
		bearing = *u.HeadingDeg
	case seen && prev.Point != p:
		bearing = geo.InitialBearing(prev.Point, p)
	case seen:
		bearing = prev.Bearing
	}

	s := geo.NewSample(p, bearing)
	f.last.Add(u.CarID, s)
	return s
}

// Last returns the most recent sample for carID.
func (f *Fleet) Last(carID string) (geo.Sample, bool) {
	return f.last.Peek(carID)
}

// Len returns the number of tracked cars.
func (f *Fleet) Len() int {
	return f.last.Len()
}
