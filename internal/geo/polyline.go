package geo

import (
	"encoding/json"
	"fmt"
)

// ParseRoute parses a JSON array of [lat,lon] pairs into an ordered route.
// Input format: "[[lat1,lon1],[lat2,lon2],...]"
func ParseRoute(input string) ([]Point, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse route JSON: %w", err)
	}

	route := make([]Point, 0, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		p := Point{Lat: coord[0], Lon: coord[1]}
		if !p.Valid() {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		route = append(route, p)
	}

	return route, nil
}
