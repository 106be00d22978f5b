package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedPayload is returned for payloads that do not decode into the
// expected schema. Such messages are dropped whole.
var ErrMalformedPayload = errors.New("malformed telemetry payload")

var validate = validator.New()

// VehicleUpdate is the JSON body published on the vehicle topic.
// Optional fields are pointers so absence can be told apart from zero.
type VehicleUpdate struct {
	CarID      string   `json:"car_id" validate:"max=128"`
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	SpeedKmh   *float64 `json:"speed_kmh" validate:"omitempty,gte=0"`
	HeadingDeg *float64 `json:"heading_deg"`
}

// Point returns the reported position. Only valid after a successful decode.
func (u VehicleUpdate) Point() geo.Point {
	return geo.Point{Lat: *u.Latitude, Lon: *u.Longitude}
}

// DecodeVehicleUpdate parses and validates a vehicle payload.
func DecodeVehicleUpdate(payload []byte) (VehicleUpdate, error) {
	var u VehicleUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return VehicleUpdate{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(u); err != nil {
		return VehicleUpdate{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return u, nil
}

// Alert is a user-facing notification unrelated to position.
type Alert struct {
	Message string `json:"message"`
}

// DecodeAlert accepts either a JSON object with a "message" field or plain
// text. Blank alerts are rejected.
func DecodeAlert(payload []byte) (Alert, error) {
	trimmed := bytes.TrimSpace(payload)
	var a Alert
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return Alert{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	} else {
		a.Message = string(trimmed)
	}
	a.Message = strings.TrimSpace(a.Message)
	if a.Message == "" {
		return Alert{}, fmt.Errorf("%w: empty alert", ErrMalformedPayload)
	}
	return a, nil
}
