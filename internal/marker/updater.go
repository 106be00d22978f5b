// Package marker applies position samples to the map: it is the only path
// through which the marker source, its rotation and the camera change.
package marker

import (
	"context"
	"fmt"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/render"
	"github.com/arrowdash/engine/internal/style"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Camera defaults for close-in heading-up tracking.
const (
	DefaultAnimation = 600 * time.Millisecond
	TrackingZoom     = 17.5
	TrackingTilt     = 60.0
)

// Config tunes the camera pose issued with every update.
type Config struct {
	Zoom   float64
	Tilt   float64
	Follow bool
}

// DefaultConfig returns the tracking pose with the camera following.
func DefaultConfig() Config {
	return Config{Zoom: TrackingZoom, Tilt: TrackingTilt, Follow: true}
}

// Updater is the PositionUpdater. It must only be used from the render loop.
type Updater struct {
	mp     render.Map
	gate   *render.Gate
	cfg    Config
	logger zerolog.Logger

	applied metric.Int64Counter
	skipped metric.Int64Counter
}

// NewUpdater creates an Updater that writes to whatever style gate holds.
func NewUpdater(mp render.Map, gate *render.Gate, cfg Config, logger zerolog.Logger) (*Updater, error) {
	u := &Updater{
		mp:     mp,
		gate:   gate,
		cfg:    cfg,
		logger: logger.With().Str("component", "marker").Logger(),
	}

	m := meter()
	var err error
	u.applied, err = m.Int64Counter(
		"marker.updates.applied",
		metric.WithDescription("Position samples applied to the map"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}
	u.skipped, err = m.Int64Counter(
		"marker.updates.skipped",
		metric.WithDescription("Position samples dropped because the style was not ready"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	return u, nil
}

// SetFollow toggles the camera. With follow off the marker still moves but
// no camera command is issued.
func (u *Updater) SetFollow(follow bool) {
	u.cfg.Follow = follow
}

// Following reports whether updates move the camera.
func (u *Updater) Following() bool {
	return u.cfg.Follow
}

// Pose is the camera target for a sample.
func (u *Updater) Pose(s geo.Sample, d time.Duration) render.CameraPose {
	return render.CameraPose{
		Center:   s.Point,
		Zoom:     u.cfg.Zoom,
		Tilt:     u.cfg.Tilt,
		Bearing:  s.Bearing,
		Duration: d,
	}
}

// Update replaces the marker feature, rotates the marker and animates the
// camera to the sample over d. A non-positive d uses DefaultAnimation. It
// is a no-op while the style is not ready, and reports whether it applied.
func (u *Updater) Update(s geo.Sample, d time.Duration) bool {
	ctx := context.Background()

	st, ok := u.gate.Style()
	if u.mp == nil || !ok {
		u.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "not_ready")))
		u.logger.Trace().Msg("style not ready, update dropped")
		return false
	}
	if d <= 0 {
		d = DefaultAnimation
	}

	if err := st.SetSourceFeatures(style.ArrowSourceID, geo.MarkerFeatures(s.Point)); err != nil {
		u.logger.Warn().Err(err).Msg("marker source update failed")
	}
	if err := st.SetLayerProperty(style.ArrowLayerID, render.PropIconRotate, s.Bearing); err != nil {
		u.logger.Warn().Err(err).Msg("marker rotation update failed")
	}
	if u.cfg.Follow {
		u.mp.AnimateCamera(u.Pose(s, d))
	}

	u.applied.Add(ctx, 1)
	u.logger.Trace().
		Float64("lat", s.Lat).
		Float64("lon", s.Lon).
		Float64("bearing", s.Bearing).
		Msg("marker updated")
	return true
}
