// Package dashboard is the map controller of the in-vehicle display. It
// decides which source drives the marker and forwards host lifecycle events
// to the renderer.
//
// Every Controller method except the intake handlers must run on the render
// loop.
package dashboard

import (
	"fmt"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/mainloop"
	"github.com/arrowdash/engine/internal/marker"
	"github.com/arrowdash/engine/internal/panel"
	"github.com/arrowdash/engine/internal/render"
	"github.com/arrowdash/engine/internal/simulator"
	"github.com/arrowdash/engine/internal/style"
	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/rs/zerolog"
)

// Mode is the current marker source.
type Mode int

const (
	ModeIdle Mode = iota
	ModeStatic
	ModeSimulation
	ModeTelemetry
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeSimulation:
		return "simulation"
	case ModeTelemetry:
		return "telemetry"
	default:
		return "idle"
	}
}

// alertQueueSize bounds alerts waiting for the render loop.
const alertQueueSize = 16

// Config holds the controller settings.
type Config struct {
	Marker    marker.Config
	Animation time.Duration
	// Step is the simulation cadence used when SimulateRoute gets none.
	Step time.Duration
	// CarID restricts telemetry to one vehicle; empty follows any.
	CarID     string
	FleetSize int
	// QueueSize bounds vehicle messages waiting to be decoded. Messages
	// beyond it are dropped.
	QueueSize int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Marker:    marker.DefaultConfig(),
		Animation: marker.DefaultAnimation,
		Step:      simulator.DefaultStep,
		FleetSize: telemetry.DefaultFleetSize,
		QueueSize: mainloop.DefaultQueueSize,
	}
}

// Controller drives the marker from a static location, a simulated route
// or live telemetry. Apart from Register and Follow, its methods must run
// on the render loop.
type Controller struct {
	mp        render.Map
	loop      *mainloop.Loop
	gate      *render.Gate
	styles    *style.Manager
	updater   *marker.Updater
	sim       *simulator.Simulator
	fleet     *telemetry.Fleet
	presenter *panel.Presenter
	cfg       Config
	logger    zerolog.Logger

	mode Mode
}

// New builds a controller for mp. Nothing touches the renderer until Init.
func New(mp render.Map, loop *mainloop.Loop, styles *style.Manager, presenter *panel.Presenter, cfg Config, logger zerolog.Logger) (*Controller, error) {
	logger = logger.With().Str("component", "dashboard").Logger()

	gate := render.NewGate()
	updater, err := marker.NewUpdater(mp, gate, cfg.Marker, logger)
	if err != nil {
		return nil, fmt.Errorf("creating marker updater: %w", err)
	}
	fleet, err := telemetry.NewFleet(cfg.FleetSize)
	if err != nil {
		return nil, err
	}

	return &Controller{
		mp:        mp,
		loop:      loop,
		gate:      gate,
		styles:    styles,
		updater:   updater,
		sim:       simulator.New(loop, updater, cfg.Animation, logger),
		fleet:     fleet,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Init installs the marker whenever the renderer reports a loaded style and
// calls onReady after each successful setup. A failed setup leaves updates
// disabled until the next style load.
func (c *Controller) Init(onReady func()) {
	c.mp.OnStyleReady(func(s render.Style) {
		c.gate.Close()
		if err := c.styles.Setup(c.mp, s); err != nil {
			c.logger.Error().Err(err).Msg("style setup failed, marker disabled")
			return
		}
		c.gate.Open(s)
		c.logger.Info().Msg("style ready")
		if onReady != nil {
			onReady()
		}
	})
}

// SetSingleLocation stops any simulation and shows the marker at one fixed
// position.
func (c *Controller) SetSingleLocation(lat, lon, bearing float64) error {
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return fmt.Errorf("single location (%v,%v): %w", lat, lon, geo.ErrInvalidCoordinates)
	}
	c.sim.Stop()
	c.setMode(ModeStatic)
	c.updater.Update(geo.NewSample(p, bearing), c.cfg.Animation)
	return nil
}

// SimulateRoute plays route back, replacing any running playback. A
// non-positive interval uses the configured step.
func (c *Controller) SimulateRoute(route []geo.Point, interval time.Duration) error {
	for i, p := range route {
		if !p.Valid() {
			return fmt.Errorf("route point %d: %w", i, geo.ErrInvalidCoordinates)
		}
	}
	if len(route) == 0 {
		return nil
	}
	if interval <= 0 {
		interval = c.cfg.Step
	}
	c.setMode(ModeSimulation)
	c.sim.Start(route, interval)
	return nil
}

// FollowTelemetry stops any simulation and lets telemetry drive the marker.
func (c *Controller) FollowTelemetry() {
	c.sim.Stop()
	c.setMode(ModeTelemetry)
}

// ApplyTelemetry moves the marker to s if telemetry is the active source.
func (c *Controller) ApplyTelemetry(s geo.Sample) bool {
	if c.mode != ModeTelemetry {
		c.logger.Debug().Stringer("mode", c.mode).Msg("telemetry sample ignored")
		return false
	}
	return c.updater.Update(s, c.cfg.Animation)
}

// SetFollowCamera toggles the heading-up camera.
func (c *Controller) SetFollowCamera(follow bool) {
	c.updater.SetFollow(follow)
	c.logger.Info().Bool("follow", follow).Msg("camera follow toggled")
}

func (c *Controller) FollowCamera() bool {
	return c.updater.Following()
}

func (c *Controller) Mode() Mode {
	return c.mode
}

func (c *Controller) SimulationState() simulator.State {
	return c.sim.State()
}

// Ready reports whether the marker can currently be updated.
func (c *Controller) Ready() render.Readiness {
	return c.gate.State()
}

// Fleet returns the last-known position cache fed by telemetry.
func (c *Controller) Fleet() *telemetry.Fleet {
	return c.fleet
}

func (c *Controller) setMode(m Mode) {
	if c.mode != m {
		c.logger.Debug().Stringer("from", c.mode).Stringer("to", m).Msg("mode changed")
	}
	c.mode = m
}

func (c *Controller) Start()  { c.mp.Start() }
func (c *Controller) Resume() { c.mp.Resume() }
func (c *Controller) Pause()  { c.mp.Pause() }
func (c *Controller) Stop()   { c.mp.Stop() }

// Destroy stops playback before tearing the renderer down so no scheduled
// step outlives it.
func (c *Controller) Destroy() {
	c.sim.Stop()
	c.gate.Close()
	c.setMode(ModeIdle)
	c.mp.Destroy()
}
