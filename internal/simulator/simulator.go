// Package simulator plays a scripted route back as a sequence of marker
// updates on a fixed cadence.
package simulator

import (
	"sync/atomic"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/mainloop"
	"github.com/rs/zerolog"
)

// DefaultStep is the cadence used when Start is given a non-positive interval.
const DefaultStep = 1200 * time.Millisecond

// State of the simulator.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Stepper receives each simulated sample. *marker.Updater implements it.
type Stepper interface {
	Update(s geo.Sample, d time.Duration) bool
}

// playback is one scheduled run of a script. Its token is checked before
// every step, so a tick that was already queued when the playback was
// cancelled does nothing.
type playback struct {
	script    []geo.Point
	cursor    int
	interval  time.Duration
	timer     mainloop.Timer
	cancelled atomic.Bool
}

func (p *playback) cancel() {
	p.cancelled.Store(true)
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Simulator is the RouteSimulator. Start, Stop and the scheduled steps must
// all run on the render loop.
type Simulator struct {
	sched     mainloop.Scheduler
	out       Stepper
	animation time.Duration
	logger    zerolog.Logger

	active *playback
}

// New creates an idle simulator. animation is passed to every Update; zero
// lets the stepper pick its default.
func New(sched mainloop.Scheduler, out Stepper, animation time.Duration, logger zerolog.Logger) *Simulator {
	return &Simulator{
		sched:     sched,
		out:       out,
		animation: animation,
		logger:    logger.With().Str("component", "simulator").Logger(),
	}
}

// Start plays script from the beginning, replacing any running playback.
// The first point is applied before Start returns. An empty script is
// ignored.
func (s *Simulator) Start(script []geo.Point, interval time.Duration) {
	if len(script) == 0 {
		s.logger.Debug().Msg("empty route, nothing to simulate")
		return
	}
	s.Stop()

	if interval <= 0 {
		interval = DefaultStep
	}
	p := &playback{
		script:   append([]geo.Point(nil), script...),
		interval: interval,
	}
	s.active = p
	s.logger.Info().Int("points", len(p.script)).Dur("step", interval).Msg("route playback started")
	s.step(p)
}

func (s *Simulator) live(p *playback) bool {
	return s.active == p && !p.cancelled.Load()
}

func (s *Simulator) step(p *playback) {
	if !s.live(p) {
		return
	}

	i := p.cursor
	bearing := 0.0
	if i+1 < len(p.script) {
		bearing = geo.InitialBearing(p.script[i], p.script[i+1])
	}
	s.out.Update(geo.Sample{Point: p.script[i], Bearing: bearing}, s.animation)
	p.cursor++

	// the stepper may have stopped or restarted us
	if !s.live(p) {
		return
	}
	if p.cursor >= len(p.script) {
		s.active = nil
		s.logger.Info().Int("points", len(p.script)).Msg("route playback complete")
		return
	}
	p.timer = s.sched.AfterFunc(p.interval, func() { s.step(p) })
}

// Stop cancels the running playback, if any.
func (s *Simulator) Stop() {
	if s.active == nil {
		return
	}
	s.active.cancel()
	s.logger.Debug().Int("cursor", s.active.cursor).Int("points", len(s.active.script)).Msg("route playback stopped")
	s.active = nil
}

// State reports whether a playback is running.
func (s *Simulator) State() State {
	if s.active != nil {
		return Running
	}
	return Idle
}
