package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/mainloop"
	"github.com/arrowdash/engine/internal/panel"
	"github.com/arrowdash/engine/internal/render"
	"github.com/arrowdash/engine/internal/render/headless"
	"github.com/arrowdash/engine/internal/simulator"
	"github.com/arrowdash/engine/internal/style"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type fixture struct {
	mp      *headless.Map
	loop    *mainloop.Loop
	ctl     *Controller
	display *panel.LogDisplay
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	return newFixtureWithMap(t, headless.New(headless.Options{}, zerolog.Nop()), nil, mutate)
}

func newFixtureWithMap(t *testing.T, hm *headless.Map, mp render.Map, mutate func(*Config)) *fixture {
	t.Helper()
	if mp == nil {
		mp = hm
	}

	loop := mainloop.New(64, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	cfg := DefaultConfig()
	cfg.Step = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	display := panel.NewLogDisplay(zerolog.Nop())
	styles := style.New(style.DefaultConfig(), style.EmbeddedIcon(), zerolog.Nop())
	ctl, err := New(mp, loop, styles, panel.NewPresenter(display), cfg, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{mp: hm, loop: loop, ctl: ctl, display: display}
}

func (f *fixture) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), fn))
}

// ready inits the controller and loads a style.
func (f *fixture) ready(t *testing.T) int {
	t.Helper()
	calls := 0
	f.do(t, func() {
		f.ctl.Init(func() { calls++ })
		f.mp.LoadStyle()
	})
	return calls
}

func (f *fixture) marker() (geo.Point, bool) {
	s := f.mp.CurrentStyle()
	if s == nil {
		return geo.Point{}, false
	}
	fc, ok := s.Source(style.ArrowSourceID)
	if !ok {
		return geo.Point{}, false
	}
	return geo.FeaturePoint(fc)
}

func (f *fixture) simState(t *testing.T) simulator.State {
	var st simulator.State
	f.do(t, func() { st = f.ctl.SimulationState() })
	return st
}

func TestInit_InstallsMarkerAndSignalsReady(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, render.NotReady, f.ctl.Ready())
	assert.Equal(t, 1, f.ready(t))
	assert.Equal(t, render.Ready, f.ctl.Ready())

	s := f.mp.CurrentStyle()
	assert.True(t, s.HasSource(style.ArrowSourceID))
	assert.True(t, s.HasImage(style.ArrowImageID))
}

func TestInit_StyleReload(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	f.do(t, func() {
		f.ctl.Init(func() { calls++ })
		f.mp.LoadStyle()
		f.mp.LoadStyle()
		require.NoError(t, f.ctl.SetSingleLocation(40.6444, -8.6487, 0))
	})

	assert.Equal(t, 2, calls)
	p, ok := f.marker()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 40.6444, Lon: -8.6487}, p)
}

type brokenStyle struct{ render.Style }

func (brokenStyle) AddSource(string, geom.GeoJSONFeatureCollection) error {
	return errors.New("sources are locked")
}

type brokenMap struct{ *headless.Map }

func (b brokenMap) OnStyleReady(fn func(render.Style)) {
	b.Map.OnStyleReady(func(s render.Style) { fn(brokenStyle{s}) })
}

func TestInit_SetupFailureKeepsGateClosed(t *testing.T) {
	hm := headless.New(headless.Options{}, zerolog.Nop())
	f := newFixtureWithMap(t, hm, brokenMap{hm}, nil)

	assert.Zero(t, f.ready(t))
	assert.Equal(t, render.NotReady, f.ctl.Ready())

	f.do(t, func() { require.NoError(t, f.ctl.SetSingleLocation(1, 2, 0)) })
	_, calls := hm.Camera()
	assert.Zero(t, calls)
}

func TestSetSingleLocation_BeforeReadyIsNoop(t *testing.T) {
	f := newFixture(t, nil)

	f.do(t, func() { require.NoError(t, f.ctl.SetSingleLocation(40.6444, -8.6487, 45)) })

	_, calls := f.mp.Camera()
	assert.Zero(t, calls)
	assert.Equal(t, ModeStatic, f.ctl.Mode())
}

func TestSetSingleLocation_Applies(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	f.do(t, func() { require.NoError(t, f.ctl.SetSingleLocation(40.6444, -8.6487, -90)) })

	p, ok := f.marker()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 40.6444, Lon: -8.6487}, p)

	rot, _ := f.mp.CurrentStyle().LayerProperty(style.ArrowLayerID, render.PropIconRotate)
	assert.Equal(t, 270.0, rot)

	pose, calls := f.mp.Camera()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 270.0, pose.Bearing)
	assert.Equal(t, 600*time.Millisecond, pose.Duration)
}

func TestSetSingleLocation_Invalid(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	var err error
	f.do(t, func() { err = f.ctl.SetSingleLocation(120, 0, 0) })
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestSetSingleLocation_StopsSimulation(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	route := simulator.DemoRoute().Points
	f.do(t, func() {
		require.NoError(t, f.ctl.SimulateRoute(route, 20*time.Millisecond))
		require.NoError(t, f.ctl.SetSingleLocation(1, 2, 0))
	})

	time.Sleep(100 * time.Millisecond)

	p, ok := f.marker()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lon: 2}, p, "no stale step overwrote the static position")
	assert.Equal(t, simulator.Idle, f.simState(t))
}

func TestSimulateRoute_PlaysToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	route := []geo.Point{{Lat: 40.6432, Lon: -8.6468}, {Lat: 40.6433, Lon: -8.6467}, {Lat: 40.6434, Lon: -8.6466}}
	f.do(t, func() { require.NoError(t, f.ctl.SimulateRoute(route, 0)) })

	assert.Eventually(t, func() bool { return f.simState(t) == simulator.Idle }, waitFor, 5*time.Millisecond)

	p, ok := f.marker()
	require.True(t, ok)
	assert.Equal(t, route[2], p)

	pose, calls := f.mp.Camera()
	assert.Equal(t, 3, calls)
	assert.Zero(t, pose.Bearing, "terminal point faces north")
	assert.Equal(t, ModeSimulation, f.ctl.Mode())
}

func TestSimulateRoute_InvalidPoint(t *testing.T) {
	f := newFixture(t, nil)

	var err error
	f.do(t, func() { err = f.ctl.SimulateRoute([]geo.Point{{Lat: 0, Lon: 0}, {Lat: 91, Lon: 0}}, 0) })

	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
	assert.Equal(t, ModeIdle, f.ctl.Mode())
}

func TestFollowTelemetry_StopsSimulation(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	f.do(t, func() {
		require.NoError(t, f.ctl.SimulateRoute(simulator.DemoRoute().Points, 20*time.Millisecond))
		f.ctl.FollowTelemetry()
	})

	assert.Equal(t, simulator.Idle, f.simState(t))
	assert.Equal(t, ModeTelemetry, f.ctl.Mode())
}

func TestApplyTelemetry_OnlyInTelemetryMode(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	var applied bool
	f.do(t, func() { applied = f.ctl.ApplyTelemetry(geo.NewSample(geo.Point{Lat: 1, Lon: 1}, 0)) })
	assert.False(t, applied)

	f.do(t, func() {
		f.ctl.FollowTelemetry()
		applied = f.ctl.ApplyTelemetry(geo.NewSample(geo.Point{Lat: 1, Lon: 1}, 0))
	})
	assert.True(t, applied)
}

func TestSetFollowCamera(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	f.do(t, func() {
		f.ctl.SetFollowCamera(false)
		require.NoError(t, f.ctl.SetSingleLocation(1, 2, 0))
	})

	_, calls := f.mp.Camera()
	assert.Zero(t, calls)
	assert.False(t, f.ctl.FollowCamera())

	p, ok := f.marker()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lon: 2}, p, "marker still moves")
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.ready(t)

	f.do(t, func() {
		f.ctl.Start()
		f.ctl.Resume()
		require.NoError(t, f.ctl.SimulateRoute(simulator.DemoRoute().Points, 20*time.Millisecond))
		f.ctl.Pause()
		f.ctl.Stop()
		f.ctl.Destroy()
	})

	assert.Equal(t, []string{"start", "resume", "pause", "stop", "destroy"}, f.mp.Lifecycle())
	assert.Equal(t, simulator.Idle, f.simState(t))
	assert.Equal(t, render.NotReady, f.ctl.Ready())
	assert.Equal(t, ModeIdle, f.ctl.Mode())

	_, before := f.mp.Camera()
	time.Sleep(60 * time.Millisecond)
	_, after := f.mp.Camera()
	assert.Equal(t, before, after, "no step fires after destroy")
}
