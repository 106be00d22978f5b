package main

import (
	"context"
	"time"

	"github.com/arrowdash/engine/internal/config"
	"github.com/arrowdash/engine/internal/dashboard"
	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/mainloop"
	"github.com/arrowdash/engine/internal/marker"
	"github.com/arrowdash/engine/internal/panel"
	"github.com/arrowdash/engine/internal/render/headless"
	"github.com/arrowdash/engine/internal/simulator"
	"github.com/arrowdash/engine/internal/style"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

const teardownTimeout = 5 * time.Second

// panelState is the static panel content set at startup.
type panelState struct {
	SpeedLimit  int
	Temperature int
	Rain        bool
	ETA         string
	Distance    string
}

// session hosts one dashboard on a headless renderer.
type session struct {
	logger    zerolog.Logger
	mp        *headless.Map
	loop      *mainloop.Loop
	ctl       *dashboard.Controller
	display   *panel.LogDisplay
	presenter *panel.Presenter
}

func newSession(logger zerolog.Logger) (*session, error) {
	mc := config.GetMapConfig()
	tc := config.GetTelemetryConfig()

	mp := headless.New(headless.Options{Density: mc.Density}, logger)
	loop := mainloop.New(tc.QueueSize, logger)
	display := panel.NewLogDisplay(logger)
	presenter := panel.NewPresenter(display)

	styles := style.New(style.Config{
		PanelWidthDP: mc.PanelWidthDP,
		IconSize:     mc.IconSize,
		RoadLayers:   mc.RoadLayers,
		RoadColor:    mc.RoadColor,
		RoadWidth:    mc.RoadWidth,
	}, style.EmbeddedIcon(), logger)

	ctl, err := dashboard.New(mp, loop, styles, presenter, dashboard.Config{
		Marker:    marker.Config{Zoom: mc.Zoom, Tilt: mc.Tilt, Follow: mc.FollowCamera},
		Animation: mc.Animation,
		Step:      config.GetDuration("simulation.step"),
		CarID:     tc.CarID,
		FleetSize: tc.FleetSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &session{
		logger:    logger,
		mp:        mp,
		loop:      loop,
		ctl:       ctl,
		display:   display,
		presenter: presenter,
	}, nil
}

// run starts the render loop, loads the style and calls onReady on the loop
// once the marker is installed. work then runs on the calling goroutine;
// when it returns the dashboard is torn down and the loop stopped.
func (s *session) run(ctx context.Context, ps panelState, onReady func() error, work func(ctx context.Context) error) error {
	var wg conc.WaitGroup
	defer wg.Wait()

	// The loop outlives ctx so teardown can still run on it after a signal.
	wg.Go(func() {
		if err := s.loop.Run(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("render loop stopped")
		}
	})

	var readyErr error
	err := s.loop.Do(ctx, func() {
		s.ctl.Init(func() {
			if onReady != nil {
				readyErr = onReady()
			}
		})
		s.ctl.Start()
		s.ctl.Resume()
		s.presenter.UpdateSpeedLimit(ps.SpeedLimit)
		s.presenter.UpdateTemperature(ps.Temperature)
		s.presenter.UpdateWeatherIcon(ps.Rain)
		s.presenter.UpdateEtaAndDistance(ps.ETA, ps.Distance)
		s.mp.LoadStyle()
	})
	if err == nil {
		err = readyErr
	}
	if err == nil && work != nil {
		err = work(ctx)
	}

	s.teardown()
	return err
}

func (s *session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	err := s.loop.Do(ctx, func() {
		s.summary()
		s.ctl.Pause()
		s.ctl.Stop()
		s.ctl.Destroy()
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("teardown incomplete")
	}
	s.loop.Close()
}

// summary logs where the marker ended up. Runs on the loop.
func (s *session) summary() {
	ev := s.logger.Info().
		Stringer("mode", s.ctl.Mode()).
		Int("vehicles", s.ctl.Fleet().Len()).
		Stringer("style", s.ctl.Ready()).
		Str("speed", s.display.Text(panel.CurrentSpeed))

	if st := s.mp.CurrentStyle(); st != nil {
		if fc, ok := st.Source(style.ArrowSourceID); ok {
			if p, ok := geo.FeaturePoint(fc); ok {
				ev = ev.Float64("lat", p.Lat).Float64("lon", p.Lon)
			}
		}
	}
	pose, moves := s.mp.Camera()
	ev.Float64("bearing", pose.Bearing).Int("cameraMoves", moves).Msg("session summary")
}

// waitSimulation blocks until playback finishes or ctx is done.
func (s *session) waitSimulation(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var running bool
			if err := s.loop.Do(ctx, func() { running = s.ctl.SimulationState() == simulator.Running }); err != nil {
				return nil
			}
			if !running {
				return nil
			}
		}
	}
}
