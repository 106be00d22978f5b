package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arrowdash/engine/internal/config"
	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/logging"
	"github.com/arrowdash/engine/internal/simulator"
	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/urfave/cli/v2"
)

const envKey = "environment"

func newApp() *cli.App {
	return &cli.App{
		Name:  "arrowdash",
		Usage: "headless in-vehicle map dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".", Usage: "directory containing " + config.FileName},
			&cli.IntFlag{Name: "speed-limit", Value: 50, Usage: "speed limit shown on the panel"},
			&cli.IntFlag{Name: "temperature", Value: 18, Usage: "outside temperature in °C"},
			&cli.BoolFlag{Name: "rain", Usage: "show the rain icon"},
			&cli.StringFlag{Name: "eta", Value: "--:--"},
			&cli.StringFlag{Name: "distance", Value: "-- km"},
		},
		Before: func(c *cli.Context) error {
			env, err := bootstrap(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]any{envKey: env}
			return nil
		},
		After: func(c *cli.Context) error {
			if env, ok := c.App.Metadata[envKey].(*environment); ok {
				return env.close()
			}
			return nil
		},
		Commands: []*cli.Command{
			staticCommand(),
			simulateCommand(),
			followCommand(),
		},
	}
}

func envFrom(c *cli.Context) *environment {
	return c.App.Metadata[envKey].(*environment)
}

func panelFrom(c *cli.Context) panelState {
	return panelState{
		SpeedLimit:  c.Int("speed-limit"),
		Temperature: c.Int("temperature"),
		Rain:        c.Bool("rain"),
		ETA:         c.String("eta"),
		Distance:    c.String("distance"),
	}
}

func staticCommand() *cli.Command {
	return &cli.Command{
		Name:  "static",
		Usage: "show the marker at a single position",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Value: 40.6444},
			&cli.Float64Flag{Name: "lon", Value: -8.6487},
			&cli.StringFlag{Name: "at", Usage: "position as \"lat,lon\"; overrides --lat and --lon"},
			&cli.Float64Flag{Name: "bearing", Value: 0},
			&cli.DurationFlag{Name: "hold", Usage: "keep the dashboard up this long before exiting"},
		},
		Action: func(c *cli.Context) error {
			s, err := newSession(envFrom(c).logger)
			if err != nil {
				return err
			}
			lat, lon, bearing := c.Float64("lat"), c.Float64("lon"), c.Float64("bearing")
			if at := c.String("at"); at != "" {
				p, err := geo.ParsePoint(at)
				if err != nil {
					return fmt.Errorf("--at %q: %w", at, err)
				}
				lat, lon = p.Lat, p.Lon
			}
			return s.run(c.Context, panelFrom(c),
				func() error { return s.ctl.SetSingleLocation(lat, lon, bearing) },
				func(ctx context.Context) error {
					select {
					case <-ctx.Done():
					case <-time.After(c.Duration("hold")):
					}
					return nil
				})
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "play a scripted route back",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "route", Usage: "YAML route file; the built-in demo route when empty"},
			&cli.StringFlag{Name: "points", Usage: "inline route as a JSON array of [lat,lon] pairs"},
			&cli.DurationFlag{Name: "step", Usage: "time between waypoints; overrides the route file and config"},
		},
		Action: func(c *cli.Context) error {
			logger := envFrom(c).logger

			route := simulator.DemoRoute()
			route.Step = config.GetDuration("simulation.step")
			switch {
			case c.String("route") != "":
				var err error
				if route, err = simulator.LoadRoute(c.String("route")); err != nil {
					return err
				}
			case c.String("points") != "":
				points, err := geo.ParseRoute(c.String("points"))
				if err != nil {
					return err
				}
				route = simulator.Route{Name: "inline", Step: route.Step, Points: points}
			}
			step := route.Step
			if c.IsSet("step") {
				step = c.Duration("step")
			}

			s, err := newSession(logger)
			if err != nil {
				return err
			}
			logger.Info().Str("route", route.Name).Int("points", len(route.Points)).Dur("step", step).Msg("simulating route")
			return s.run(c.Context, panelFrom(c),
				func() error { return s.ctl.SimulateRoute(route.Points, step) },
				s.waitSimulation)
		},
	}
}

func followCommand() *cli.Command {
	return &cli.Command{
		Name:  "follow",
		Usage: "drive the marker from live telemetry",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "redis, stomp or websocket; overrides telemetry.transport"},
			&cli.StringFlag{Name: "car", Usage: "only follow this car_id; overrides telemetry.carId"},
		},
		Action: func(c *cli.Context) error {
			logger := envFrom(c).logger
			tc := config.GetTelemetryConfig()
			if c.IsSet("transport") {
				tc.Transport = c.String("transport")
			}
			if c.IsSet("car") {
				config.Set("telemetry.carId", c.String("car"))
				tc.CarID = c.String("car")
			}

			feed, closeFeed, err := newFeed(tc.Transport, tc, logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeFeed() }()

			router, err := telemetry.NewRouter(logging.NewRouterLogger(logging.Sampled(logger)))
			if err != nil {
				return err
			}
			defer router.Close()

			s, err := newSession(logger)
			if err != nil {
				return err
			}
			if err := s.ctl.Register(router, tc.VehicleTopic, tc.AlertTopic); err != nil {
				return err
			}
			if strings.EqualFold(tc.Transport, "stomp") {
				for _, d := range config.GetStompConfig().Destinations {
					if !router.HasRoute(d) {
						logger.Warn().Str("destination", d).Msg("STOMP destination matches no telemetry topic, its messages will be dropped")
					}
				}
			}

			logger.Info().Str("transport", tc.Transport).Str("car", tc.CarID).Msg("following telemetry")
			return s.run(c.Context, panelFrom(c),
				func() error { s.ctl.FollowTelemetry(); return nil },
				func(ctx context.Context) error {
					err := s.ctl.Follow(ctx, feed, router)
					// Drain queued messages while the render loop still runs.
					router.Close()
					if errors.Is(err, context.Canceled) {
						return nil
					}
					if err != nil {
						return fmt.Errorf("telemetry feed: %w", err)
					}
					return nil
				})
		},
	}
}
