package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/arrowdash/engine/internal/mainloop"
	"github.com/arrowdash/engine/internal/panel"
	"github.com/arrowdash/engine/internal/telemetry"
)

// Register wires the vehicle and alert topic patterns into r. Both routes
// are buffered so the feed goroutine never waits on decoding: payloads are
// decoded on the route worker and only the result crosses onto the render
// loop. Vehicle messages are dropped when their queue is full; alerts wait.
func (c *Controller) Register(r *telemetry.Router, vehicles, alerts string) error {
	size := c.cfg.QueueSize
	if size <= 0 {
		size = mainloop.DefaultQueueSize
	}
	if err := r.Register(vehicles, c.handleVehicle, telemetry.Buffered(size), telemetry.Logged()); err != nil {
		return err
	}
	return r.Register(alerts, c.handleAlert, telemetry.Buffered(alertQueueSize), telemetry.Blocking(), telemetry.Logged())
}

func (c *Controller) handleVehicle(m telemetry.Message) error {
	u, err := telemetry.DecodeVehicleUpdate(m.Payload)
	if err != nil {
		return err
	}
	if c.cfg.CarID != "" && u.CarID != c.cfg.CarID {
		return nil
	}

	s := c.fleet.Observe(u)
	speed := u.SpeedKmh
	err = c.loop.TryPost(func() {
		if c.ApplyTelemetry(s) && speed != nil {
			c.presenter.UpdateCurrentSpeed(panel.RoundSpeed(*speed))
		}
	})
	if errors.Is(err, mainloop.ErrFull) {
		return fmt.Errorf("%w: render loop", telemetry.ErrQueueFull)
	}
	return err
}

func (c *Controller) handleAlert(m telemetry.Message) error {
	a, err := telemetry.DecodeAlert(m.Payload)
	if err != nil {
		return err
	}
	return c.loop.Post(func() { c.presenter.ShowStatus(a.Message) })
}

// Follow runs feed until ctx is cancelled, routing every message through r.
// A feed failure is shown on the panel and returned.
func (c *Controller) Follow(ctx context.Context, feed telemetry.Feed, r *telemetry.Router) error {
	err := feed.Run(ctx, func(m telemetry.Message) {
		if err := r.Route(m); err != nil {
			c.logger.Debug().Err(err).Str("topic", m.Topic).Msg("telemetry message dropped")
		}
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Error().Err(err).Msg("telemetry feed failed")
		c.report("Telemetry unavailable: " + err.Error())
	}
	return err
}

func (c *Controller) report(msg string) {
	if err := c.loop.Post(func() { c.presenter.ShowStatus(msg) }); err != nil {
		c.logger.Debug().Err(err).Msg("status not shown")
	}
}
