package main

import (
	"fmt"
	"strings"

	"github.com/arrowdash/engine/internal/config"
	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/arrowdash/engine/internal/telemetry/redisfeed"
	"github.com/arrowdash/engine/internal/telemetry/stompfeed"
	"github.com/arrowdash/engine/internal/telemetry/wsfeed"
	"github.com/rs/zerolog"
)

// newFeed builds the configured transport. The returned closer releases
// any client the feed holds.
func newFeed(transport string, tc config.TelemetryConfig, logger zerolog.Logger) (telemetry.Feed, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(transport) {
	case "redis":
		rc := config.GetRedisConfig()
		f := redisfeed.New(redisfeed.Config{
			Address:  rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
			Patterns: []string{tc.VehicleTopic, tc.AlertTopic},
		}, logger)
		return f, f.Close, nil
	case "stomp":
		sc := config.GetStompConfig()
		return stompfeed.New(stompfeed.Config{
			Address:      sc.Address,
			Username:     sc.Username,
			Password:     sc.Password,
			Destinations: sc.Destinations,
		}, logger), noop, nil
	case "websocket", "ws":
		wc := config.GetWebsocketConfig()
		return wsfeed.New(wsfeed.Config{
			URL:          wc.URL,
			MaxReconnect: wc.MaxReconnect,
		}, logger), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown telemetry transport %q", transport)
	}
}
