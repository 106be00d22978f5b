// Package stompfeed delivers telemetry from STOMP broker destinations.
package stompfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// ErrConnectionLost is returned when the broker drops the connection.
var ErrConnectionLost = errors.New("stomp connection lost")

// Config selects the broker, credentials and destinations to follow.
type Config struct {
	Address  string
	Username string
	Password string
	// Destinations are subscribed verbatim. Each message's destination is
	// used as its topic.
	Destinations []string
}

// Feed is a telemetry.Feed subscribed to STOMP destinations.
type Feed struct {
	cfg    Config
	logger zerolog.Logger
}

var _ telemetry.Feed = (*Feed)(nil)

// New creates a feed. Each Run dials a fresh connection.
func New(cfg Config, logger zerolog.Logger) *Feed {
	return &Feed{
		cfg:    cfg,
		logger: logger.With().Str("feed", "stomp").Logger(),
	}
}

// Run connects, subscribes to every destination and delivers messages until
// ctx is cancelled or the broker goes away.
func (f *Feed) Run(ctx context.Context, deliver func(telemetry.Message)) error {
	if len(f.cfg.Destinations) == 0 {
		return errors.New("stomp feed: no destinations configured")
	}

	var opts []func(*stomp.Conn) error
	if f.cfg.Username != "" {
		opts = append(opts, stomp.ConnOpt.Login(f.cfg.Username, f.cfg.Password))
	}
	conn, err := stomp.Dial("tcp", f.cfg.Address, opts...)
	if err != nil {
		return fmt.Errorf("connecting to stomp %s: %w", f.cfg.Address, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var forwarders conc.WaitGroup
	defer forwarders.Wait()
	defer func() {
		if ctx.Err() != nil {
			_ = conn.Disconnect()
		} else {
			_ = conn.MustDisconnect()
		}
	}()
	defer cancel()

	merged := make(chan *stomp.Message)
	for _, dest := range f.cfg.Destinations {
		sub, err := conn.Subscribe(dest, stomp.AckAuto)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", dest, err)
		}
		forwarders.Go(func() {
			for {
				select {
				case msg, ok := <-sub.C:
					if !ok {
						msg = &stomp.Message{Err: errors.New("subscription closed")}
					}
					select {
					case merged <- msg:
					case <-runCtx.Done():
						return
					}
					if !ok {
						return
					}
				case <-runCtx.Done():
					return
				}
			}
		})
	}
	f.logger.Info().Strs("destinations", f.cfg.Destinations).Msg("subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			if msg.Err != nil {
				return fmt.Errorf("%w: %v", ErrConnectionLost, msg.Err)
			}
			deliver(telemetry.Message{
				Topic:    msg.Destination,
				Payload:  msg.Body,
				Received: time.Now(),
			})
		}
	}
}
