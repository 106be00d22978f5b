// Package wsfeed delivers telemetry frames from a WebSocket endpoint.
//
// Each text frame is an envelope:
//
//	{"topic": "vehicles/car-1", "payload": {...}}
//
// A string payload is unquoted before delivery so alert text arrives as-is.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/arrowdash/engine/internal/telemetry"
	"github.com/cenkalti/backoff/v4"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultMaxReconnect = 10
	defaultMaxBackoff   = 30 * time.Second
	handshakeTimeout    = 10 * time.Second
)

// Envelope is the frame format read from the socket.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Config selects the stream URL and the reconnect policy.
type Config struct {
	URL string
	// Header is sent with every handshake, e.g. for an auth token.
	Header http.Header
	// MaxReconnect bounds consecutive failed dials. Zero uses the default.
	MaxReconnect int
	// InitialBackoff and MaxBackoff shape the exponential reconnect delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Feed is a telemetry.Feed reading envelopes from a WebSocket.
type Feed struct {
	cfg    Config
	dialer *ws.Dialer
	logger zerolog.Logger
}

var _ telemetry.Feed = (*Feed)(nil)

// New creates a feed, filling reconnect defaults for zero values.
func New(cfg Config, logger zerolog.Logger) *Feed {
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = defaultMaxReconnect
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Feed{
		cfg:    cfg,
		dialer: &ws.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger: logger.With().Str("feed", "websocket").Logger(),
	}
}

// Run reads frames until ctx is cancelled. A dropped connection is redialed
// with exponential backoff; Run gives up after MaxReconnect consecutive
// failures and returns the last error.
func (f *Feed) Run(ctx context.Context, deliver func(telemetry.Message)) error {
	if _, err := url.Parse(f.cfg.URL); err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.cfg.InitialBackoff
	exp.MaxInterval = f.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithMaxRetries(exp, uint64(f.cfg.MaxReconnect))

	attempt := 0
	op := func() error {
		attempt++
		conn, err := f.dialOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		f.logger.Info().Int("attempt", attempt).Str("url", f.cfg.URL).Msg("WebSocket connected")
		attempt = 0
		policy.Reset()

		err = f.readLoop(ctx, conn, deliver)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn().Err(err).Dur("backoff", wait).Msg("Reconnecting to WebSocket")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify)
	if ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err())) {
		return nil
	}
	if err != nil {
		f.logger.Error().Err(err).Int("maxAttempts", f.cfg.MaxReconnect).Msg("WebSocket reconnect failed after max attempts")
	}
	return err
}

func (f *Feed) dialOnce(ctx context.Context) (*ws.Conn, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, f.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// readLoop returns when the connection fails or ctx is cancelled.
func (f *Feed) readLoop(ctx context.Context, conn *ws.Conn, deliver func(telemetry.Message)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}

		msg, err := decodeFrame(data, time.Now())
		if err != nil {
			f.logger.Debug().Err(err).Str("raw", string(data)).Msg("Non-telemetry frame received")
			continue
		}
		deliver(msg)
	}
}

func decodeFrame(data []byte, received time.Time) (telemetry.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return telemetry.Message{}, err
	}
	if env.Topic == "" {
		return telemetry.Message{}, errors.New("frame has no topic")
	}

	payload := []byte(env.Payload)
	var text string
	if len(payload) > 0 && payload[0] == '"' && json.Unmarshal(payload, &text) == nil {
		payload = []byte(text)
	}
	return telemetry.Message{Topic: env.Topic, Payload: payload, Received: received}, nil
}
