package telemetry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNoRoute is returned by Route when no pattern matches the topic.
	ErrNoRoute = errors.New("no route for topic")
	// ErrQueueFull is returned when a non-blocking buffered route drops a message.
	ErrQueueFull = errors.New("route queue full")
	// ErrRouterClosed is returned by Route after Close.
	ErrRouterClosed = errors.New("router closed")
)

// Message is a raw message received from a feed.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// HandlerFunc consumes one message.
type HandlerFunc func(Message) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures route registration.
type Option func(*routeConfig)

type routeConfig struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *routeConfig) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *routeConfig) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *routeConfig) {
		c.logged = true
	}
}

type route struct {
	pattern string
	handler HandlerFunc
}

// Router delivers feed messages to the first registered route whose topic
// pattern matches. Patterns use path.Match syntax, e.g. "vehicles/*".
type Router struct {
	logger Logger

	routesMu sync.RWMutex
	routes   []route

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	rejected  metric.Int64Counter

	mu      sync.RWMutex
	closed  bool
	buffers map[string]chan Message
	workers sync.WaitGroup
}

// NewRouter creates a Router using the global OTel meter for metrics.
func NewRouter(logger Logger) (*Router, error) {
	r := &Router{
		logger:  logger,
		buffers: make(map[string]chan Message),
	}

	m := meter()

	var err error

	r.queueSize, err = m.Int64ObservableGauge(
		"telemetry.queue.size",
		metric.WithDescription("Current number of messages waiting per route"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			for pattern, buf := range r.buffers {
				o.ObserveInt64(r.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("route", pattern)))
			}
			return nil
		},
		r.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	r.processed, err = m.Int64Counter(
		"telemetry.messages.processed",
		metric.WithDescription("Total messages handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	r.dropped, err = m.Int64Counter(
		"telemetry.messages.dropped",
		metric.WithDescription("Total messages dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	r.rejected, err = m.Int64Counter(
		"telemetry.payloads.rejected",
		metric.WithDescription("Total messages whose payload failed to decode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	return r, nil
}

// Register adds a handler for topics matching pattern.
func (r *Router) Register(pattern string, h HandlerFunc, opts ...Option) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid topic pattern %q: %w", pattern, err)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRouterClosed
	}

	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := r.withMetrics(pattern, h)

	if cfg.logged {
		handler = r.withLogging(pattern, handler)
	}

	if cfg.bufferSize > 0 {
		handler = r.withBuffer(pattern, cfg.bufferSize, cfg.blocking, handler)
	}

	r.routesMu.Lock()
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
	r.routesMu.Unlock()
	return nil
}

// Route delivers m to its handler. With a buffered route the error only
// reports whether the message was queued.
func (r *Router) Route(m Message) error {
	h, ok := r.match(m.Topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, m.Topic)
	}
	return h(m)
}

// HasRoute returns true if some pattern matches topic.
func (r *Router) HasRoute(topic string) bool {
	_, ok := r.match(topic)
	return ok
}

func (r *Router) match(topic string) (HandlerFunc, bool) {
	r.routesMu.RLock()
	defer r.routesMu.RUnlock()
	for _, rt := range r.routes {
		if ok, _ := path.Match(rt.pattern, topic); ok {
			return rt.handler, true
		}
	}
	return nil, false
}

// Close stops accepting messages and waits for buffered routes to drain.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, buf := range r.buffers {
		close(buf)
	}
	r.mu.Unlock()

	r.workers.Wait()
}

func (r *Router) withMetrics(pattern string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("route", pattern))
	return func(m Message) error {
		err := h(m)
		switch {
		case errors.Is(err, ErrMalformedPayload):
			r.rejected.Add(context.Background(), 1, attrs)
		case errors.Is(err, ErrQueueFull):
			r.dropped.Add(context.Background(), 1, attrs)
		}
		r.processed.Add(context.Background(), 1, attrs)
		return err
	}
}

func (r *Router) withBuffer(pattern string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Message, size)

	r.mu.Lock()
	r.buffers[pattern] = buffer
	r.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("route", pattern))

	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		for m := range buffer {
			_ = h(m)
		}
	}()

	return func(m Message) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.closed {
			return ErrRouterClosed
		}

		if blocking {
			buffer <- m
			return nil
		}

		select {
		case buffer <- m:
			return nil
		default:
			r.dropped.Add(context.Background(), 1, attrs)
			return fmt.Errorf("%w: %s", ErrQueueFull, pattern)
		}
	}
}

func (r *Router) withLogging(pattern string, h HandlerFunc) HandlerFunc {
	return func(m Message) error {
		start := time.Now()
		r.logger.Debug("handling message", "route", pattern, "topic", m.Topic, "bytes", len(m.Payload))

		err := h(m)

		if err != nil {
			r.logger.Error("message failed", "route", pattern, "topic", m.Topic, "duration", time.Since(start), "error", err)
		} else {
			r.logger.Debug("message complete", "route", pattern, "topic", m.Topic, "duration", time.Since(start))
		}

		return err
	}
}
