// Package mainloop is the single logical render thread. Every renderer and
// marker mutation runs as a task on one goroutine; other goroutines hand
// work over with Post or TryPost.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when posting to a loop that has been closed.
	ErrClosed = errors.New("render loop closed")
	// ErrFull is returned by TryPost when the task queue is at capacity.
	ErrFull = errors.New("render loop queue full")
	// ErrRunning is returned when Run is called on a loop that is already running.
	ErrRunning = errors.New("render loop already running")
)

// DefaultQueueSize bounds the number of pending tasks.
const DefaultQueueSize = 256

// Timer is a pending scheduled task.
type Timer interface {
	// Stop prevents the task from being posted; it reports whether the
	// timer was still pending.
	Stop() bool
}

// Scheduler runs f on the render loop after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Loop owns the render thread.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	logger    zerolog.Logger
}

// New creates a loop with a bounded task queue.
func New(size int, logger zerolog.Logger) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		tasks:  newQueue(size),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "mainloop").Logger(),
	}
}

// Run executes tasks in submission order until ctx is cancelled or the loop
// is closed. It returns nil on Close and ctx.Err() on cancellation. Either
// way the loop is closed on return, so pending posts and timers give up.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Str("panic", fmt.Sprint(r)).Msg("render task panicked")
		}
	}()
	fn()
}

// Post queues fn, blocking while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// TryPost queues fn without blocking.
func (l *Loop) TryPost(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	default:
		return ErrFull
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// AfterFunc implements Scheduler. The task is posted to the loop when the
// timer fires; a closed loop silently discards it.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() {
		if err := l.Post(f); err != nil {
			l.logger.Debug().Err(err).Msg("scheduled task discarded")
		}
	})
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	return len(l.tasks)
}

// Close stops the loop. Queued tasks that have not started are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
