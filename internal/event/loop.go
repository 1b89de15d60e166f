package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is used when NewLoop is given a non-positive size.
const DefaultQueueSize = 256

// Logger is the optional logging dependency of the loop.
type Logger interface {
	Error(msg string, args ...any)
}

// Loop runs posted callbacks on a single goroutine in arrival order.
type Loop struct {
	queue chan func()

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	running atomic.Bool
	handled atomic.Uint64
	panics  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewLoop creates a loop whose queue holds size pending callbacks.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// SetLogger sets the logger used to report callback panics.
func (l *Loop) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// Post queues fn for execution on the loop. It blocks while the queue is
// full and returns false once the loop has stopped.
//
// Safe to call from any goroutine, including from a callback, but a
// callback that posts into a full queue deadlocks; keep the queue larger
// than the number of event sources.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do posts fn and waits for it to finish. It must not be called from a
// callback already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes callbacks until ctx is cancelled or Stop is called.
// Callbacks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			l.dispatch(fn)
		}
	}
}

// dispatch runs one callback; a panic is logged and the loop carries on.
func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.loggerMu.RLock()
			logger := l.logger
			l.loggerMu.RUnlock()
			if logger != nil {
				logger.Error("event loop callback panic", "error", fmt.Errorf("%v", r))
			}
		}
	}()
	l.handled.Add(1)
	fn()
}

// Every posts fn every d until ctx is cancelled or the loop stops.
// A tick is skipped, not queued twice, if the previous one has not run yet.
func (l *Loop) Every(ctx context.Context, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		var inflight atomic.Bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case <-ticker.C:
				if !inflight.CompareAndSwap(false, true) {
					continue
				}
				if !l.Post(func() {
					defer inflight.Store(false)
					fn()
				}) {
					return
				}
			}
		}
	}()
}

// Stop ends Run and every Every ticker. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Running reports whether Run is executing.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Stats returns the number of callbacks run and how many of them panicked.
func (l *Loop) Stats() (handled, panics uint64) {
	return l.handled.Load(), l.panics.Load()
}
