// Package loop runs the single control goroutine that owns all chat and
// account state. Work that blocks runs elsewhere and posts its completion
// back with Go.
package loop

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Loop executes posted tasks one at a time, in posting order.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	logger *zap.Logger
}

// New creates a loop. Nothing runs until Run is called.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued at that
// point are discarded.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.drain()
		select {
		case <-l.wake:
		case <-ctx.Done():
			return
		}
	}
}

// Post queues fn for execution on the loop goroutine. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and waits for it to finish. It must not be called from the
// loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Go runs work on its own goroutine and posts then(result, err) back to the
// loop. then always runs, even when ctx was cancelled, so callers can clear
// in-flight state; checking ctx.Err() there is how a cancelled operation
// suppresses its side effects.
func Go[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), then func(T, error)) {
	go func() {
		res, err := work(ctx)
		l.Post(func() { then(res, err) })
	}()
}
