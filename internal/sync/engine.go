// Package sync moves backend events from the bus onto the control loop.
package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/loop"
)

// Dispatcher applies a backend event. It is always called on the loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt backend.Event)
}

// backendBuffer absorbs bursts such as a history sync while the loop is busy.
const backendBuffer = 4096

// Engine subscribes to "backend." events on the bus and replays them, in
// order, on the control loop.
type Engine struct {
	bus        *bus.Bus
	loop       *loop.Loop
	dispatcher Dispatcher
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(b *bus.Bus, l *loop.Loop, d Dispatcher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bus:        b,
		loop:       l,
		dispatcher: d,
		logger:     logger,
	}
}

// Start subscribes to backend events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.SubscribeWithDrop(bus.NamespaceBackend, backendBuffer, e.dropped)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for its goroutine to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) dropped(evt bus.Event) {
	e.logger.Warn("backend event dropped, subscriber full",
		zap.String("kind", evt.Kind), zap.Uint64("total", e.bus.Dropped()))
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	be, ok := evt.Payload.(backend.Event)
	if !ok {
		e.logger.Warn("ignoring malformed backend event", zap.String("kind", evt.Kind))
		return
	}
	e.loop.Post(func() {
		if ctx.Err() != nil {
			return
		}
		e.dispatcher.Dispatch(ctx, be)
	})
}
