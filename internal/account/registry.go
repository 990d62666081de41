package account

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/errdefs"
)

// Registry holds the configured accounts in insertion order and routes
// backend events to them.
type Registry struct {
	accounts map[string]*Account
	order    []string
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		accounts: make(map[string]*Account),
		logger:   logger,
	}
}

// Add registers a. Account IDs must be unique.
func (r *Registry) Add(a *Account) error {
	if a == nil || a.ID() == "" {
		return fmt.Errorf("add account: missing id: %w", errdefs.ErrInvalidArgument)
	}
	if _, ok := r.accounts[a.ID()]; ok {
		return fmt.Errorf("add account %s: duplicate id: %w", a.ID(), errdefs.ErrInvalidArgument)
	}
	r.accounts[a.ID()] = a
	r.order = append(r.order, a.ID())
	return nil
}

// Remove disconnects and forgets the account with id.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	a, ok := r.accounts[id]
	if !ok {
		return false
	}
	a.Disconnect(ctx)
	delete(r.accounts, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return true
}

func (r *Registry) Get(id string) (*Account, bool) {
	a, ok := r.accounts[id]
	return a, ok
}

// Accounts returns every account in the order they were added.
func (r *Registry) Accounts() []*Account {
	out := make([]*Account, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.accounts[id])
	}
	return out
}

// Dispatch routes evt to the account it belongs to.
func (r *Registry) Dispatch(ctx context.Context, evt backend.Event) {
	a, ok := r.accounts[evt.AccountID()]
	if !ok {
		r.logger.Debug("event for unknown account",
			zap.String("account", evt.AccountID()),
			zap.String("kind", backend.KindOf(evt)))
		return
	}
	a.HandleEvent(ctx, evt)
}

// Close disconnects every backend session directly. It is meant for
// shutdown, after the control loop has stopped.
func (r *Registry) Close(ctx context.Context) error {
	var err error
	for _, id := range r.order {
		a := r.accounts[id]
		if a.session == nil {
			continue
		}
		if cerr := a.session.Disconnect(ctx); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("disconnect %s: %w", id, cerr))
		}
	}
	return err
}
