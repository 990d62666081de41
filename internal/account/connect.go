package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/errdefs"
	"github.com/matheus3301/chatty/internal/loop"
	"github.com/matheus3301/chatty/internal/status"
)

// Connect starts connecting the account. It is a no-op while already
// connected or connecting, and for disabled accounts.
func (a *Account) Connect(ctx context.Context) {
	if !a.enabled || a.session == nil {
		return
	}
	switch a.machine.Current() {
	case status.Connected, status.Connecting:
		return
	}
	if err := a.machine.Transition(status.Connecting); err != nil {
		a.logger.Warn("cannot connect", zap.Error(err))
		return
	}

	session, creds, id := a.session, a.creds, a.id
	loop.Go(a.loop, ctx, func(ctx context.Context) (struct{}, error) {
		var secret string
		if creds != nil {
			s, err := creds.Password(ctx, id)
			if err != nil {
				return struct{}{}, fmt.Errorf("read credentials: %w", err)
			}
			secret = s
		}
		return struct{}{}, session.Connect(ctx, secret)
	}, func(_ struct{}, err error) {
		if a.machine.Current() != status.Connecting {
			return
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				a.logger.Warn("connect failed", zap.Error(err))
			}
			a.machine.Force(status.Disconnected)
			return
		}
		a.onConnected()
	})
}

// Disconnect always leaves the account Disconnected and detaches every live
// conversation.
func (a *Account) Disconnect(ctx context.Context) {
	a.machine.Force(status.Disconnected)
	a.detachAll()
	if a.session == nil {
		return
	}
	session := a.session
	loop.Go(a.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, session.Disconnect(ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			a.logger.Warn("disconnect failed", zap.Error(err))
		}
	})
}

// SetEnabled enables or disables the account, connecting or disconnecting
// as needed.
func (a *Account) SetEnabled(ctx context.Context, enabled bool) {
	if a.enabled == enabled {
		return
	}
	a.enabled = enabled
	if enabled {
		a.Connect(ctx)
		return
	}
	a.Disconnect(ctx)
	a.bus.Emit(bus.KindAccountDisabled, a.id)
}

func (a *Account) onConnected() {
	if err := a.machine.Transition(status.Connected); err != nil {
		a.logger.Debug("ignoring connected transition", zap.Error(err))
		return
	}
	a.logger.Info("account connected")
}

func (a *Account) detachAll() {
	for _, c := range a.chats {
		c.DetachConversation()
	}
}

// handleAuthFailure asks for a new password. A supplied password is stored
// and the account reconnects; a declined prompt disables the account.
func (a *Account) handleAuthFailure(ctx context.Context, reason string) {
	a.machine.Force(status.Disconnected)
	a.detachAll()
	a.logger.Warn("authentication failed", zap.String("reason", reason))

	if a.prompter == nil {
		a.disable()
		return
	}
	prompter, creds, id := a.prompter, a.creds, a.id
	loop.Go(a.loop, ctx, func(ctx context.Context) (string, error) {
		pw, err := prompter.RequestPassword(ctx, id, reason)
		if err != nil {
			return "", err
		}
		if pw == "" {
			return "", errdefs.ErrCancelled
		}
		if creds != nil {
			if err := creds.SetPassword(ctx, id, pw); err != nil {
				return "", fmt.Errorf("store password: %w", err)
			}
		}
		return pw, nil
	}, func(_ string, err error) {
		if err != nil {
			if !errors.Is(err, errdefs.ErrCancelled) && !errors.Is(err, context.Canceled) {
				a.logger.Error("password prompt failed", zap.Error(err))
			}
			a.disable()
			return
		}
		a.Connect(ctx)
	})
}

func (a *Account) disable() {
	if !a.enabled {
		return
	}
	a.enabled = false
	a.machine.Force(status.Disconnected)
	a.bus.Emit(bus.KindAccountDisabled, a.id)
}
