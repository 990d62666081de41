package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/errdefs"
	"github.com/matheus3301/chatty/internal/loop"
)

// SendOption adjusts a single send.
type SendOption func(*backend.Outgoing)

// WithDeliveryReport asks the backend for a delivery report.
func WithDeliveryReport() SendOption {
	return func(o *backend.Outgoing) { o.RequestReport = true }
}

// SendMessage appends msg as Sending and hands it to the backend. Validation
// errors are returned at once and leave history untouched. Otherwise done,
// if set, receives the outcome on the loop: nil once the message is Sent, or
// an error wrapping ErrBackendFailure after it is marked SendingFailed. A
// failed message stays in history. If ctx is cancelled first, done is not
// called and the message is left as it was.
func (c *Chat) SendMessage(ctx context.Context, msg *Message, done func(error), opts ...SendOption) error {
	if msg == nil || msg.Body == "" {
		return fmt.Errorf("send to %s: empty message: %w", c.key, errdefs.ErrInvalidArgument)
	}
	conv := c.conv.Value()
	if conv == nil || c.session == nil {
		return fmt.Errorf("send to %s: %w", c.key, errdefs.ErrNotConnected)
	}

	msg.Direction = DirectionOut
	msg.advance(StatusSending)
	c.AppendMessage(msg)
	c.publishStatus(msg)
	c.persist(msg)

	out := backend.Outgoing{
		UID:         msg.UID,
		Body:        msg.Body,
		ContentType: msg.ContentType,
		Recipients:  c.memberAddresses(),
	}
	for _, opt := range opts {
		opt(&out)
	}
	session := c.session

	loop.Go(c.loop, ctx, func(ctx context.Context) (backend.Receipt, error) {
		return session.Send(ctx, conv, out)
	}, func(r backend.Receipt, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("send failed", zap.Error(err), zap.String("uid", msg.UID))
			c.UpdateMessageStatus(msg, StatusSendingFailed)
			if done != nil {
				done(fmt.Errorf("send to %s: %w: %w", c.key, errdefs.ErrBackendFailure, err))
			}
			return
		}
		msg.ID = r.ID
		msg.Reference = r.Reference
		c.UpdateMessageStatus(msg, StatusSent)
		if done != nil {
			done(nil)
		}
	})
	return nil
}

// SetTyping tells the remote side whether the user is typing. Only direct
// chats with a live conversation report typing; anything else is ignored.
func (c *Chat) SetTyping(ctx context.Context, typing bool) {
	conv := c.conv.Value()
	if conv == nil || c.session == nil || c.kind != KindOneToOne {
		return
	}
	if c.session.Capabilities(conv)&backend.CapTyping == 0 {
		return
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, session.SetTyping(ctx, conv, typing)
	}, func(_ struct{}, err error) {
		if err != nil && ctx.Err() == nil {
			c.logger.Debug("typing notification failed", zap.Error(err))
		}
	})
}
