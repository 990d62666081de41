package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/errdefs"
	"github.com/matheus3301/chatty/internal/loop"
)

// roomConversation returns the live conversation if it is a multi-user room
// whose backend advertises capability.
func (c *Chat) roomConversation(op string, capability backend.Capability) (*backend.Conversation, error) {
	if c.kind == KindOneToOne {
		return nil, fmt.Errorf("%s on direct chat %s: %w", op, c.key, errdefs.ErrNotSupported)
	}
	conv := c.conv.Value()
	if conv == nil || c.session == nil {
		return nil, fmt.Errorf("%s on %s: %w", op, c.key, errdefs.ErrNotConnected)
	}
	if conv.Type != backend.ConversationRoom || c.session.Capabilities(conv)&capability == 0 {
		return nil, fmt.Errorf("%s on %s: %w", op, c.key, errdefs.ErrNotSupported)
	}
	return conv, nil
}

// Invite asks the backend to invite address into the room.
func (c *Chat) Invite(ctx context.Context, address, message string, done func(error)) error {
	if address == "" {
		return fmt.Errorf("invite to %s: empty address: %w", c.key, errdefs.ErrInvalidArgument)
	}
	conv, err := c.roomConversation("invite", backend.CapInvite)
	if err != nil {
		return err
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, session.Invite(ctx, conv, address, message)
	}, func(_ struct{}, err error) {
		c.finish(ctx, "invite", err, done)
	})
	return nil
}

// SetTopic changes the room topic. The local topic is updated once the
// backend accepts it.
func (c *Chat) SetTopic(ctx context.Context, topic string, done func(error)) error {
	conv, err := c.roomConversation("set topic", backend.CapTopic)
	if err != nil {
		return err
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, session.SetTopic(ctx, conv, topic)
	}, func(_ struct{}, err error) {
		if err == nil && ctx.Err() == nil && c.topic != topic {
			c.topic = topic
			c.changed()
		}
		c.finish(ctx, "set topic", err, done)
	})
	return nil
}

// Leave exits the room and detaches the live conversation.
func (c *Chat) Leave(ctx context.Context, done func(error)) error {
	conv, err := c.roomConversation("leave", backend.CapLeave)
	if err != nil {
		return err
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, session.Leave(ctx, conv)
	}, func(_ struct{}, err error) {
		if err == nil && ctx.Err() == nil {
			c.DetachConversation()
		}
		c.finish(ctx, "leave", err, done)
	})
	return nil
}

// Join enters the attached room through session, attaching the resulting
// conversation.
func (c *Chat) Join(ctx context.Context, done func(error)) error {
	room := c.room.Value()
	if room == nil {
		return fmt.Errorf("join %s: no room: %w", c.key, errdefs.ErrNotSupported)
	}
	if c.session == nil {
		return fmt.Errorf("join %s: %w", c.key, errdefs.ErrNotConnected)
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (*backend.Conversation, error) {
		return session.Join(ctx, room)
	}, func(conv *backend.Conversation, err error) {
		if err == nil && ctx.Err() == nil {
			c.AttachConversation(conv)
		}
		c.finish(ctx, "join", err, done)
	})
	return nil
}

// RefreshMembers replaces the member list with what the backend reports.
func (c *Chat) RefreshMembers(ctx context.Context) {
	conv := c.conv.Value()
	if conv == nil || c.session == nil {
		return
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) ([]backend.Member, error) {
		return session.Members(ctx, conv)
	}, func(members []backend.Member, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Debug("member refresh failed", zap.Error(err))
			return
		}
		c.AddMembers(FromBackend(members)...)
	})
}

// FromBackend converts backend member reports.
func FromBackend(members []backend.Member) []Member {
	out := make([]Member, len(members))
	for i, m := range members {
		out[i] = Member{Address: m.Address, Name: m.Name, Role: m.Role, Avatar: m.Avatar}
	}
	return out
}

func (c *Chat) finish(ctx context.Context, op string, err error, done func(error)) {
	if ctx.Err() != nil || done == nil {
		return
	}
	if err != nil {
		done(fmt.Errorf("%s on %s: %w: %w", op, c.key, errdefs.ErrBackendFailure, err))
		return
	}
	done(nil)
}
