package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/loop"
)

// Encryption returns the last known encryption state.
func (c *Chat) Encryption() backend.Encryption { return c.encryption }

// encryptionConversation returns the conversation when encryption can be
// controlled: a direct chat with a live session on a backend that offers it.
func (c *Chat) encryptionConversation() *backend.Conversation {
	if !c.supportsEncryption || c.kind != KindOneToOne || c.session == nil {
		return nil
	}
	conv := c.conv.Value()
	if conv == nil || conv.Type != backend.ConversationIM {
		return nil
	}
	if c.session.Capabilities(conv)&backend.CapEncryption == 0 {
		return nil
	}
	return conv
}

// SetEncryption requests the encryption state. A change notification is
// always published once the request settles, even when it was refused or
// failed, so observers re-read the state.
func (c *Chat) SetEncryption(ctx context.Context, enable bool) {
	conv := c.encryptionConversation()
	if conv == nil {
		c.publishEncryption()
		return
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (backend.Encryption, error) {
		return session.SetEncryption(ctx, conv, enable)
	}, func(state backend.Encryption, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("failed to change encryption", zap.Error(err), zap.Bool("enable", enable))
		} else {
			c.encryption = state
		}
		c.publishEncryption()
	})
}

// RefreshEncryption reloads the encryption state from the backend.
func (c *Chat) RefreshEncryption(ctx context.Context) {
	conv := c.encryptionConversation()
	if conv == nil {
		return
	}
	session := c.session
	loop.Go(c.loop, ctx, func(ctx context.Context) (backend.Encryption, error) {
		return session.Encryption(ctx, conv)
	}, func(state backend.Encryption, err error) {
		if err != nil || ctx.Err() != nil || state == c.encryption {
			return
		}
		c.encryption = state
		c.publishEncryption()
	})
}

func (c *Chat) publishEncryption() {
	c.bus.Emit(bus.KindChatEncryption, EncryptionChange{Ref: c.Ref(), Encryption: c.encryption})
}
