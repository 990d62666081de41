package chat

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/loop"
)

// Messages returns the loaded history, oldest first. The slice must not be
// modified.
func (c *Chat) Messages() []*Message { return c.messages }

// LastMessage returns the newest message, or nil.
func (c *Chat) LastMessage() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// AppendMessage adds msg at the newest end. Unread state is cleared only when
// the chat has focus.
func (c *Chat) AppendMessage(msg *Message) {
	c.messages = append(c.messages, msg)
	if c.focused {
		c.unread = 0
	}
	c.changed()
}

// PrependMessages inserts an older page, given oldest first, ahead of the
// loaded history.
func (c *Chat) PrependMessages(msgs []*Message) {
	if len(msgs) == 0 {
		return
	}
	merged := make([]*Message, 0, len(msgs)+len(c.messages))
	merged = append(merged, msgs...)
	c.messages = append(merged, c.messages...)
	c.changed()
}

// FindMessageByID searches from the newest message backwards. The search
// stops at the first message without an ID, since everything older came
// from bulk history and carries none.
func (c *Chat) FindMessageByID(id string) *Message {
	if id == "" {
		return nil
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.ID == "" {
			break
		}
		if m.ID == id {
			return m
		}
	}
	return nil
}

// FindMessageByUID looks a message up by its local identity.
func (c *Chat) FindMessageByUID(uid string) *Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].UID == uid {
			return c.messages[i]
		}
	}
	return nil
}

// LoadingHistory reports whether a history page is in flight.
func (c *Chat) LoadingHistory() bool { return c.loadingHistory }

// HistoryLoaded reports whether at least one page was loaded.
func (c *Chat) HistoryLoaded() bool { return c.historyLoaded }

// LoadHistory fetches up to count messages older than the oldest loaded one
// and prepends them. A request made while another is in flight is ignored.
// If ctx is cancelled the result is dropped silently.
func (c *Chat) LoadHistory(ctx context.Context, count int) {
	if count <= 0 || c.loadingHistory || c.history == nil {
		return
	}
	c.loadingHistory = true

	cur := c.historyCursor()
	account, key := c.account, c.key

	loop.Go(c.loop, ctx, func(ctx context.Context) ([]*Message, error) {
		return c.history.MessagesBefore(ctx, account, key, cur, count)
	}, func(msgs []*Message, err error) {
		c.loadingHistory = false
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			c.logger.Warn("failed to load history", zap.Error(err))
			return
		}
		c.historyLoaded = true
		c.PrependMessages(slices.DeleteFunc(msgs, func(m *Message) bool {
			return m.UID != "" && c.FindMessageByUID(m.UID) != nil
		}))
	})
}

// historyCursor points just below the oldest loaded message. Messages that
// arrived live are not in UID order, so among those sharing the oldest
// timestamp the smallest UID is used.
func (c *Chat) historyCursor() Cursor {
	if len(c.messages) == 0 {
		return Cursor{}
	}
	cur := Cursor{Before: c.messages[0].Time, UID: c.messages[0].UID}
	for _, m := range c.messages[1:] {
		if !m.Time.Equal(cur.Before) {
			break
		}
		if m.UID < cur.UID {
			cur.UID = m.UID
		}
	}
	return cur
}

// UpdateMessageStatus advances msg and persists it. It reports whether the
// status changed.
func (c *Chat) UpdateMessageStatus(msg *Message, status Status) bool {
	if !msg.advance(status) {
		return false
	}
	c.publishStatus(msg)
	c.persist(msg)
	return true
}

// SaveMessage persists msg as it is now.
func (c *Chat) SaveMessage(msg *Message) {
	c.persist(msg)
}

func (c *Chat) persist(msg *Message) {
	if c.history == nil {
		return
	}
	snap := msg.snapshot()
	account, key := c.account, c.key
	loop.Go(c.loop, context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.history.SaveMessage(ctx, account, key, snap)
	}, func(_ struct{}, err error) {
		if err != nil {
			c.logger.Error("failed to save message", zap.Error(err), zap.String("uid", snap.UID))
		}
	})
}
