package account

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/chat"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/status"
)

// HandleEvent applies a backend event to the account's chats.
func (a *Account) HandleEvent(ctx context.Context, evt backend.Event) {
	switch e := evt.(type) {
	case backend.ConversationStarted:
		c := a.reconcile(identity.Handles{Conversation: e.Conversation, Members: addresses(e.Members)}, kindOf(e.Conversation, len(e.Members)))
		if c == nil {
			return
		}
		c.AttachConversation(e.Conversation)
		c.AddMembers(chat.FromBackend(e.Members)...)
		c.RefreshEncryption(ctx)
		if e.Conversation != nil && e.Conversation.Type == backend.ConversationRoom {
			c.RefreshMembers(ctx)
		}
		a.saveChat(c)

	case backend.ConversationClosed:
		if c := a.chatForConversation(e.Conversation); c != nil {
			c.DetachConversation()
		}

	case backend.ContactAdded:
		if e.Contact == nil {
			return
		}
		if c := a.reconcile(identity.Handles{Contact: e.Contact}, chat.KindOneToOne); c != nil {
			c.AttachContact(e.Contact)
		}

	case backend.RoomAdded:
		if e.Room == nil {
			return
		}
		if c := a.reconcile(identity.Handles{Room: e.Room}, chat.KindGroup); c != nil {
			c.AttachRoom(e.Room)
		}

	case backend.MessageReceived:
		a.handleMessage(e)

	case backend.HistoryBatch:
		a.handleHistory(e)

	case backend.MembersChanged:
		c := a.chatForConversation(e.Conversation)
		if c == nil {
			return
		}
		c.AddMembers(chat.FromBackend(e.Added)...)
		for _, addr := range e.Removed {
			c.RemoveMember(addr)
		}

	case backend.Typing:
		if c := a.chatForConversation(e.Conversation); c != nil && e.Conversation != nil {
			c.SetMemberTyping(e.Conversation.ID, e.Typing)
		}

	case backend.Connectivity:
		a.handleConnectivity(ctx, e)

	case backend.AuthFailed:
		a.handleAuthFailure(ctx, e.Reason)

	case backend.DeliveryReport:
		a.handleDeliveryReport(e)

	default:
		a.logger.Debug("unhandled backend event", zap.String("kind", backend.KindOf(evt)))
	}
}

func (a *Account) handleMessage(e backend.MessageReceived) {
	members := e.Members
	if len(members) == 0 && e.Conversation == nil && e.Message.Sender != "" {
		members = []backend.Member{{Address: e.Message.Sender, Name: e.Message.SenderName}}
	}
	c := a.reconcile(identity.Handles{Conversation: e.Conversation, Members: addresses(members)}, kindOf(e.Conversation, len(members)))
	if c == nil {
		a.logger.Warn("dropping message without conversation or sender", zap.String("id", e.Message.ID))
		return
	}
	if e.Conversation != nil {
		c.AttachConversation(e.Conversation)
	}
	c.AddMembers(chat.FromBackend(members)...)

	in := e.Message
	if existing := c.FindMessageByID(in.ID); existing != nil {
		// Retransmission of a message we already hold.
		if in.FromMe {
			c.UpdateMessageStatus(existing, chat.StatusSent)
		}
		return
	}

	msg := a.incoming(in.ID, in)
	c.AppendMessage(msg)
	c.SaveMessage(msg)
	if !in.FromMe && !c.Focused() {
		c.SetUnreadCount(c.UnreadCount() + 1)
	}
	a.saveChat(c)
}

func (a *Account) handleHistory(e backend.HistoryBatch) {
	if len(e.Messages) == 0 {
		return
	}
	c := a.reconcile(identity.Handles{Conversation: e.Conversation}, kindOf(e.Conversation, 0))
	if c == nil {
		return
	}
	c.AttachConversation(e.Conversation)

	var oldest []*chat.Message
	cutoff := c.Messages()
	for _, in := range e.Messages {
		msg := a.incoming("", in)
		c.SaveMessage(msg)
		if len(cutoff) == 0 || in.Time.Before(cutoff[0].Time) {
			oldest = append(oldest, msg)
		}
	}
	c.PrependMessages(oldest)
	a.saveChat(c)
}

func (a *Account) handleConnectivity(ctx context.Context, e backend.Connectivity) {
	if e.Region != "" && a.protocol.Telephony() {
		a.matcher.SetRegion(e.Region)
	}
	switch e.State {
	case backend.ConnUnknown:
		a.machine.Force(status.Unknown)
	case backend.ConnConnecting:
		if err := a.machine.Transition(status.Connecting); err != nil {
			a.logger.Debug("ignoring connecting report", zap.Error(err))
		}
	case backend.ConnConnected:
		if a.machine.Current() == status.Disconnected {
			_ = a.machine.Transition(status.Connecting)
		}
		a.onConnected()
		for _, c := range a.chats {
			c.RefreshEncryption(ctx)
		}
	case backend.ConnDisconnected:
		a.machine.Force(status.Disconnected)
		a.detachAll()
	}
}

func (a *Account) handleDeliveryReport(e backend.DeliveryReport) {
	msg, ok := a.pending[e.Reference]
	if !ok {
		return
	}
	delete(a.pending, e.Reference)
	for _, c := range a.chats {
		if c.FindMessageByUID(msg.UID) == msg {
			if e.Delivered {
				c.UpdateMessageStatus(msg, chat.StatusDelivered)
			}
			return
		}
	}
}

// incoming converts a backend message. id is the correlation ID the chat
// keeps; history replays pass "" so bulk-loaded messages carry none.
func (a *Account) incoming(id string, in backend.Incoming) *chat.Message {
	msg := chat.NewIncoming(id, a.matcher.Canonical(a.protocol, in.Sender), in.SenderName, in.Body, in.Time)
	if in.ID != "" {
		msg.UID = messageUID(a.id, in.ID)
	}
	if in.ContentType != "" {
		msg.ContentType = in.ContentType
	}
	if in.FromMe {
		msg = chat.RestoreMessage(*msg, chat.StatusSent)
		msg.Direction = chat.DirectionOut
	}
	return msg
}

// messageUID derives a stable local identity from a backend message ID so
// that replays of the same message overwrite rather than duplicate it.
func messageUID(account, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(account+"/"+id)).String()
}

// reconcile finds the chat h refers to, creating it when no existing chat
// matches. At most one chat exists per key. It returns nil when h carries
// nothing to derive a key from.
func (a *Account) reconcile(h identity.Handles, kind chat.Kind) *chat.Chat {
	if c := a.match(h); c != nil {
		return c
	}

	key, name := a.keyFor(h)
	if key == "" {
		return nil
	}
	if c := a.findByKey(key); c != nil {
		return c
	}
	c := a.addChat(key, name, kind)
	a.logger.Debug("chat created", zap.String("chat", key), zap.Stringer("kind", kind))
	return c
}

func (a *Account) keyFor(h identity.Handles) (key, name string) {
	switch {
	case h.Room != nil:
		return h.Room.ID, h.Room.Name
	case h.Conversation != nil && h.Conversation.Type == backend.ConversationRoom:
		return h.Conversation.ID, h.Conversation.Title
	case len(h.Members) > 0:
		return a.matcher.Key(a.protocol, h.Members...), ""
	case h.Contact != nil:
		return a.matcher.Key(a.protocol, h.Contact.Address), h.Contact.Name
	case h.Conversation != nil:
		return a.matcher.Key(a.protocol, h.Conversation.ID), h.Conversation.Title
	}
	return "", ""
}

// match returns the chat h matches under the strongest rule. Rules rank
// across all chats: a live session match on any chat beats an address
// match on an earlier one.
func (a *Account) match(h identity.Handles) *chat.Chat {
	h.Account = a.id
	h.Protocol = a.protocol
	var best *chat.Chat
	bestRule := identity.RuleNone
	for _, c := range a.chats {
		rule := a.matcher.Match(c.Handles(), h)
		if rule == identity.RuleNone || (best != nil && rule >= bestRule) {
			continue
		}
		best, bestRule = c, rule
		if rule == identity.RuleSession {
			break
		}
	}
	return best
}

func (a *Account) chatForConversation(conv *backend.Conversation) *chat.Chat {
	if conv == nil {
		return nil
	}
	return a.match(identity.Handles{Conversation: conv})
}

func addresses(members []backend.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Address
	}
	return out
}

func kindOf(conv *backend.Conversation, members int) chat.Kind {
	if (conv != nil && conv.Type == backend.ConversationRoom) || members > 1 {
		return chat.KindGroup
	}
	return chat.KindOneToOne
}
