package wa

import (
	"context"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
)

// EventHandler translates whatsmeow events into backend events on the bus.
// It does not touch chats; the sync engine picks the events up from the bus.
type EventHandler struct {
	account string
	bus     *bus.Bus
	roster  *roster
	adapter *Adapter // nil in tests: no LID resolution, no contact store
	logger  *zap.Logger
}

// NewEventHandler creates a handler for account. adapter may be nil.
func NewEventHandler(account string, b *bus.Bus, adapter *Adapter, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		account: account,
		bus:     b,
		roster:  newRoster(account),
		adapter: adapter,
		logger:  logger,
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.publish(backend.Connectivity{Account: h.account, State: backend.ConnConnected})
		h.loadContacts()
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.closeAll()
		h.publish(backend.Connectivity{Account: h.account, State: backend.ConnDisconnected})
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.ChatPresence:
		h.handlePresence(evt)
	case *events.LoggedOut:
		reason := evt.Reason.String()
		h.logger.Warn("WhatsApp logged out", zap.String("reason", reason))
		h.closeAll()
		h.publish(backend.AuthFailed{Account: h.account, Reason: reason})
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	chatJID := h.resolveJID(evt.Info.Chat)
	in := ParseLiveMessage(evt)
	in.Sender = h.resolveJID(evt.Info.Sender).String()

	title := ""
	if !evt.Info.IsFromMe && !evt.Info.IsGroup {
		title = evt.Info.PushName
	}
	conv, created := h.roster.open(chatJID, title)

	var members []backend.Member
	if conv.Type == backend.ConversationRoom {
		if !in.FromMe && in.Sender != "" {
			members = []backend.Member{{Address: in.Sender, Name: in.SenderName}}
		}
	} else {
		members = []backend.Member{{Address: conv.ID, Name: title}}
	}
	for _, m := range members {
		h.roster.see(conv, m)
	}

	if created {
		h.publish(backend.ConversationStarted{Account: h.account, Conversation: conv, Members: members})
	}
	h.publish(backend.MessageReceived{Account: h.account, Conversation: conv, Members: members, Message: in})
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	for _, c := range data.GetConversations() {
		jid, err := types.ParseJID(c.GetID())
		if err != nil {
			h.logger.Debug("skipping history conversation", zap.String("id", c.GetID()), zap.Error(err))
			continue
		}
		jid = h.resolveJID(jid)
		conv, created := h.roster.open(jid, c.GetName())
		if created {
			var members []backend.Member
			if conv.Type == backend.ConversationIM {
				members = []backend.Member{{Address: conv.ID, Name: c.GetName()}}
			}
			h.publish(backend.ConversationStarted{Account: h.account, Conversation: conv, Members: members})
		}

		var msgs []backend.Incoming
		for _, hm := range c.GetMessages() {
			in, ok := ParseHistoryMessage(conv.ID, hm.GetMessage())
			if !ok {
				continue
			}
			msgs = append(msgs, in)
		}
		if len(msgs) == 0 {
			continue
		}
		// History syncs arrive newest first.
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
		h.publish(backend.HistoryBatch{Account: h.account, Conversation: conv, Messages: msgs})
	}
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	if evt.Type != types.ReceiptTypeDelivered {
		return
	}
	for _, id := range evt.MessageIDs {
		h.publish(backend.DeliveryReport{Account: h.account, Reference: id, Delivered: true})
	}
}

func (h *EventHandler) handlePresence(evt *events.ChatPresence) {
	conv := h.roster.lookup(h.resolveJID(evt.Chat).String())
	if conv == nil || conv.Type != backend.ConversationIM {
		return
	}
	h.publish(backend.Typing{Account: h.account, Conversation: conv, Typing: evt.State == types.ChatPresenceComposing})
}

// loadContacts announces the device store's contacts after a connect.
func (h *EventHandler) loadContacts() {
	if h.adapter == nil {
		return
	}
	for _, c := range h.adapter.Contacts(context.Background()) {
		h.publish(backend.ContactAdded{Account: h.account, Contact: c})
	}
}

func (h *EventHandler) closeAll() {
	for _, conv := range h.roster.reset() {
		h.publish(backend.ConversationClosed{Account: h.account, Conversation: conv})
	}
}

// resolveJID maps every device and LID alias of a user to one JID.
func (h *EventHandler) resolveJID(jid types.JID) types.JID {
	jid = jid.ToNonAD()
	if h.adapter != nil {
		jid = h.adapter.ResolveLID(context.Background(), jid)
	}
	return jid
}

func (h *EventHandler) publish(evt backend.Event) {
	backend.Publish(h.bus, evt)
}
