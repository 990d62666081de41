// Package chat implements a conversation: its message history, members,
// unread state and the operations that go through a backend session.
//
// A Chat is owned by the control loop. Every method must be called on the
// loop goroutine; blocking work is handed to loop.Go and its completion is
// applied back on the loop.
package chat

import (
	"time"
	"weak"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/loop"
)

// Kind is the shape of a conversation.
type Kind int

const (
	KindOneToOne Kind = iota
	KindGroup
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindBroadcast:
		return "broadcast"
	default:
		return "one_to_one"
	}
}

// Ref identifies a chat in change notifications.
type Ref struct {
	Account string
	Key     string
}

// MessageStatusChange is published when an outbound message advances.
type MessageStatusChange struct {
	Ref
	UID    string
	ID     string
	Status Status
}

// EncryptionChange is published whenever an encryption request settles,
// including requests that were refused.
type EncryptionChange struct {
	Ref
	Encryption backend.Encryption
}

// Options configures a new Chat.
type Options struct {
	Account  string
	Protocol backend.Protocol
	Key      string
	Name     string
	Kind     Kind

	Loop    *loop.Loop
	Bus     *bus.Bus
	Session backend.Session
	History History
	Logger  *zap.Logger
	// Matcher canonicalizes member addresses. Without one they are kept
	// as reported.
	Matcher *identity.Matcher

	// SupportsEncryption enables encryption control for direct chats on
	// backends that advertise it.
	SupportsEncryption bool
}

// Chat is one conversation. Backend handles are held weakly: the backend
// owns them and a chat never keeps a closed conversation alive.
type Chat struct {
	account  string
	protocol backend.Protocol
	key      string
	name     string
	topic    string
	kind     Kind
	// roomID is set once the chat is known to be a room; it outlives the
	// room and conversation handles.
	roomID string

	messages []*Message
	members  []*Member
	unread   int

	focused  bool
	archived bool
	blocked  bool
	hidden   bool

	encryption         backend.Encryption
	supportsEncryption bool

	loadingHistory bool
	historyLoaded  bool

	conv    weak.Pointer[backend.Conversation]
	contact weak.Pointer[backend.Contact]
	room    weak.Pointer[backend.Room]

	loop    *loop.Loop
	bus     *bus.Bus
	session backend.Session
	history History
	matcher *identity.Matcher
	logger  *zap.Logger
}

func New(opts Options) *Chat {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		account:            opts.Account,
		protocol:           opts.Protocol,
		key:                opts.Key,
		name:               opts.Name,
		kind:               opts.Kind,
		supportsEncryption: opts.SupportsEncryption,
		loop:               opts.Loop,
		bus:                opts.Bus,
		session:            opts.Session,
		history:            opts.History,
		matcher:            opts.Matcher,
		logger:             logger.With(zap.String("account", opts.Account), zap.String("chat", opts.Key)),
	}
}

func (c *Chat) Account() string            { return c.account }
func (c *Chat) Protocol() backend.Protocol { return c.protocol }
func (c *Chat) Key() string                { return c.key }
func (c *Chat) Kind() Kind                 { return c.kind }
func (c *Chat) Topic() string              { return c.topic }
func (c *Chat) Ref() Ref                   { return Ref{Account: c.account, Key: c.key} }

// Name returns the display name, falling back to the roster entry and then
// the key.
func (c *Chat) Name() string {
	if c.name != "" {
		return c.name
	}
	if ct := c.contact.Value(); ct != nil && ct.Name != "" {
		return ct.Name
	}
	if r := c.room.Value(); r != nil && r.Name != "" {
		return r.Name
	}
	return c.key
}

func (c *Chat) SetName(name string) {
	if c.name == name {
		return
	}
	c.name = name
	c.changed()
}

// Handles returns what identity matching needs to know about this chat.
func (c *Chat) Handles() identity.Handles {
	return identity.Handles{
		Account:      c.account,
		Protocol:     c.protocol,
		Conversation: c.conv.Value(),
		Contact:      c.contact.Value(),
		Room:         c.room.Value(),
		Members:      c.memberAddresses(),
		RoomID:       c.roomID,
	}
}

// Conversation returns the live session handle, or nil when detached.
func (c *Chat) Conversation() *backend.Conversation { return c.conv.Value() }

// Connected reports whether a live conversation is attached.
func (c *Chat) Connected() bool { return c.conv.Value() != nil && c.session != nil }

// AttachConversation binds the live session. The roster entry or room it
// was opened from is attached as well.
func (c *Chat) AttachConversation(conv *backend.Conversation) {
	if conv == nil || c.conv.Value() == conv {
		return
	}
	c.conv = weak.Make(conv)
	if conv.Contact != nil {
		c.contact = weak.Make(conv.Contact)
	}
	if conv.Room != nil {
		c.room = weak.Make(conv.Room)
		c.roomID = conv.Room.ID
	}
	if conv.Type == backend.ConversationRoom && c.roomID == "" {
		c.roomID = conv.ID
	}
	if conv.Title != "" && c.kind != KindOneToOne {
		c.topic = conv.Title
	}
	c.changed()
}

func (c *Chat) AttachContact(ct *backend.Contact) {
	if ct == nil || c.contact.Value() == ct {
		return
	}
	c.contact = weak.Make(ct)
	c.changed()
}

func (c *Chat) AttachRoom(r *backend.Room) {
	if r == nil || c.room.Value() == r {
		return
	}
	c.room = weak.Make(r)
	c.roomID = r.ID
	c.changed()
}

// AttachSession sets the backend session used for outbound operations.
func (c *Chat) AttachSession(s backend.Session) { c.session = s }

// DetachConversation drops the live session handle, e.g. on disconnect.
// Persistent references survive.
func (c *Chat) DetachConversation() {
	if c.conv.Value() == nil {
		return
	}
	c.conv = weak.Pointer[backend.Conversation]{}
	for _, m := range c.members {
		m.Typing = false
	}
	c.changed()
}

// UnreadCount returns the number of unread messages.
func (c *Chat) UnreadCount() int { return c.unread }

// SetUnreadCount is a no-op, and publishes nothing, when count is unchanged.
func (c *Chat) SetUnreadCount(count int) {
	if count < 0 {
		count = 0
	}
	if c.unread == count {
		return
	}
	c.unread = count
	c.changed()
}

func (c *Chat) Focused() bool { return c.focused }

// SetFocused marks the chat as the one the user is viewing and clears
// unread state when it gains focus.
func (c *Chat) SetFocused(focused bool) {
	if c.focused == focused {
		return
	}
	c.focused = focused
	if focused && c.unread != 0 {
		c.unread = 0
	}
	c.changed()
}

func (c *Chat) Archived() bool { return c.archived }

func (c *Chat) SetArchived(v bool) {
	if c.archived != v {
		c.archived = v
		c.changed()
	}
}

func (c *Chat) Blocked() bool { return c.blocked }

func (c *Chat) SetBlocked(v bool) {
	if c.blocked != v {
		c.blocked = v
		c.changed()
	}
}

func (c *Chat) Visible() bool { return !c.hidden }

func (c *Chat) SetVisible(v bool) {
	if c.hidden == v {
		c.hidden = !v
		c.changed()
	}
}

// Record snapshots the persistent part of the chat.
func (c *Chat) Record() Record {
	return Record{
		Account:       c.account,
		Key:           c.key,
		Name:          c.name,
		Kind:          c.kind,
		Room:          c.roomID,
		Protocol:      c.protocol,
		Members:       c.memberAddresses(),
		Unread:        c.unread,
		Archived:      c.archived,
		Blocked:       c.blocked,
		LastMessageAt: c.LastMessageTime(),
	}
}

// Restore applies persisted flags without publishing changes.
func (c *Chat) Restore(r Record) {
	c.unread = r.Unread
	c.archived = r.Archived
	c.blocked = r.Blocked
	c.roomID = r.Room
	for _, addr := range r.Members {
		c.members = append(c.members, &Member{Address: addr})
	}
}

func (c *Chat) changed() {
	c.bus.Emit(bus.KindChatChanged, c.Ref())
}

func (c *Chat) publishStatus(m *Message) {
	c.bus.Emit(bus.KindMessageStatusChanged, MessageStatusChange{
		Ref:    c.Ref(),
		UID:    m.UID,
		ID:     m.ID,
		Status: m.status,
	})
}

// LastMessageTime returns the time of the newest message, or the zero time.
func (c *Chat) LastMessageTime() time.Time {
	if m := c.LastMessage(); m != nil {
		return m.Time
	}
	return time.Time{}
}
