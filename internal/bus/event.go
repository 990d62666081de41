package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces used for subscription prefixes.
const (
	NamespaceChat    = "chat."
	NamespaceAccount = "account."
	NamespaceMessage = "message."
	NamespaceBackend = "backend."
)

// Change notification kinds.
const (
	KindChatChanged          = "chat.changed"
	KindChatAdded            = "chat.added"
	KindChatRemoved          = "chat.removed"
	KindChatEncryption       = "chat.encryption_changed"
	KindAccountStatusChanged = "account.status_changed"
	KindAccountDisabled      = "account.disabled"
	KindMessageStatusChanged = "message.status_changed"
)
