package backend

// ConversationType distinguishes direct conversations from multi-user rooms.
type ConversationType int

const (
	ConversationIM ConversationType = iota
	ConversationRoom
)

// Conversation is a live, backend-owned conversation session. It exists only
// while the account is connected and the conversation is open.
type Conversation struct {
	ID      string
	Account string
	Type    ConversationType
	Title   string
	Contact *Contact // roster entry this conversation was opened from, if any
	Room    *Room
}

// Contact is a persistent roster entry for a single remote address.
type Contact struct {
	Account string
	Address string
	Name    string
}

// Room is a persistent reference to a multi-user room.
type Room struct {
	Account  string
	ID       string
	Name     string
	AutoJoin bool
}

// Role is a member's privilege level within a conversation.
type Role int

const (
	RoleMember Role = iota
	RoleModerator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleModerator:
		return "moderator"
	default:
		return "member"
	}
}

// Member describes one participant reported by a backend.
type Member struct {
	Address string
	Name    string
	Role    Role
	Avatar  string
}

// Encryption is the end-to-end encryption state of a conversation.
type Encryption int

const (
	EncryptionUnsupported Encryption = iota
	EncryptionDisabled
	EncryptionEnabled
)

func (e Encryption) String() string {
	switch e {
	case EncryptionDisabled:
		return "disabled"
	case EncryptionEnabled:
		return "enabled"
	default:
		return "unsupported"
	}
}
