package backend

import "github.com/matheus3301/chatty/internal/bus"

// Bus kinds for backend events. Payloads are the matching *Event types.
const (
	KindConversationStarted = "backend.conversation_started"
	KindConversationClosed  = "backend.conversation_closed"
	KindContactAdded        = "backend.contact_added"
	KindRoomAdded           = "backend.room_added"
	KindMessageReceived     = "backend.message_received"
	KindHistoryBatch        = "backend.history_batch"
	KindMembersChanged      = "backend.members_changed"
	KindConnectivity        = "backend.connectivity"
	KindAuthFailed          = "backend.auth_failed"
	KindDeliveryReport      = "backend.delivery_report"
	KindTyping              = "backend.typing"
)

// Event is implemented by every backend event payload.
type Event interface {
	AccountID() string
}

// ConnState is the connectivity a backend reports for itself.
type ConnState int

const (
	ConnUnknown ConnState = iota
	ConnDisconnected
	ConnConnecting
	ConnConnected
)

type ConversationStarted struct {
	Account      string
	Conversation *Conversation
	Members      []Member
}

type ConversationClosed struct {
	Account      string
	Conversation *Conversation
}

type ContactAdded struct {
	Account string
	Contact *Contact
}

type RoomAdded struct {
	Account string
	Room    *Room
}

type MessageReceived struct {
	Account      string
	Conversation *Conversation
	Members      []Member
	Message      Incoming
}

// HistoryBatch carries older messages the network replayed for a
// conversation, oldest first.
type HistoryBatch struct {
	Account      string
	Conversation *Conversation
	Messages     []Incoming
}

type MembersChanged struct {
	Account      string
	Conversation *Conversation
	Added        []Member
	Removed      []string
}

// Connectivity reports a backend connection change. ConnUnknown is used
// while hardware or sessions are being enumerated.
type Connectivity struct {
	Account string
	State   ConnState
	// Region is a hint learned from the network, e.g. from the SIM.
	Region string
}

type AuthFailed struct {
	Account string
	Reason  string
}

type DeliveryReport struct {
	Account   string
	Reference string
	Delivered bool
}

type Typing struct {
	Account      string
	Conversation *Conversation
	Typing       bool
}

func (e ConversationStarted) AccountID() string { return e.Account }
func (e ConversationClosed) AccountID() string  { return e.Account }
func (e ContactAdded) AccountID() string        { return e.Account }
func (e RoomAdded) AccountID() string           { return e.Account }
func (e MessageReceived) AccountID() string     { return e.Account }
func (e HistoryBatch) AccountID() string        { return e.Account }
func (e MembersChanged) AccountID() string      { return e.Account }
func (e Connectivity) AccountID() string        { return e.Account }
func (e AuthFailed) AccountID() string          { return e.Account }
func (e DeliveryReport) AccountID() string      { return e.Account }
func (e Typing) AccountID() string              { return e.Account }

// Publish emits evt on b under its kind.
func Publish(b *bus.Bus, evt Event) {
	b.Emit(KindOf(evt), evt)
}

// KindOf returns the bus kind for evt.
func KindOf(evt Event) string {
	switch evt.(type) {
	case ConversationStarted:
		return KindConversationStarted
	case ConversationClosed:
		return KindConversationClosed
	case ContactAdded:
		return KindContactAdded
	case RoomAdded:
		return KindRoomAdded
	case MessageReceived:
		return KindMessageReceived
	case HistoryBatch:
		return KindHistoryBatch
	case MembersChanged:
		return KindMembersChanged
	case Connectivity:
		return KindConnectivity
	case AuthFailed:
		return KindAuthFailed
	case DeliveryReport:
		return KindDeliveryReport
	case Typing:
		return KindTyping
	default:
		return bus.NamespaceBackend + "unknown"
	}
}
