package chat

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Direction tells inbound and outbound messages apart.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionSystem
)

// Status is a message delivery state. Outbound messages only ever move
// forward: Sending, then Sent, then Delivered, or SendingFailed.
type Status int

const (
	StatusUnknown Status = iota
	StatusSending
	StatusSent
	StatusDelivered
	StatusSendingFailed
	StatusReceived
)

func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusSendingFailed:
		return "sending_failed"
	case StatusReceived:
		return "received"
	default:
		return "unknown"
	}
}

var forward = map[Status][]Status{
	StatusUnknown: {StatusSending, StatusSent, StatusDelivered, StatusSendingFailed, StatusReceived},
	StatusSending: {StatusSent, StatusDelivered, StatusSendingFailed},
	StatusSent:    {StatusDelivered},
}

func canAdvance(from, to Status) bool {
	return slices.Contains(forward[from], to)
}

// Message is one entry in a chat's history. Fields other than status are
// set by the creator and treated as read-only afterwards.
type Message struct {
	// UID is the local identity, stable across restarts.
	UID string
	// ID is the backend correlation ID. Messages bulk-loaded from history
	// carry none.
	ID          string
	Reference   string
	Body        string
	ContentType string
	Direction   Direction
	SenderAddr  string
	SenderName  string
	Time        time.Time

	status Status
}

// NewMessage returns an outbound text message stamped now.
func NewMessage(body string) *Message {
	return &Message{
		UID:         uuid.NewString(),
		Body:        body,
		ContentType: "text/plain",
		Direction:   DirectionOut,
		Time:        time.Now(),
	}
}

// NewIncoming returns an inbound message with status Received.
func NewIncoming(id, sender, senderName, body string, at time.Time) *Message {
	return &Message{
		UID:         uuid.NewString(),
		ID:          id,
		Body:        body,
		ContentType: "text/plain",
		Direction:   DirectionIn,
		SenderAddr:  sender,
		SenderName:  senderName,
		Time:        at,
		status:      StatusReceived,
	}
}

// RestoreMessage rebuilds a message loaded from storage with its recorded status.
func RestoreMessage(m Message, status Status) *Message {
	m.status = status
	return &m
}

func (m *Message) Status() Status { return m.status }

// advance moves the status forward and reports whether it changed.
func (m *Message) advance(to Status) bool {
	if !canAdvance(m.status, to) {
		return false
	}
	m.status = to
	return true
}

func (m *Message) snapshot() *Message {
	cp := *m
	return &cp
}
