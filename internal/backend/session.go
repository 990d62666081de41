// Package backend defines the contract between accounts and protocol
// implementations, and the events protocol implementations publish.
package backend

import (
	"context"
	"time"
)

// Capability flags advertise optional per-conversation operations.
type Capability uint

const (
	CapEncryption Capability = 1 << iota
	CapInvite
	CapTopic
	CapTyping
	CapLeave
	CapDeliveryReports
)

// Outgoing is a message handed to a backend for delivery.
type Outgoing struct {
	UID         string
	Body        string
	ContentType string
	Recipients  []string
	// RequestReport asks the network for a delivery report where supported.
	RequestReport bool
}

// Receipt identifies an accepted outgoing message.
type Receipt struct {
	ID        string
	Reference string // correlates later delivery reports, if any
}

// Incoming is a message reported by a backend.
type Incoming struct {
	ID          string
	Sender      string
	SenderName  string
	Body        string
	ContentType string
	Time        time.Time
	FromMe      bool
}

// Session is one connected protocol account. Every method may block on I/O
// and is called off the control loop.
type Session interface {
	Protocol() Protocol
	Connect(ctx context.Context, secret string) error
	Disconnect(ctx context.Context) error
	Capabilities(conv *Conversation) Capability

	Send(ctx context.Context, conv *Conversation, msg Outgoing) (Receipt, error)
	SetTyping(ctx context.Context, conv *Conversation, typing bool) error

	Join(ctx context.Context, room *Room) (*Conversation, error)
	Leave(ctx context.Context, conv *Conversation) error
	Invite(ctx context.Context, conv *Conversation, address, message string) error
	SetTopic(ctx context.Context, conv *Conversation, topic string) error
	Members(ctx context.Context, conv *Conversation) ([]Member, error)

	Encryption(ctx context.Context, conv *Conversation) (Encryption, error)
	SetEncryption(ctx context.Context, conv *Conversation, enable bool) (Encryption, error)
}
