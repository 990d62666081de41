// Package backendtest provides a scriptable backend.Session for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/matheus3301/chatty/internal/backend"
)

// Session records calls and answers them from its fields. Hooks, when set,
// override the canned answers.
type Session struct {
	Proto backend.Protocol
	Caps  backend.Capability

	ConnectErr       error
	DisconnectErr    error
	SendErr          error
	Receipt          backend.Receipt
	EncryptionState  backend.Encryption
	SetEncryptionErr error
	MemberList       []backend.Member

	OnSend    func(ctx context.Context, conv *backend.Conversation, msg backend.Outgoing) (backend.Receipt, error)
	OnConnect func(ctx context.Context, secret string) error

	mu          sync.Mutex
	sent        []backend.Outgoing
	secrets     []string
	disconnects int
	invites     []string
	topics      []string
	typing      []bool
}

var _ backend.Session = (*Session)(nil)

func (s *Session) Protocol() backend.Protocol { return s.Proto }

func (s *Session) Capabilities(*backend.Conversation) backend.Capability { return s.Caps }

func (s *Session) Connect(ctx context.Context, secret string) error {
	s.mu.Lock()
	s.secrets = append(s.secrets, secret)
	s.mu.Unlock()
	if s.OnConnect != nil {
		return s.OnConnect(ctx, secret)
	}
	return s.ConnectErr
}

func (s *Session) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return s.DisconnectErr
}

func (s *Session) Send(ctx context.Context, conv *backend.Conversation, msg backend.Outgoing) (backend.Receipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	if s.OnSend != nil {
		return s.OnSend(ctx, conv, msg)
	}
	if s.SendErr != nil {
		return backend.Receipt{}, s.SendErr
	}
	return s.Receipt, nil
}

func (s *Session) SetTyping(_ context.Context, _ *backend.Conversation, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, typing)
	return nil
}

func (s *Session) Join(_ context.Context, room *backend.Room) (*backend.Conversation, error) {
	return &backend.Conversation{ID: room.ID, Account: room.Account, Type: backend.ConversationRoom, Room: room}, nil
}

func (s *Session) Leave(context.Context, *backend.Conversation) error { return nil }

func (s *Session) Invite(_ context.Context, _ *backend.Conversation, address, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites = append(s.invites, address)
	return nil
}

func (s *Session) SetTopic(_ context.Context, _ *backend.Conversation, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return nil
}

func (s *Session) Members(context.Context, *backend.Conversation) ([]backend.Member, error) {
	return s.MemberList, nil
}

func (s *Session) Encryption(context.Context, *backend.Conversation) (backend.Encryption, error) {
	return s.EncryptionState, nil
}

func (s *Session) SetEncryption(_ context.Context, _ *backend.Conversation, enable bool) (backend.Encryption, error) {
	if s.SetEncryptionErr != nil {
		return backend.EncryptionUnsupported, s.SetEncryptionErr
	}
	if enable {
		return backend.EncryptionEnabled, nil
	}
	return backend.EncryptionDisabled, nil
}

// Sent returns the messages handed to Send so far.
func (s *Session) Sent() []backend.Outgoing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Outgoing(nil), s.sent...)
}

// Secrets returns the secrets passed to Connect so far.
func (s *Session) Secrets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.secrets...)
}

func (s *Session) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *Session) Invites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invites...)
}

func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.topics...)
}

func (s *Session) TypingCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.typing...)
}
