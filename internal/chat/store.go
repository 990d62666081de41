package chat

import (
	"context"
	"time"

	"github.com/matheus3301/chatty/internal/backend"
)

// Record is the persisted form of a chat.
type Record struct {
	Account       string
	Key           string
	Name          string
	Kind          Kind
	Room          string
	Protocol      backend.Protocol
	Members       []string
	Unread        int
	Archived      bool
	Blocked       bool
	LastMessageAt time.Time
}

// Cursor positions a history page. The zero Cursor means "newest". Messages
// sharing the Before timestamp are ordered by UID, so a page continues with
// those whose UID sorts below UID.
type Cursor struct {
	Before time.Time
	UID    string
}

// History is the message persistence a chat reads pages from and writes
// new or updated messages to.
type History interface {
	// MessagesBefore returns up to limit messages older than cur, oldest first.
	MessagesBefore(ctx context.Context, account, key string, cur Cursor, limit int) ([]*Message, error)
	SaveMessage(ctx context.Context, account, key string, msg *Message) error
}

// Store adds chat-level persistence to History.
type Store interface {
	History
	ListChats(ctx context.Context, account string) ([]Record, error)
	SaveChat(ctx context.Context, r Record) error
	DeleteChat(ctx context.Context, account, key string) error
}
