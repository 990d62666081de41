package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/chat"
)

// History adapts DB to the persistence interfaces chats and accounts use.
type History struct {
	db *DB
}

var _ chat.Store = (*History)(nil)

func NewHistory(db *DB) *History {
	return &History{db: db}
}

// MessagesBefore loads a page of history. Loaded messages carry no backend
// correlation ID; only live traffic is matched by ID.
func (h *History) MessagesBefore(ctx context.Context, account, key string, cur chat.Cursor, limit int) ([]*chat.Message, error) {
	var before int64
	if !cur.Before.IsZero() {
		before = cur.Before.UnixMilli()
	}
	rows, err := h.db.ListMessages(ctx, account, key, before, cur.UID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]*chat.Message, len(rows))
	for i, r := range rows {
		out[i] = chat.RestoreMessage(chat.Message{
			UID:         r.UID,
			Reference:   r.Reference,
			Body:        r.Body,
			ContentType: r.ContentType,
			Direction:   chat.Direction(r.Direction),
			SenderAddr:  r.SenderAddr,
			SenderName:  r.SenderName,
			Time:        time.UnixMilli(r.Timestamp),
		}, chat.Status(r.Status))
	}
	return out, nil
}

func (h *History) SaveMessage(ctx context.Context, account, key string, m *chat.Message) error {
	return h.db.UpsertMessage(ctx, &Message{
		UID:         m.UID,
		Account:     account,
		ChatKey:     key,
		MsgID:       m.ID,
		Reference:   m.Reference,
		SenderAddr:  m.SenderAddr,
		SenderName:  m.SenderName,
		Body:        m.Body,
		ContentType: m.ContentType,
		Direction:   int(m.Direction),
		Status:      int(m.Status()),
		Timestamp:   m.Time.UnixMilli(),
	})
}

func (h *History) ListChats(ctx context.Context, account string) ([]chat.Record, error) {
	rows, err := h.db.ListChats(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]chat.Record, len(rows))
	for i, r := range rows {
		var last time.Time
		if r.LastMessageAt > 0 {
			last = time.UnixMilli(r.LastMessageAt)
		}
		out[i] = chat.Record{
			Account:       r.Account,
			Key:           r.Key,
			Name:          r.Name,
			Kind:          chat.Kind(r.Kind),
			Room:          r.Room,
			Protocol:      backend.Protocol(r.Protocol),
			Members:       r.Members,
			Unread:        r.UnreadCount,
			Archived:      r.Archived,
			Blocked:       r.Blocked,
			LastMessageAt: last,
		}
	}
	return out, nil
}

func (h *History) SaveChat(ctx context.Context, r chat.Record) error {
	var last int64
	if !r.LastMessageAt.IsZero() {
		last = r.LastMessageAt.UnixMilli()
	}
	return h.db.UpsertChat(ctx, &Chat{
		Account:       r.Account,
		Key:           r.Key,
		Name:          r.Name,
		Kind:          int(r.Kind),
		Room:          r.Room,
		Protocol:      uint(r.Protocol),
		Members:       r.Members,
		UnreadCount:   r.Unread,
		Archived:      r.Archived,
		Blocked:       r.Blocked,
		LastMessageAt: last,
	})
}

func (h *History) DeleteChat(ctx context.Context, account, key string) error {
	return h.db.DeleteChat(ctx, account, key)
}

// Credentials stores account secrets in the accounts table.
type Credentials struct {
	db *DB
}

func NewCredentials(db *DB) *Credentials {
	return &Credentials{db: db}
}

func (c *Credentials) Password(ctx context.Context, account string) (string, error) {
	a, err := c.db.GetAccount(ctx, account)
	if err != nil || a == nil {
		return "", err
	}
	return a.Secret, nil
}

func (c *Credentials) SetPassword(ctx context.Context, account, password string) error {
	return c.db.SetAccountSecret(ctx, account, password)
}
