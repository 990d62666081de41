package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// UpsertChat inserts or updates a chat record.
func (db *DB) UpsertChat(ctx context.Context, c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO chats (account, chat_key, name, kind, room_id, protocol, members, unread_count, archived, blocked, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, chat_key) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			room_id = CASE WHEN excluded.room_id != '' THEN excluded.room_id ELSE chats.room_id END,
			members = excluded.members,
			unread_count = excluded.unread_count,
			archived = excluded.archived,
			blocked = excluded.blocked,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		c.Account, c.Key, c.Name, c.Kind, c.Room, c.Protocol, strings.Join(c.Members, ","),
		c.UnreadCount, c.Archived, c.Blocked, c.LastMessageAt, now)
	return err
}

// ListChats returns an account's chats sorted by last message timestamp descending.
func (db *DB) ListChats(ctx context.Context, account string) ([]Chat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT account, chat_key, name, kind, room_id, protocol, members, unread_count, archived, blocked, last_message_at
		FROM chats
		WHERE account = ?
		ORDER BY last_message_at DESC, chat_key`, account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat, or nil when it does not exist.
func (db *DB) GetChat(ctx context.Context, account, key string) (*Chat, error) {
	row := db.QueryRowContext(ctx, `
		SELECT account, chat_key, name, kind, room_id, protocol, members, unread_count, archived, blocked, last_message_at
		FROM chats
		WHERE account = ? AND chat_key = ?`, account, key)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteChat removes a chat and its messages.
func (db *DB) DeleteChat(ctx context.Context, account, key string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE account = ? AND chat_key = ?`, account, key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE account = ? AND chat_key = ?`, account, key); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(s scanner) (*Chat, error) {
	var c Chat
	var members string
	if err := s.Scan(&c.Account, &c.Key, &c.Name, &c.Kind, &c.Room, &c.Protocol, &members,
		&c.UnreadCount, &c.Archived, &c.Blocked, &c.LastMessageAt); err != nil {
		return nil, err
	}
	if members != "" {
		c.Members = strings.Split(members, ",")
	}
	return &c, nil
}
