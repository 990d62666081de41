package store

import (
	"context"
	"math"
	"slices"
	"time"
)

// UpsertMessage inserts or updates a message (idempotent on uid). Status
// never moves backwards on update.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (uid, account, chat_key, msg_id, reference, sender_addr, sender_name, body, content_type, direction, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			msg_id = CASE WHEN excluded.msg_id != '' THEN excluded.msg_id ELSE messages.msg_id END,
			reference = CASE WHEN excluded.reference != '' THEN excluded.reference ELSE messages.reference END,
			status = MAX(messages.status, excluded.status)`,
		m.UID, m.Account, m.ChatKey, m.MsgID, m.Reference, m.SenderAddr, m.SenderName, m.Body,
		m.ContentType, m.Direction, m.Status, m.Timestamp, now)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE chats SET last_message_at = MAX(last_message_at, ?)
		WHERE account = ? AND chat_key = ?`, m.Timestamp, m.Account, m.ChatKey)
	return err
}

// ListMessages returns up to limit messages before the keyset position
// (beforeTs, beforeUID), oldest first. Messages order by timestamp, then by
// uid, so a page boundary inside one millisecond loses nothing. An empty
// beforeUID excludes the whole beforeTs millisecond; beforeTs <= 0 starts
// from the newest message.
func (db *DB) ListMessages(ctx context.Context, account, key string, beforeTs int64, beforeUID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = math.MaxInt64
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, uid, account, chat_key, msg_id, reference, sender_addr, sender_name, body, content_type, direction, status, timestamp
		FROM messages
		WHERE account = ? AND chat_key = ?
			AND (timestamp < ? OR (timestamp = ? AND uid < ?))
		ORDER BY timestamp DESC, uid DESC
		LIMIT ?`, account, key, beforeTs, beforeTs, beforeUID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UID, &m.Account, &m.ChatKey, &m.MsgID, &m.Reference, &m.SenderAddr,
			&m.SenderName, &m.Body, &m.ContentType, &m.Direction, &m.Status, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}
