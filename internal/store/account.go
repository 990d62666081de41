package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertAccount records an account without touching its stored secret.
func (db *DB) UpsertAccount(ctx context.Context, a *Account) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, protocol, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			protocol = excluded.protocol,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		a.ID, a.Protocol, a.Enabled, now)
	return err
}

// GetAccount returns an account, or nil when it does not exist.
func (db *DB) GetAccount(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := db.QueryRowContext(ctx, `SELECT id, protocol, enabled, secret FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Protocol, &a.Enabled, &a.Secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAccountEnabled flips the enabled flag.
func (db *DB) SetAccountEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := db.ExecContext(ctx, `UPDATE accounts SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UnixMilli(), id)
	return err
}

// SetAccountSecret stores the credential used to connect the account.
func (db *DB) SetAccountSecret(ctx context.Context, id, secret string) error {
	_, err := db.ExecContext(ctx, `UPDATE accounts SET secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UnixMilli(), id)
	return err
}
