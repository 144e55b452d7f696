package storage

import "context"

// GetOrCreateUser finds or creates a user by Telegram user ID.
// Updates last_seen and username on each call.
func (db *DB) GetOrCreateUser(ctx context.Context, userID int64, username string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, username)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (id) DO UPDATE
			SET last_seen = NOW(), username = COALESCE(NULLIF($2, ''), users.username)
	`, userID, username)
	return err
}
