package store

import (
	"database/sql"
	"time"
)

// LoadCredentials returns the stored tokens, or empty credentials when none are saved.
func (db *DB) LoadCredentials() (Credentials, error) {
	var c Credentials
	err := db.QueryRow(`SELECT access_token, refresh_token FROM credentials WHERE id = 1`).
		Scan(&c.Access, &c.Refresh)
	if err == sql.ErrNoRows {
		return Credentials{}, nil
	}
	return c, err
}

// SaveCredentials replaces the stored tokens.
func (db *DB) SaveCredentials(c Credentials) error {
	_, err := db.Exec(`
		INSERT INTO credentials (id, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		c.Access, c.Refresh, time.Now().UnixMilli())
	return err
}

// ClearCredentials removes the stored tokens.
func (db *DB) ClearCredentials() error {
	_, err := db.Exec(`DELETE FROM credentials`)
	return err
}
