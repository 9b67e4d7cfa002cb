package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertChat inserts or updates a cached chat summary.
func (db *DB) UpsertChat(c *Chat) error {
	_, err := db.Exec(`
		INSERT INTO chats (chat_id, other_user_id, other_name, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			other_user_id = CASE WHEN excluded.other_user_id != '' THEN excluded.other_user_id ELSE chats.other_user_id END,
			other_name = CASE WHEN excluded.other_name != '' THEN excluded.other_name ELSE chats.other_name END,
			unread_count = excluded.unread_count,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			updated_at = excluded.updated_at`,
		c.ChatID, c.OtherUserID, c.OtherName, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, time.Now().UnixMilli())
	return err
}

// ReplaceChats swaps the whole cached list for a fresh backend listing.
func (db *DB) ReplaceChats(chats []Chat) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, c := range chats {
		if _, err := tx.Exec(`
			INSERT INTO chats (chat_id, other_user_id, other_name, unread_count, last_message_at, last_message_preview, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ChatID, c.OtherUserID, c.OtherName, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, now); err != nil {
			return fmt.Errorf("insert chat %q: %w", c.ChatID, err)
		}
	}
	return tx.Commit()
}

// ListChats returns cached chats sorted by last activity, most recent first.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT chat_id, other_user_id, other_name, unread_count, last_message_at, last_message_preview
		FROM chats
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ChatID, &c.OtherUserID, &c.OtherName, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single cached chat, or nil when unknown.
func (db *DB) GetChat(chatID string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT chat_id, other_user_id, other_name, unread_count, last_message_at, last_message_preview
		FROM chats WHERE chat_id = ?`, chatID).
		Scan(&c.ChatID, &c.OtherUserID, &c.OtherName, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ChatCount returns the number of cached chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}
