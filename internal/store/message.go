package store

import (
	"fmt"
	"time"
)

// UpsertMessage archives a server-confirmed message (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, sender_id, message_type, body, image_url, is_read, created_at, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			body = excluded.body,
			image_url = excluded.image_url,
			is_read = MAX(messages.is_read, excluded.is_read)`,
		m.ChatID, m.MsgID, m.SenderID, m.MessageType, m.Body, m.ImageURL, m.Read, m.CreatedAt, time.Now().UnixMilli())
	return err
}

// UpsertMessages archives a batch in one transaction.
func (db *DB) UpsertMessages(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (chat_id, msg_id, sender_id, message_type, body, image_url, is_read, created_at, stored_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_id, msg_id) DO UPDATE SET
				body = excluded.body,
				image_url = excluded.image_url,
				is_read = MAX(messages.is_read, excluded.is_read)`,
			m.ChatID, m.MsgID, m.SenderID, m.MessageType, m.Body, m.ImageURL, m.Read, m.CreatedAt, now); err != nil {
			return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns archived messages for a chat using keyset pagination on
// created_at, newest first.
func (db *DB) ListMessages(chatID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, chat_id, msg_id, sender_id, message_type, body, image_url, is_read, created_at
		FROM messages
		WHERE chat_id = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MsgID, &m.SenderID, &m.MessageType, &m.Body, &m.ImageURL, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkChatRead flags every archived message of a chat not sent by readerID as read
// and zeroes the cached unread counter.
func (db *DB) MarkChatRead(chatID, readerID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE messages SET is_read = 1 WHERE chat_id = ? AND sender_id != ? AND is_read = 0`, chatID, readerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	if _, err := tx.Exec(`UPDATE chats SET unread_count = 0 WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return tx.Commit()
}

// MessageCount returns the number of archived messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
