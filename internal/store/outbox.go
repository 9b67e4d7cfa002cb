package store

import (
	"database/sql"
	"time"
)

const outboxColumns = `id, temp_id, chat_id, kind, body, status, attempts, error_message, server_msg_id, created_at`

// QueueOutbox adds a message to the send outbox. Re-queuing an existing temp id
// resets it to queued.
func (db *DB) QueueOutbox(tempID, chatID, kind, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (temp_id, chat_id, kind, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)
		ON CONFLICT(temp_id) DO UPDATE SET
			status = 'queued',
			error_message = '',
			updated_at = excluded.updated_at`,
		tempID, chatID, kind, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status and counts the attempt.
func (db *DB) MarkOutboxSending(tempID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', attempts = attempts + 1, updated_at = ? WHERE temp_id = ?`, now, tempID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message ID.
func (db *DB) MarkOutboxSent(tempID, serverMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, error_message = '', updated_at = ? WHERE temp_id = ?`, serverMsgID, now, tempID)
	return err
}

// MarkOutboxRetry puts an entry back in the queue after a failed attempt.
func (db *DB) MarkOutboxRetry(tempID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'queued', error_message = ?, updated_at = ? WHERE temp_id = ?`, errMsg, now, tempID)
	return err
}

// MarkOutboxDeferred re-queues an entry without counting the attempt, for
// deliveries that never reached the backend.
func (db *DB) MarkOutboxDeferred(tempID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'queued', attempts = MAX(attempts - 1, 0), error_message = ?, updated_at = ? WHERE temp_id = ?`, errMsg, now, tempID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(tempID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE temp_id = ?`, errMsg, now, tempID)
	return err
}

// ResetStaleSending re-queues entries left in 'sending' by a crash.
func (db *DB) ResetStaleSending() (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = 'queued', updated_at = ? WHERE status = 'sending'`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetOutbox returns one entry by temp id, or nil when unknown.
func (db *DB) GetOutbox(tempID string) (*OutboxEntry, error) {
	rows, err := db.Query(`SELECT `+outboxColumns+` FROM outbox WHERE temp_id = ?`, tempID)
	if err != nil {
		return nil, err
	}
	entries, err := scanOutbox(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// PendingOutbox returns outbox entries that are still queued, oldest first.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`SELECT ` + outboxColumns + ` FROM outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return scanOutbox(rows)
}

// ListOutbox returns every entry that has not been sent, for display.
func (db *DB) ListOutbox(chatID string) ([]OutboxEntry, error) {
	q := `SELECT ` + outboxColumns + ` FROM outbox WHERE status != 'sent'`
	var args []any
	if chatID != "" {
		q += ` AND chat_id = ?`
		args = append(args, chatID)
	}
	rows, err := db.Query(q+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return scanOutbox(rows)
}

func scanOutbox(rows *sql.Rows) ([]OutboxEntry, error) {
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.TempID, &e.ChatID, &e.Kind, &e.Body, &e.Status, &e.Attempts, &e.ErrorMessage, &e.ServerMsgID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
