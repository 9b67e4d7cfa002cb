package outbox

import (
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/store"
)

// Queued is the payload of an OutboxQueued event.
type Queued struct {
	TempID string
	ChatID string
	Kind   string
}

// Queue persists undelivered messages for the Sender to retry.
type Queue struct {
	db  *store.DB
	bus *bus.Bus
}

// NewQueue creates a queue backed by the outbox table.
func NewQueue(db *store.DB, b *bus.Bus) *Queue {
	return &Queue{db: db, bus: b}
}

// Enqueue stores a message under its temporary id. Enqueueing the same id again
// puts it back in the queue.
func (q *Queue) Enqueue(tempID string, chatID backend.ID, kind, body string) error {
	if err := q.db.QueueOutbox(tempID, string(chatID), kind, body); err != nil {
		return err
	}
	q.bus.Emit(bus.OutboxQueued, Queued{TempID: tempID, ChatID: string(chatID), Kind: kind})
	return nil
}

// Pending lists entries not yet sent, optionally for one conversation.
func (q *Queue) Pending(chatID string) ([]store.OutboxEntry, error) {
	return q.db.ListOutbox(chatID)
}
