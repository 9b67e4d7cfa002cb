package chat

import (
	"time"

	"github.com/matheus3301/souk/internal/backend"
)

// Delivery states of a message as seen by this client.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is a conversation entry. Optimistic entries carry a TempID and no ID
// until the server-confirmed record replaces them.
type Message struct {
	ID        backend.ID
	TempID    string
	ChatID    backend.ID
	SenderID  backend.ID
	Type      string
	Content   string
	ImageURL  string
	CreatedAt time.Time
	Read      bool // read by its recipient
	Status    string
	Error     string
}

// Optimistic reports whether the server has not confirmed the entry yet.
func (m Message) Optimistic() bool {
	return m.ID == ""
}

// Key identifies the entry across its optimistic and confirmed forms.
func (m Message) Key() string {
	if m.TempID != "" {
		return "tmp:" + m.TempID
	}
	return "id:" + string(m.ID)
}

func fromBackend(m backend.Message) Message {
	typ := m.MessageType
	if typ == "" {
		typ = backend.MessageText
	}
	return Message{
		ID:        m.ID,
		ChatID:    m.Chat,
		SenderID:  m.From(),
		Type:      typ,
		Content:   m.Content,
		ImageURL:  m.Image,
		CreatedAt: m.CreatedAt,
		Read:      m.IsRead,
		Status:    StatusSent,
	}
}

// Conversation is the list entry for a chat.
type Conversation struct {
	ID           backend.ID
	Other        backend.User
	ProductTitle string
	LastMessage  *Message
	LastActivity time.Time
	Unread       int
}

// MessageEvent reports a new or updated message. ReplacedTempID is set when a
// server record took the place of an optimistic entry.
type MessageEvent struct {
	ChatID         backend.ID
	Message        Message
	ReplacedTempID string
	Incoming       bool
}

// TypingChange carries the current set of remote typers in a conversation.
type TypingChange struct {
	ChatID backend.ID
	Users  []backend.ID
}

// ReadEvent reports that a participant read a conversation.
type ReadEvent struct {
	ChatID backend.ID
	UserID backend.ID
}

// ConversationsEvent carries the sorted list after any change.
type ConversationsEvent struct {
	Conversations []Conversation
	TotalUnread   int
}
