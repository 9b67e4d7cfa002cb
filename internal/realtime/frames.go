package realtime

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/souk/internal/backend"
)

// Outbound frame types.
const (
	FrameSendMessage = "send_message"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
	FrameMarkRead    = "mark_read"
	FrameJoinChat    = "join_chat"
	FrameLeaveChat   = "leave_chat"
)

// TypingEvent reports a remote user starting or stopping to type.
type TypingEvent struct {
	ChatID   backend.ID
	UserID   backend.ID
	Username string
}

// ReadReceipt reports that a user read a conversation (or some of its messages).
type ReadReceipt struct {
	ChatID     backend.ID
	UserID     backend.ID
	MessageIDs []backend.ID
}

// Notification is a user-level activity notice pushed on the global channel.
type Notification struct {
	ID        backend.ID `json:"id"`
	Category  string     `json:"category"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ServerError is an error frame sent by the backend.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return "realtime server error (" + e.Code + "): " + e.Message
	}
	return "realtime server error: " + e.Message
}

// Handlers receives decoded inbound frames. Each frame reaches at most one handler;
// nil handlers drop their frames.
type Handlers struct {
	Message      func(msg backend.Message, tempID string)
	TypingStart  func(TypingEvent)
	TypingStop   func(TypingEvent)
	Read         func(ReadReceipt)
	Connected    func(userID backend.ID)
	Error        func(error)
	Notification func(Notification)
}

type outboundFrame struct {
	Type        string     `json:"type"`
	ChatID      backend.ID `json:"chat_id,omitempty"`
	Content     string     `json:"content,omitempty"`
	MessageType string     `json:"message_type,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	TempID      string     `json:"temp_id,omitempty"`
}

type inboundFrame struct {
	Type         string          `json:"type"`
	ChatID       backend.ID      `json:"chat_id"`
	UserID       backend.ID      `json:"user_id"`
	Username     string          `json:"username"`
	IsTyping     *bool           `json:"is_typing"`
	Message      json.RawMessage `json:"message"`
	Data         json.RawMessage `json:"data"`
	Notification *Notification   `json:"notification"`
	MessageIDs   []backend.ID    `json:"message_ids"`
	TempID       string          `json:"temp_id"`
	Title        string          `json:"title"`
	Category     string          `json:"category"`
	Code         string          `json:"code"`
	Detail       string          `json:"detail"`
}

// chatMessage extracts the message object from "message" or "data".
func (f *inboundFrame) chatMessage() (backend.Message, bool) {
	for _, raw := range []json.RawMessage{f.Message, f.Data} {
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var m backend.Message
		if err := json.Unmarshal(raw, &m); err == nil {
			return m, true
		}
	}
	return backend.Message{}, false
}

// text returns "message" when it is a plain string, else "detail".
func (f *inboundFrame) text() string {
	if len(f.Message) > 0 && f.Message[0] == '"' {
		var s string
		if err := json.Unmarshal(f.Message, &s); err == nil {
			return s
		}
	}
	return f.Detail
}
