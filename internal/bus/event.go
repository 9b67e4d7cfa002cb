package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix ("chat.", "realtime.", ...).
const (
	RealtimeStateChanged = "realtime.state_changed"
	RealtimeFailed       = "realtime.failed"

	ChatMessage       = "chat.message"
	ChatMessageFailed = "chat.message_failed"
	ChatTyping        = "chat.typing"
	ChatRead          = "chat.read"
	ChatConversations = "chat.conversations"

	ActivityNotification = "activity.notification"

	OutboxQueued = "outbox.queued"
	OutboxSent   = "outbox.sent"

	SessionSignedIn  = "session.signed_in"
	SessionSignedOut = "session.signed_out"
)
