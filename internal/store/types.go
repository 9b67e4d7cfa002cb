package store

// Credentials are the persisted session tokens.
type Credentials struct {
	Access  string
	Refresh string
}

// Chat is the cached summary of a conversation, used to paint the list before
// the backend answers.
type Chat struct {
	ChatID             string
	OtherUserID        string
	OtherName          string
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is an archived, server-confirmed message.
type Message struct {
	ID          int64
	ChatID      string
	MsgID       string
	SenderID    string
	MessageType string
	Body        string
	ImageURL    string
	Read        bool
	CreatedAt   int64
}

// Outbox statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a message that has not been delivered live yet.
type OutboxEntry struct {
	ID           int64
	TempID       string
	ChatID       string
	Kind         string // text, image
	Body         string // text content or image URL
	Status       string
	Attempts     int
	ErrorMessage string
	ServerMsgID  string
	CreatedAt    int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
