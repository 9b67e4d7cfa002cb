package backend

import (
	"context"
	"net/url"
	"strconv"

	"github.com/matheus3301/souk/internal/httpapi"
)

// ChatAPI covers the REST side of messaging. The realtime link carries the same
// operations live; these are the fallback and the history source.
type ChatAPI struct {
	c *httpapi.Client
}

// NewChatAPI creates the chat service.
func NewChatAPI(c *httpapi.Client) *ChatAPI {
	return &ChatAPI{c: c}
}

func chatPath(chatID ID, suffix string) string {
	return "/chat/chats/" + url.PathEscape(string(chatID)) + "/" + suffix
}

// ListChats returns the user's conversations.
func (a *ChatAPI) ListChats(ctx context.Context) ([]Chat, error) {
	var out Page[Chat]
	if err := a.c.Get(ctx, "/chat/chats/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// GetChat returns one conversation.
func (a *ChatAPI) GetChat(ctx context.Context, chatID ID) (*Chat, error) {
	var out Chat
	if err := a.c.Get(ctx, chatPath(chatID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns one page of a conversation's history. page starts at 1.
func (a *ChatAPI) ListMessages(ctx context.Context, chatID ID, page int) (*Page[Message], error) {
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	var out Page[Message]
	if err := a.c.Get(ctx, chatPath(chatID, "messages/"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartChat opens (or returns the existing) conversation with a user, optionally
// about a product.
func (a *ChatAPI) StartChat(ctx context.Context, userID, productID ID) (*Chat, error) {
	body := map[string]any{"user_id": userID}
	if productID != "" {
		body["product_id"] = productID
	}
	var out Chat
	if err := a.c.Post(ctx, "/chat/chats/start/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText posts a text message over HTTP.
func (a *ChatAPI) SendText(ctx context.Context, chatID ID, content string) (*Message, error) {
	var out Message
	body := map[string]string{"content": content, "message_type": MessageText}
	if err := a.c.Post(ctx, chatPath(chatID, "messages/"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendImage uploads an image message.
func (a *ChatAPI) SendImage(ctx context.Context, chatID ID, name string, data []byte) (*Message, error) {
	var out Message
	form := &httpapi.Form{
		Fields: map[string]string{"message_type": MessageImage},
		Files:  []httpapi.File{{Field: "image", Name: name, Data: data}},
	}
	if err := a.c.PostForm(ctx, chatPath(chatID, "messages/"), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead acknowledges every message in the conversation.
func (a *ChatAPI) MarkRead(ctx context.Context, chatID ID) error {
	return a.c.Post(ctx, chatPath(chatID, "read/"), nil, nil)
}

// UnreadCount returns the server's aggregate unread count.
func (a *ChatAPI) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := a.c.Get(ctx, "/chat/unread-count/", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}
