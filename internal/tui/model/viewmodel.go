package model

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/client"
	"github.com/matheus3301/souk/internal/tui/ui"
)

// Change tells the app which panes an event touched.
type Change int

const ChangeNone Change = 0

const (
	ChangeConversations Change = 1 << iota
	ChangeThread
	ChangeNotifications
	ChangeStatus
)

// ViewModel caches daemon state for the views and folds streamed events into it.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	status        *rpc.StatusResponse
	conversations []rpc.Conversation
	totalUnread   int
	activeChat    string
	messages      []rpc.Message
	hasMore       bool
	page          int
	notifications []rpc.Notification
	unreadNotes   int

	Flash *ui.FlashModel
}

// NewViewModel creates a view model backed by the daemon client. c may be nil
// when only ApplyEvent is exercised.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client: c,
		Flash:  ui.NewFlashModel(),
	}
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Session.Status(ctx, &rpc.StatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.Chat.ListConversations(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.totalUnread = resp.TotalUnread
	vm.mu.Unlock()
	return nil
}

// OpenChat makes chatID the active conversation and loads its first page.
func (vm *ViewModel) OpenChat(ctx context.Context, chatID string) error {
	vm.mu.RLock()
	prev := vm.activeChat
	vm.mu.RUnlock()
	if prev != "" && prev != chatID {
		_ = vm.client.Chat.Close(ctx, prev)
	}

	resp, err := vm.client.Chat.Open(ctx, chatID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.activeChat = chatID
	vm.messages = resp.Messages
	// Open does not know the history depth; the first LoadOlder finds out.
	vm.hasMore = true
	vm.page = 1
	vm.mu.Unlock()
	return vm.client.Chat.MarkRead(ctx, chatID)
}

// CloseChat leaves the active conversation.
func (vm *ViewModel) CloseChat(ctx context.Context) {
	vm.mu.Lock()
	chatID := vm.activeChat
	vm.activeChat = ""
	vm.messages = nil
	vm.mu.Unlock()
	if chatID != "" {
		_ = vm.client.Chat.Close(ctx, chatID)
	}
}

// LoadOlder fetches the next history page of the active conversation.
func (vm *ViewModel) LoadOlder(ctx context.Context) error {
	vm.mu.RLock()
	chatID, page, more := vm.activeChat, vm.page, vm.hasMore
	vm.mu.RUnlock()
	if chatID == "" || !more {
		return nil
	}
	resp, err := vm.client.Chat.LoadHistory(ctx, &rpc.HistoryRequest{ChatID: chatID, Page: page + 1})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activeChat == chatID {
		vm.messages = resp.Messages
		vm.hasMore = resp.HasMore
		vm.page = page + 1
	}
	vm.mu.Unlock()
	return nil
}

// SendText sends text to the active conversation. The optimistic entry arrives
// through the event stream.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	chatID := vm.ActiveChat()
	if chatID == "" {
		return fmt.Errorf("no conversation open")
	}
	_, err := vm.client.Chat.SendText(ctx, &rpc.SendTextRequest{ChatID: chatID, Text: text})
	return err
}

// Typing tells the other side the user is typing in the active conversation.
func (vm *ViewModel) Typing(ctx context.Context) error {
	chatID := vm.ActiveChat()
	if chatID == "" {
		return nil
	}
	return vm.client.Chat.Typing(ctx, chatID)
}

// Search runs a full-text query over the local archive, optionally within one chat.
func (vm *ViewModel) Search(ctx context.Context, query, chatID string) ([]rpc.SearchResult, error) {
	resp, err := vm.client.Chat.Search(ctx, &rpc.SearchRequest{Query: query, ChatID: chatID, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// StartChat opens (or reuses) a conversation with userID about productID.
func (vm *ViewModel) StartChat(ctx context.Context, userID, productID string) (string, error) {
	resp, err := vm.client.Chat.StartChat(ctx, &rpc.StartChatRequest{UserID: userID, ProductID: productID})
	if err != nil {
		return "", err
	}
	return resp.ChatID, nil
}

// LoadNotifications fetches the activity feed.
func (vm *ViewModel) LoadNotifications(ctx context.Context) error {
	resp, err := vm.client.Activity.List(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.notifications = resp.Items
	vm.unreadNotes = resp.Unread
	vm.mu.Unlock()
	return nil
}

// MarkNotificationRead marks one feed entry read.
func (vm *ViewModel) MarkNotificationRead(ctx context.Context, id string) error {
	if err := vm.client.Activity.MarkRead(ctx, id); err != nil {
		return err
	}
	return vm.LoadNotifications(ctx)
}

// MarkAllNotificationsRead marks the whole feed read.
func (vm *ViewModel) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	n, err := vm.client.Activity.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	return n, vm.LoadNotifications(ctx)
}

// Login signs in with email and password.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	if _, err := vm.client.Session.Login(ctx, &rpc.LoginRequest{Email: email, Password: password}); err != nil {
		return err
	}
	return vm.LoadStatus(ctx)
}

// OAuthURL returns the provider authorization URL.
func (vm *ViewModel) OAuthURL(ctx context.Context, provider string) (string, error) {
	resp, err := vm.client.Session.OAuthURL(ctx, &rpc.OAuthURLRequest{Provider: provider})
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Logout signs out and drops every cached view.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if err := vm.client.Session.Logout(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = nil
	vm.messages = nil
	vm.activeChat = ""
	vm.notifications = nil
	vm.totalUnread = 0
	vm.unreadNotes = 0
	vm.mu.Unlock()
	return vm.LoadStatus(ctx)
}

// Reconnect restarts the realtime link after it gave up.
func (vm *ViewModel) Reconnect(ctx context.Context) error {
	return vm.client.Session.Reconnect(ctx)
}

// Watch streams daemon events into ApplyEvent and calls onChange for every
// event that touched cached state. It returns when ctx ends or the stream breaks.
func (vm *ViewModel) Watch(ctx context.Context, onChange func(Change)) error {
	stream, err := vm.client.Session.WatchEvents(ctx, &rpc.WatchRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		if c := vm.ApplyEvent(evt); c != ChangeNone {
			onChange(c)
		}
	}
}

// ApplyEvent folds one daemon event into the cache and reports what changed.
// Events that carry no usable payload ask for a reload of the affected pane.
func (vm *ViewModel) ApplyEvent(evt *rpc.Event) Change {
	switch {
	case evt.Kind == bus.ChatMessage:
		var me rpc.MessageEvent
		if err := json.Unmarshal(evt.Payload, &me); err != nil {
			return ChangeConversations
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if me.ChatID != vm.activeChat {
			return ChangeConversations
		}
		vm.messages = upsertMessage(vm.messages, me)
		return ChangeThread | ChangeConversations
	case evt.Kind == bus.ChatTyping:
		var te rpc.TypingEvent
		if err := json.Unmarshal(evt.Payload, &te); err != nil {
			return ChangeNone
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		for i := range vm.conversations {
			if vm.conversations[i].ID == te.ChatID {
				vm.conversations[i].Typing = te.Users
			}
		}
		if te.ChatID == vm.activeChat {
			return ChangeThread | ChangeConversations
		}
		return ChangeConversations
	case evt.Kind == bus.ChatMessageFailed:
		var f struct {
			TempID string
			ChatID string
			Error  string
		}
		if err := json.Unmarshal(evt.Payload, &f); err == nil {
			vm.Flash.Warn("Message not delivered: " + f.Error)
			vm.mu.Lock()
			for i := range vm.messages {
				if vm.messages[i].TempID == f.TempID {
					vm.messages[i].Status = "failed"
					vm.messages[i].Error = f.Error
				}
			}
			vm.mu.Unlock()
		}
		return ChangeThread | ChangeConversations
	case strings.HasPrefix(evt.Kind, "chat."):
		return ChangeConversations
	case evt.Kind == bus.ActivityNotification:
		var n rpc.Notification
		if err := json.Unmarshal(evt.Payload, &n); err != nil {
			return ChangeNotifications
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if slices.ContainsFunc(vm.notifications, func(x rpc.Notification) bool { return x.ID == n.ID }) {
			return ChangeNone
		}
		vm.notifications = append([]rpc.Notification{n}, vm.notifications...)
		if !n.Read {
			vm.unreadNotes++
		}
		vm.Flash.Info(n.Title)
		return ChangeNotifications | ChangeStatus
	case evt.Kind == bus.RealtimeFailed:
		vm.Flash.Warn("Realtime connection lost, :reconnect to retry")
		return ChangeStatus
	case strings.HasPrefix(evt.Kind, "realtime."), strings.HasPrefix(evt.Kind, "session."):
		return ChangeStatus
	case strings.HasPrefix(evt.Kind, "outbox."):
		return ChangeStatus
	}
	return ChangeNone
}

// upsertMessage places a streamed message into a newest-last thread. A
// confirmed message replaces its optimistic twin; a repeat is dropped.
func upsertMessage(msgs []rpc.Message, me rpc.MessageEvent) []rpc.Message {
	m := me.Message
	for i := range msgs {
		switch {
		case me.ReplacedTempID != "" && msgs[i].TempID == me.ReplacedTempID:
			msgs[i] = m
			return msgs
		case m.ID != "" && msgs[i].ID == m.ID:
			msgs[i] = m
			return msgs
		case m.ID == "" && m.TempID != "" && msgs[i].TempID == m.TempID:
			msgs[i] = m
			return msgs
		}
	}
	return append(msgs, m)
}

// Status returns the cached session status, or nil before the first load.
func (vm *ViewModel) Status() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// SelfID returns the signed-in user's ID.
func (vm *ViewModel) SelfID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil || vm.status.User == nil {
		return ""
	}
	return string(vm.status.User.ID)
}

// Conversations returns a copy of the cached conversation list.
func (vm *ViewModel) Conversations() []rpc.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.conversations)
}

// Conversation looks up a cached conversation.
func (vm *ViewModel) Conversation(chatID string) (rpc.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.ID == chatID {
			return c, true
		}
	}
	return rpc.Conversation{}, false
}

// ActiveChat returns the open conversation ID.
func (vm *ViewModel) ActiveChat() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeChat
}

// Messages returns a copy of the active thread, oldest first.
func (vm *ViewModel) Messages() []rpc.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.messages)
}

// HasMore reports whether older history can be loaded.
func (vm *ViewModel) HasMore() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.hasMore
}

// Notifications returns a copy of the cached feed, newest first.
func (vm *ViewModel) Notifications() []rpc.Notification {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.notifications)
}

// Unread returns the unread message and notification totals.
func (vm *ViewModel) Unread() (messages, notifications int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.totalUnread, vm.unreadNotes
}
