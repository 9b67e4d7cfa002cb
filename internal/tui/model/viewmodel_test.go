package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/rpc"
)

func event(t *testing.T, kind string, payload any) *rpc.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &rpc.Event{Kind: kind, Payload: raw}
}

func openThread(vm *ViewModel, chatID string, msgs ...rpc.Message) {
	vm.activeChat = chatID
	vm.messages = msgs
}

func TestApplyMessageReplacesOptimistic(t *testing.T) {
	vm := NewViewModel(nil)
	openThread(vm, "7", rpc.Message{TempID: "tmp-1", ChatID: "7", Content: "hi", Status: "pending"})

	c := vm.ApplyEvent(event(t, bus.ChatMessage, rpc.MessageEvent{
		ChatID:         "7",
		Message:        rpc.Message{ID: "501", ChatID: "7", Content: "hi", Status: "sent", CreatedAt: time.Now()},
		ReplacedTempID: "tmp-1",
	}))
	if c&ChangeThread == 0 {
		t.Errorf("change = %b, want thread redraw", c)
	}
	msgs := vm.Messages()
	if len(msgs) != 1 || msgs[0].ID != "501" || msgs[0].Status != "sent" {
		t.Errorf("messages = %+v, want the confirmed entry only", msgs)
	}
}

func TestApplyMessageDropsDuplicate(t *testing.T) {
	vm := NewViewModel(nil)
	openThread(vm, "7", rpc.Message{ID: "9", ChatID: "7", Content: "old"})

	evt := event(t, bus.ChatMessage, rpc.MessageEvent{ChatID: "7", Message: rpc.Message{ID: "9", ChatID: "7", Content: "old"}, Incoming: true})
	vm.ApplyEvent(evt)
	vm.ApplyEvent(evt)
	if n := len(vm.Messages()); n != 1 {
		t.Errorf("len(messages) = %d, want 1", n)
	}

	vm.ApplyEvent(event(t, bus.ChatMessage, rpc.MessageEvent{ChatID: "7", Message: rpc.Message{ID: "10", ChatID: "7"}, Incoming: true}))
	if n := len(vm.Messages()); n != 2 {
		t.Errorf("len(messages) = %d, want 2 after a new message", n)
	}
}

func TestApplyMessageOtherChat(t *testing.T) {
	vm := NewViewModel(nil)
	openThread(vm, "7")

	c := vm.ApplyEvent(event(t, bus.ChatMessage, rpc.MessageEvent{ChatID: "8", Message: rpc.Message{ID: "1"}}))
	if c != ChangeConversations {
		t.Errorf("change = %b, want conversations only", c)
	}
	if len(vm.Messages()) != 0 {
		t.Error("message for another chat landed in the open thread")
	}
}

func TestApplyTyping(t *testing.T) {
	vm := NewViewModel(nil)
	vm.conversations = []rpc.Conversation{{ID: "7"}, {ID: "8"}}

	vm.ApplyEvent(event(t, bus.ChatTyping, rpc.TypingEvent{ChatID: "8", Users: []string{"42"}}))
	c, _ := vm.Conversation("8")
	if len(c.Typing) != 1 || c.Typing[0] != "42" {
		t.Errorf("Typing = %v, want [42]", c.Typing)
	}

	vm.ApplyEvent(event(t, bus.ChatTyping, rpc.TypingEvent{ChatID: "8"}))
	c, _ = vm.Conversation("8")
	if len(c.Typing) != 0 {
		t.Errorf("Typing = %v, want cleared", c.Typing)
	}
}

func TestApplyMessageFailed(t *testing.T) {
	vm := NewViewModel(nil)
	openThread(vm, "7", rpc.Message{TempID: "tmp-2", ChatID: "7", Status: "pending"})

	vm.ApplyEvent(event(t, bus.ChatMessageFailed, map[string]string{"TempID": "tmp-2", "ChatID": "7", "Error": "offline"}))
	m := vm.Messages()[0]
	if m.Status != "failed" || m.Error != "offline" {
		t.Errorf("message = %+v, want failed/offline", m)
	}
	if msg := vm.Flash.GetMessage(); msg == nil || msg.Text != "Message not delivered: offline" {
		t.Errorf("flash = %+v", msg)
	}
}

func TestApplyNotification(t *testing.T) {
	vm := NewViewModel(nil)
	n := rpc.Notification{ID: "n1", Category: "order", Title: "Order shipped", CreatedAt: time.Now()}

	c := vm.ApplyEvent(event(t, bus.ActivityNotification, n))
	if c&ChangeNotifications == 0 {
		t.Errorf("change = %b, want notifications", c)
	}
	if c := vm.ApplyEvent(event(t, bus.ActivityNotification, n)); c != ChangeNone {
		t.Errorf("repeat change = %b, want none", c)
	}
	if _, unread := vm.Unread(); unread != 1 {
		t.Errorf("unread notifications = %d, want 1", unread)
	}
	if got := vm.Notifications(); len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("Notifications() = %+v", got)
	}
}

func TestApplyEventKinds(t *testing.T) {
	vm := NewViewModel(nil)
	tests := []struct {
		kind string
		want Change
	}{
		{bus.RealtimeStateChanged, ChangeStatus},
		{bus.RealtimeFailed, ChangeStatus},
		{bus.SessionSignedOut, ChangeStatus},
		{bus.OutboxQueued, ChangeStatus},
		{bus.ChatRead, ChangeConversations},
		{bus.ChatConversations, ChangeConversations},
		{"unknown.kind", ChangeNone},
	}
	for _, tt := range tests {
		if got := vm.ApplyEvent(&rpc.Event{Kind: tt.kind, Payload: json.RawMessage(`{}`)}); got != tt.want {
			t.Errorf("ApplyEvent(%s) = %b, want %b", tt.kind, got, tt.want)
		}
	}
}
