package views

import (
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"\u2764\ufe0f", "\u2764"},
		{"a\u200db", "ab"},
		{"\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"line1\nline2", "line1\nline2"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]rpc.Conversation{
		{ID: "1", Other: backend.User{Username: "ana"}, ProductTitle: "Road bike", LastActivity: time.Now()},
		{ID: "2", Other: backend.User{Username: "bruno"}, ProductTitle: "Desk lamp", Unread: 2},
		{ID: "3", Other: backend.User{Username: "carla"}, LastMessage: &rpc.Message{Content: "is the BIKE still available?"}},
	})

	if got := cl.ChatByIndex(2); got != "2" {
		t.Errorf("ChatByIndex(2) = %q, want 2", got)
	}

	cl.SetFilter("bike")
	if got := cl.ChatByIndex(1); got != "1" {
		t.Errorf("filtered ChatByIndex(1) = %q, want 1", got)
	}
	if got := cl.ChatByIndex(2); got != "3" {
		t.Errorf("filtered ChatByIndex(2) = %q, want 3 (matched by last message)", got)
	}
	if got := cl.ChatByIndex(3); got != "" {
		t.Errorf("filtered ChatByIndex(3) = %q, want empty", got)
	}

	cl.ClearFilter()
	if got := cl.ChatByIndex(3); got != "3" {
		t.Errorf("ChatByIndex(3) after clear = %q, want 3", got)
	}
}

func TestMessagePreview(t *testing.T) {
	if got := messagePreview(rpc.Message{Type: "image"}); got != "[image]" {
		t.Errorf("image preview = %q", got)
	}
	if got := messagePreview(rpc.Message{Content: "hello", Status: "failed"}); got != "! hello" {
		t.Errorf("failed preview = %q", got)
	}
}

func TestNotificationsSelected(t *testing.T) {
	nv := NewNotificationsView(ui.DefaultTheme())
	nv.Update([]rpc.Notification{{ID: "a", Title: "New message"}, {ID: "b", Title: "Order paid", Read: true}})
	nv.Select(2, 0)
	n, ok := nv.Selected()
	if !ok || n.ID != "b" {
		t.Errorf("Selected() = %+v, %v; want b", n, ok)
	}
}
