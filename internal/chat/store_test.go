package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"go.uber.org/zap"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(StoreOptions{Now: clk.Now, TypingTTL: time.Hour}, nil, zap.NewNop())
	s.SetMe("1")
	return s, clk
}

func serverMsg(id, chat, sender, content string, at time.Time) backend.Message {
	return backend.Message{
		ID:          backend.ID(id),
		Chat:        backend.ID(chat),
		SenderID:    backend.ID(sender),
		MessageType: backend.MessageText,
		Content:     content,
		CreatedAt:   at,
	}
}

func TestUnreadCounting(t *testing.T) {
	s, clk := newTestStore(t)
	now := clk.Now()

	s.Receive(serverMsg("10", "42", "5", "hi", now), "")
	s.Receive(serverMsg("11", "42", "5", "there", now.Add(time.Second)), "")
	s.Receive(serverMsg("12", "42", "1", "my own echo", now.Add(2*time.Second)), "")

	c, _ := s.Conversation("42")
	if c.Unread != 2 {
		t.Errorf("unread = %d, want 2 (own messages never count)", c.Unread)
	}

	s.Open("42")
	s.Receive(serverMsg("13", "42", "5", "while open", now.Add(3*time.Second)), "")
	c, _ = s.Conversation("42")
	if c.Unread != 2 {
		t.Errorf("unread = %d, want 2 (open conversation does not count)", c.Unread)
	}
}

func TestTotalUnreadAndMarkRead(t *testing.T) {
	s, clk := newTestStore(t)
	now := clk.Now()
	s.LoadConversations([]backend.Chat{
		{ID: "a", UnreadCount: 3, UpdatedAt: now},
		{ID: "b", UnreadCount: 0, UpdatedAt: now.Add(-time.Minute)},
		{ID: "c", UnreadCount: 2, UpdatedAt: now.Add(-2 * time.Minute)},
	})

	if got := s.TotalUnread(); got != 5 {
		t.Fatalf("TotalUnread = %d, want 5", got)
	}
	if prev := s.MarkRead("a"); prev != 3 {
		t.Errorf("MarkRead returned %d, want 3", prev)
	}
	if got := s.TotalUnread(); got != 2 {
		t.Errorf("TotalUnread = %d, want 2", got)
	}
	c, _ := s.Conversation("c")
	if c.Unread != 2 {
		t.Errorf("other conversation changed: %d", c.Unread)
	}
}

func TestOptimisticReplacedInPlace(t *testing.T) {
	s, clk := newTestStore(t)

	var events []MessageEvent
	s.OnMessage(func(e MessageEvent) { events = append(events, e) })

	opt := s.AddOptimistic("42", backend.MessageText, "hello", "")
	if opt.TempID == "" || !opt.Optimistic() || opt.Status != StatusPending {
		t.Fatalf("optimistic = %+v", opt)
	}

	confirmed, isNew := s.Receive(serverMsg("500", "42", "1", "hello", clk.Now().Add(3*time.Second)), "")
	if !isNew {
		t.Fatal("first server copy should be new")
	}
	if confirmed.TempID != opt.TempID || confirmed.ID != "500" {
		t.Errorf("confirmed = %+v", confirmed)
	}

	msgs := s.Messages("42")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Status != StatusSent {
		t.Errorf("status = %q", msgs[0].Status)
	}
	last := events[len(events)-1]
	if last.ReplacedTempID != opt.TempID || last.Incoming {
		t.Errorf("event = %+v", last)
	}

	// The same server record arriving again over another path is dropped.
	if _, isNew := s.Receive(serverMsg("500", "42", "1", "hello", clk.Now()), ""); isNew {
		t.Error("duplicate server id should not be new")
	}
	if n := len(s.Messages("42")); n != 1 {
		t.Errorf("got %d messages after duplicate, want 1", n)
	}
}

func TestOptimisticOutsideWindowIsNotMerged(t *testing.T) {
	s, clk := newTestStore(t)

	s.AddOptimistic("42", backend.MessageText, "hello", "")
	s.Receive(serverMsg("500", "42", "1", "hello", clk.Now().Add(11*time.Second)), "")

	if n := len(s.Messages("42")); n != 2 {
		t.Errorf("got %d messages, want 2 (outside the match window)", n)
	}
}

func TestEchoedTempIDWins(t *testing.T) {
	s, clk := newTestStore(t)

	opt := s.AddOptimistic("42", backend.MessageText, "hello", "")
	// Content differs (server trimmed it) but the temp id is echoed back.
	s.Receive(serverMsg("500", "42", "1", "hello ", clk.Now().Add(time.Minute)), opt.TempID)

	msgs := s.Messages("42")
	if len(msgs) != 1 || msgs[0].ID != "500" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestIdenticalSendsReconcileOldestFirst(t *testing.T) {
	s, clk := newTestStore(t)

	first := s.AddOptimistic("42", backend.MessageText, "ok", "")
	clk.Advance(time.Second)
	second := s.AddOptimistic("42", backend.MessageText, "ok", "")

	a, _ := s.Receive(serverMsg("1", "42", "1", "ok", clk.Now()), "")
	b, _ := s.Receive(serverMsg("2", "42", "1", "ok", clk.Now().Add(time.Second)), "")
	if a.TempID != first.TempID || b.TempID != second.TempID {
		t.Errorf("matched %s,%s want %s,%s", a.TempID, b.TempID, first.TempID, second.TempID)
	}
	if n := len(s.Messages("42")); n != 2 {
		t.Errorf("got %d messages, want 2", n)
	}
}

func TestMessagesStaySortedByCreation(t *testing.T) {
	s, clk := newTestStore(t)
	base := clk.Now()

	s.Receive(serverMsg("3", "42", "5", "c", base.Add(3*time.Second)), "")
	s.Receive(serverMsg("1", "42", "5", "a", base.Add(1*time.Second)), "")
	s.LoadMessages("42", []backend.Message{
		serverMsg("2", "42", "5", "b", base.Add(2*time.Second)),
		serverMsg("3", "42", "5", "c", base.Add(3*time.Second)),
	})

	msgs := s.Messages("42")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("not sorted at %d: %v", i, msgs)
		}
	}
}

func TestConversationsSortedByActivity(t *testing.T) {
	s, clk := newTestStore(t)
	now := clk.Now()
	s.LoadConversations([]backend.Chat{
		{ID: "a", UpdatedAt: now.Add(-time.Hour)},
		{ID: "b", UpdatedAt: now.Add(-time.Minute)},
	})

	s.Receive(serverMsg("9", "a", "5", "bump", now), "")

	convs := s.Conversations()
	if convs[0].ID != "a" || convs[1].ID != "b" {
		t.Errorf("order = %s,%s want a,b", convs[0].ID, convs[1].ID)
	}
	if Preview(convs[0].LastMessage) != "bump" {
		t.Errorf("preview = %q", Preview(convs[0].LastMessage))
	}
}

func TestTypingSet(t *testing.T) {
	s, clk := newTestStore(t)

	var changes []TypingChange
	s.OnTyping(func(c TypingChange) { changes = append(changes, c) })

	s.TypingStart("42", "5")
	s.TypingStart("42", "6")
	s.TypingStart("42", "1") // self, ignored
	if got := s.Typing("42"); len(got) != 2 {
		t.Fatalf("typing = %v", got)
	}

	s.TypingStop("42", "6")
	s.Receive(serverMsg("1", "42", "5", "done typing", clk.Now()), "")
	if got := s.Typing("42"); len(got) != 0 {
		t.Errorf("typing = %v, want empty", got)
	}
	if len(changes) != 4 {
		t.Errorf("changes = %d, want 4", len(changes))
	}
}

func TestTypingExpires(t *testing.T) {
	s := NewStore(StoreOptions{TypingTTL: 20 * time.Millisecond}, nil, zap.NewNop())
	done := make(chan TypingChange, 4)
	s.OnTyping(func(c TypingChange) { done <- c })

	s.TypingStart("42", "5")
	<-done

	select {
	case c := <-done:
		if len(c.Users) != 0 {
			t.Errorf("users = %v, want none after expiry", c.Users)
		}
	case <-time.After(time.Second):
		t.Fatal("typing indicator never expired")
	}
}

func TestTypingRefreshAfterTimerFired(t *testing.T) {
	s, _ := newTestStore(t)

	s.TypingStart("42", "5")
	s.mu.Lock()
	fired := s.typing["42"]["5"]
	s.mu.Unlock()
	fired.Stop() // as if it had fired with its expiry still pending

	s.TypingStart("42", "5")
	s.expireTyping("42", "5", fired)

	if got := s.Typing("42"); len(got) != 1 || got[0] != "5" {
		t.Errorf("typing = %v, want [5] after a refresh at expiry", got)
	}
}

func TestUnknownSelfCountsNothingUnread(t *testing.T) {
	s := NewStore(StoreOptions{TypingTTL: time.Hour}, nil, zap.NewNop())
	now := time.Now()

	s.Receive(serverMsg("10", "42", "1", "sent from my phone", now), "")
	if c, _ := s.Conversation("42"); c.Unread != 0 {
		t.Errorf("unread = %d before the profile is known, want 0", c.Unread)
	}

	s.SetMe("1")
	s.Receive(serverMsg("11", "42", "5", "hi", now.Add(time.Second)), "")
	if c, _ := s.Conversation("42"); c.Unread != 1 {
		t.Errorf("unread = %d, want 1", c.Unread)
	}
}

func TestSubscriptionSlotReplacement(t *testing.T) {
	s, _ := newTestStore(t)

	var a, b int
	subA := s.OnRead(func(ReadEvent) { a++ })
	subB := s.OnRead(func(ReadEvent) { b++ })

	s.ApplyReadReceipt("42", "5", nil)
	if a != 0 || b != 1 {
		t.Fatalf("a=%d b=%d, want 0 and 1", a, b)
	}

	subA.Cancel() // stale handle must not clear B
	s.ApplyReadReceipt("42", "5", nil)
	if b != 2 {
		t.Errorf("b = %d, want 2", b)
	}

	subB.Cancel()
	subB.Cancel()
	s.ApplyReadReceipt("42", "5", nil)
	if b != 2 {
		t.Errorf("b = %d after cancel, want 2", b)
	}
}

func TestReadReceiptMarksOwnMessages(t *testing.T) {
	s, clk := newTestStore(t)
	s.Receive(serverMsg("1", "42", "1", "mine", clk.Now()), "")
	s.Receive(serverMsg("2", "42", "5", "theirs", clk.Now()), "")

	s.ApplyReadReceipt("42", "5", nil)
	for _, m := range s.Messages("42") {
		if m.SenderID == "1" && !m.Read {
			t.Error("own message should be read by peer")
		}
		if m.SenderID == "5" && m.Read {
			t.Error("peer's message untouched by their own receipt")
		}
	}
}

func TestResetClearsState(t *testing.T) {
	s, clk := newTestStore(t)
	s.Receive(serverMsg("1", "42", "5", "x", clk.Now()), "")
	s.TypingStart("42", "5")
	s.Open("42")

	s.Reset()
	if len(s.Conversations()) != 0 || len(s.Messages("42")) != 0 || len(s.Typing("42")) != 0 {
		t.Error("state survived reset")
	}
	if s.IsOpen("42") || s.Me() != "" {
		t.Error("open set or identity survived reset")
	}
}
