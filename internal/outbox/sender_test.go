package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/status"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/zap"
)

// mockDeliverer records calls and returns configurable results.
type mockDeliverer struct {
	mu    sync.Mutex
	calls []deliverCall
	err   error
}

type deliverCall struct {
	ChatID string
	TempID string
	Body   string
}

func (m *mockDeliverer) Deliver(_ context.Context, chatID backend.ID, tempID, _, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, deliverCall{ChatID: string(chatID), TempID: tempID, Body: body})
	if m.err != nil {
		return "", m.err
	}
	return "server-" + tempID, nil
}

func (m *mockDeliverer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueueEnqueueEmits(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	ch, unsub := b.Subscribe(bus.OutboxQueued, 4)
	defer unsub()

	q := NewQueue(db, b)
	if err := q.Enqueue("t1", "42", backend.MessageText, "hello"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if p := evt.Payload.(Queued); p.TempID != "t1" || p.ChatID != "42" {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for outbox.queued")
	}

	pending, err := q.Pending("42")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Body != "hello" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestFlushDeliversInOrder(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, Options{}, zap.NewNop())

	ch, unsub := b.Subscribe(bus.OutboxSent, 10)
	defer unsub()

	for i, body := range []string{"first", "second"} {
		if err := db.QueueOutbox(fmt.Sprintf("t%d", i), "42", "text", body); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if n := s.Flush(context.Background()); n != 2 {
		t.Fatalf("Flush() = %d, want 2", n)
	}
	if mock.calls[0].Body != "first" || mock.calls[1].Body != "second" {
		t.Errorf("calls = %+v", mock.calls)
	}

	e, err := db.GetOutbox("t0")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != "sent" || e.ServerMsgID != "server-t0" || e.Attempts != 1 {
		t.Errorf("entry = %+v", e)
	}

	select {
	case evt := <-ch:
		if p := evt.Payload.(Sent); p.TempID != "t0" {
			t.Errorf("first sent event = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for outbox.sent")
	}
}

func TestFlushRetriesThenGivesUp(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{err: fmt.Errorf("network error")}
	s := NewSender(db, mock, b, Options{MaxAttempts: 2}, zap.NewNop())

	ch, unsub := b.Subscribe(bus.ChatMessageFailed, 10)
	defer unsub()

	if err := db.QueueOutbox("t1", "42", "text", "hello"); err != nil {
		t.Fatal(err)
	}

	s.Flush(context.Background())
	e, _ := db.GetOutbox("t1")
	if e.Status != "queued" || e.Attempts != 1 || e.ErrorMessage != "network error" {
		t.Fatalf("after first attempt = %+v", e)
	}

	s.Flush(context.Background())
	e, _ = db.GetOutbox("t1")
	if e.Status != "failed" || e.Attempts != 2 {
		t.Fatalf("after second attempt = %+v", e)
	}

	select {
	case evt := <-ch:
		if p := evt.Payload.(Failed); p.TempID != "t1" || p.Error != "network error" {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for chat.message_failed")
	}

	// Failed entries are not retried again.
	if n := s.Flush(context.Background()); n != 0 || mock.callCount() != 2 {
		t.Errorf("flushed %d, calls %d", n, mock.callCount())
	}
}

func TestSenderFlushesOnReconnect(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, Options{Interval: time.Hour}, zap.NewNop())

	if err := db.QueueOutbox("t1", "42", "text", "hello"); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	b.Emit(bus.RealtimeStateChanged, status.StatusChange{Channel: "global", From: status.Connecting, To: status.Connected})

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mock.callCount() != 1 {
		t.Fatalf("got %d deliveries, want 1", mock.callCount())
	}
}

func TestStartRequeuesStaleSending(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, Options{Interval: time.Hour}, zap.NewNop())

	if err := db.QueueOutbox("t1", "42", "text", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSending("t1"); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	s.Stop()

	e, _ := db.GetOutbox("t1")
	if e.Status != "queued" {
		t.Errorf("status = %q, want queued after restart", e.Status)
	}
}

func TestUnreachableBackendDefersWithoutCountingAttempt(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{err: fmt.Errorf("%w: connection refused", ErrUnreachable)}
	s := NewSender(db, mock, b, Options{MaxAttempts: 1}, zap.NewNop())

	if err := db.QueueOutbox("t1", "42", "text", "first"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("t2", "42", "text", "second"); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if n := s.Flush(context.Background()); n != 0 {
			t.Fatalf("flushed %d, want 0", n)
		}
	}
	if mock.callCount() != 3 {
		t.Errorf("calls = %d, want 3 (drain stops at the first unreachable entry)", mock.callCount())
	}
	e, _ := db.GetOutbox("t1")
	if e.Status != "queued" || e.Attempts != 0 {
		t.Errorf("t1 = %+v, want queued with no counted attempts", e)
	}

	mock.mu.Lock()
	mock.err = nil
	mock.mu.Unlock()
	if n := s.Flush(context.Background()); n != 2 {
		t.Errorf("flushed %d after recovery, want 2", n)
	}
}

func TestSenderFlushesOnTickWhileOffline(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, Options{Interval: 10 * time.Millisecond}, zap.NewNop())

	if err := db.QueueOutbox("t1", "42", "text", "hello"); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, _ := db.GetOutbox("t1"); e != nil && e.Status == "sent" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if e, _ := db.GetOutbox("t1"); e == nil || e.Status != "sent" {
		t.Fatalf("entry = %+v, want sent without a realtime event", e)
	}
	if mock.callCount() != 1 {
		t.Errorf("got %d deliveries, want 1", mock.callCount())
	}
}
