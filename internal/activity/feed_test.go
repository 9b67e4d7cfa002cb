package activity

import (
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/realtime"
	"go.uber.org/zap"
)

func TestFeedCapsAndOrders(t *testing.T) {
	f := NewFeed(0, nil, zap.NewNop())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		f.Notify(realtime.Notification{ID: backend.ID(fmt.Sprint(i)), Title: "n", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	items := f.List()
	if len(items) != DefaultCapacity {
		t.Fatalf("len = %d, want %d", len(items), DefaultCapacity)
	}
	if items[0].ID != "59" || items[len(items)-1].ID != "10" {
		t.Errorf("newest=%s oldest=%s, want 59 and 10", items[0].ID, items[len(items)-1].ID)
	}
	if f.Unread() != 50 {
		t.Errorf("Unread = %d", f.Unread())
	}
}

func TestFeedAssignsIDAndDropsDuplicates(t *testing.T) {
	f := NewFeed(5, nil, zap.NewNop())
	f.Notify(realtime.Notification{Title: "no id"})
	f.Notify(realtime.Notification{ID: "7", Title: "order shipped"})
	f.Notify(realtime.Notification{ID: "7", Title: "order shipped"})

	items := f.List()
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[1].ID == "" || items[1].CreatedAt.IsZero() || items[1].Category != "system" {
		t.Errorf("defaults not filled: %+v", items[1])
	}
}

func TestFeedMarkRead(t *testing.T) {
	f := NewFeed(5, nil, zap.NewNop())
	f.Notify(realtime.Notification{ID: "1"})
	f.Notify(realtime.Notification{ID: "2"})
	f.Notify(realtime.Notification{ID: "3"})

	if !f.MarkRead("2") {
		t.Fatal("MarkRead(2) = false")
	}
	if f.MarkRead("missing") {
		t.Error("MarkRead(missing) = true")
	}
	if f.Unread() != 2 {
		t.Errorf("Unread = %d, want 2", f.Unread())
	}
	if n := f.MarkAllRead(); n != 2 {
		t.Errorf("MarkAllRead = %d, want 2", n)
	}
	if f.Unread() != 0 {
		t.Errorf("Unread = %d, want 0", f.Unread())
	}

	f.Clear()
	if len(f.List()) != 0 {
		t.Error("feed not cleared")
	}
}

func TestFeedPublishes(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("activity.", 1)
	defer unsub()

	f := NewFeed(5, b, zap.NewNop())
	f.Notify(realtime.Notification{ID: "1", Category: "order", Title: "Paid"})

	select {
	case evt := <-ch:
		if it := evt.Payload.(Item); it.Title != "Paid" || it.Category != "order" {
			t.Errorf("payload = %+v", it)
		}
	case <-time.After(time.Second):
		t.Fatal("no activity event")
	}
}
