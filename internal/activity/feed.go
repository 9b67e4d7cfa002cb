// Package activity keeps the notification feed shown behind the bell icon.
package activity

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/realtime"
	"go.uber.org/zap"
)

// DefaultCapacity is how many notifications the feed retains.
const DefaultCapacity = 50

// Item is one entry in the feed.
type Item struct {
	ID        backend.ID
	Category  string
	Type      string
	Title     string
	Message   string
	Link      string
	Read      bool
	CreatedAt time.Time
}

// Feed is the newest-first notification list, capped at its capacity.
type Feed struct {
	mu       sync.Mutex
	items    []Item
	capacity int
	now      func() time.Time
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewFeed creates an empty feed. capacity <= 0 takes DefaultCapacity.
func NewFeed(capacity int, b *bus.Bus, logger *zap.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity, now: time.Now, bus: b, logger: logger}
}

// Notify prepends a notification. Notifications without an id get one; a repeated
// id is ignored.
func (f *Feed) Notify(n realtime.Notification) {
	item := Item{
		ID:        n.ID,
		Category:  n.Category,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	}
	if item.ID == "" {
		item.ID = backend.ID(uuid.NewString())
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = f.now()
	}
	if item.Category == "" {
		item.Category = "system"
	}

	f.mu.Lock()
	if slices.ContainsFunc(f.items, func(it Item) bool { return it.ID == item.ID }) {
		f.mu.Unlock()
		return
	}
	f.items = slices.Insert(f.items, 0, item)
	if len(f.items) > f.capacity {
		f.items = f.items[:f.capacity]
	}
	f.mu.Unlock()

	f.logger.Debug("notification", zap.String("category", item.Category), zap.String("title", item.Title))
	f.bus.Emit(bus.ActivityNotification, item)
}

// List returns the feed, newest first.
func (f *Feed) List() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// Unread counts notifications not yet read.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead flags one notification. It reports whether the id was found.
func (f *Feed) MarkRead(id backend.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every notification and returns how many changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.items {
		if !f.items[i].Read {
			f.items[i].Read = true
			n++
		}
	}
	return n
}

// Clear empties the feed (logout).
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
}
