package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/status"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 5
)

// ErrUnreachable marks a delivery that could not reach the backend at all. The
// entry stays queued and the attempt does not count against the limit.
var ErrUnreachable = errors.New("backend unreachable")

// Deliverer resends one queued message. *chat.Service implements it.
type Deliverer interface {
	Deliver(ctx context.Context, chatID backend.ID, tempID, kind, body string) (serverID string, err error)
}

// Sent is the payload of an OutboxSent event.
type Sent struct {
	TempID   string
	ChatID   string
	ServerID string
}

// Failed is the payload of a ChatMessageFailed event raised by the outbox.
type Failed struct {
	TempID string
	ChatID string
	Error  string
}

// Options tunes a Sender. Zero values take the defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

// Sender drains the outbox on every tick, and as soon as the realtime link comes
// back. Deliverers fall back to HTTP while the link is down.
type Sender struct {
	db        *store.DB
	deliverer Deliverer
	bus       *bus.Bus
	logger    *zap.Logger
	opts      Options

	mu     sync.Mutex // serializes drains
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, d Deliverer, b *bus.Bus, opts Options, logger *zap.Logger) *Sender {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Sender{
		db:        db,
		deliverer: d,
		bus:       b,
		logger:    logger,
		opts:      opts,
	}
}

// Start re-queues entries a crash left in flight and begins draining.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.ResetStaleSending(); err != nil {
		s.logger.Error("failed to reset stale outbox entries", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("re-queued stale outbox entries", zap.Int64("count", n))
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	events, unsub := s.bus.Subscribe("realtime.", 16)
	go func() {
		defer close(s.done)
		defer unsub()
		s.loop(ctx, events)
	}()
}

// Stop stops the sender loop and waits for an in-flight drain.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context, events <-chan bus.Event) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush(ctx)
		case evt := <-events:
			if c, ok := evt.Payload.(status.StatusChange); ok && c.To == status.Connected {
				s.Flush(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush attempts every queued entry once, oldest first. It returns how many
// were delivered.
func (s *Sender) Flush(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return sent
		}
		if err := s.db.MarkOutboxSending(entry.TempID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("temp_id", entry.TempID))
			continue
		}
		attempt := entry.Attempts + 1

		serverID, err := s.deliverer.Deliver(ctx, backend.ID(entry.ChatID), entry.TempID, entry.Kind, entry.Body)
		if errors.Is(err, ErrUnreachable) {
			s.logger.Debug("backend unreachable, outbox drain paused", zap.String("temp_id", entry.TempID), zap.Error(err))
			if dbErr := s.db.MarkOutboxDeferred(entry.TempID, err.Error()); dbErr != nil {
				s.logger.Error("failed to re-queue", zap.Error(dbErr), zap.String("temp_id", entry.TempID))
			}
			if entry.Kind == backend.MessageImage {
				continue
			}
			return sent
		}
		if err != nil {
			s.fail(entry, attempt, err)
			continue
		}

		if err := s.db.MarkOutboxSent(entry.TempID, serverID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("temp_id", entry.TempID))
		}
		s.logger.Info("queued message sent", zap.String("temp_id", entry.TempID), zap.String("server_msg_id", serverID), zap.Int("attempt", attempt))
		s.bus.Emit(bus.OutboxSent, Sent{TempID: entry.TempID, ChatID: entry.ChatID, ServerID: serverID})
		sent++
	}
	return sent
}

func (s *Sender) fail(entry store.OutboxEntry, attempt int, err error) {
	if attempt < s.opts.MaxAttempts {
		s.logger.Warn("queued message not sent, will retry", zap.String("temp_id", entry.TempID), zap.Int("attempt", attempt), zap.Error(err))
		if dbErr := s.db.MarkOutboxRetry(entry.TempID, err.Error()); dbErr != nil {
			s.logger.Error("failed to re-queue", zap.Error(dbErr), zap.String("temp_id", entry.TempID))
		}
		return
	}

	s.logger.Error("queued message abandoned", zap.String("temp_id", entry.TempID), zap.Int("attempts", attempt), zap.Error(err))
	if dbErr := s.db.MarkOutboxFailed(entry.TempID, err.Error()); dbErr != nil {
		s.logger.Error("failed to mark failed", zap.Error(dbErr), zap.String("temp_id", entry.TempID))
	}
	s.bus.Emit(bus.ChatMessageFailed, Failed{TempID: entry.TempID, ChatID: entry.ChatID, Error: err.Error()})
}
