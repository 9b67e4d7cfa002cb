package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/outbox"
	"github.com/matheus3301/souk/internal/realtime"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Link is a realtime channel. *realtime.Conn implements it.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	SetHandlers(realtime.Handlers)
	SendText(ctx context.Context, chatID backend.ID, text, tempID string) error
	SendImage(ctx context.Context, chatID backend.ID, imageURL, tempID string) error
	TypingStart(ctx context.Context, chatID backend.ID) error
	TypingStop(ctx context.Context, chatID backend.ID) error
	MarkRead(ctx context.Context, chatID backend.ID) error
	Join(ctx context.Context, chatID backend.ID) error
	Leave(ctx context.Context, chatID backend.ID) error
}

// API is the REST side of messaging. *backend.ChatAPI implements it.
type API interface {
	ListChats(ctx context.Context) ([]backend.Chat, error)
	GetChat(ctx context.Context, chatID backend.ID) (*backend.Chat, error)
	ListMessages(ctx context.Context, chatID backend.ID, page int) (*backend.Page[backend.Message], error)
	StartChat(ctx context.Context, userID, productID backend.ID) (*backend.Chat, error)
	SendText(ctx context.Context, chatID backend.ID, content string) (*backend.Message, error)
	SendImage(ctx context.Context, chatID backend.ID, name string, data []byte) (*backend.Message, error)
	MarkRead(ctx context.Context, chatID backend.ID) error
}

// Profile resolves the signed-in user. *backend.AuthAPI implements it.
type Profile interface {
	Me(ctx context.Context) (*backend.User, error)
}

// Archive is the local message cache. *store.DB implements it.
type Archive interface {
	ReplaceChats(chats []store.Chat) error
	UpsertChat(c *store.Chat) error
	ListChats(limit, offset int) ([]store.Chat, error)
	UpsertMessages(msgs []store.Message) error
	ListMessages(chatID string, beforeTs int64, limit int) ([]store.Message, error)
	MarkChatRead(chatID, readerID string) error
}

// Queue persists messages that could not be delivered live.
type Queue interface {
	Enqueue(tempID string, chatID backend.ID, kind, body string) error
}

// Notifier receives activity notices.
type Notifier interface {
	Notify(n realtime.Notification)
}

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	// PerChatSockets opens a dedicated socket per open conversation instead of
	// joining scopes on the global one.
	PerChatSockets bool
	// NewChatLink builds a per-conversation socket. Required with PerChatSockets.
	NewChatLink func(chatID backend.ID) Link
	// TypingIdle is how long after the last keystroke typing_stop is sent.
	TypingIdle time.Duration
}

const DefaultTypingIdle = 3 * time.Second

// Deps groups a Service's collaborators. Archive, Queue and Notifier are optional.
type Deps struct {
	Store    *Store
	Global   Link
	API      API
	Profile  Profile
	Archive  Archive
	Queue    Queue
	Notifier Notifier
}

// Service coordinates the state store, the realtime link, the REST chat API and
// the outbox.
type Service struct {
	Deps
	opts   ServiceOptions
	logger *zap.Logger

	mu        sync.Mutex
	typing    map[backend.ID]*time.Timer
	chatLinks map[backend.ID]Link
}

// NewService wires the coordinator.
func NewService(d Deps, opts ServiceOptions, logger *zap.Logger) *Service {
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = DefaultTypingIdle
	}
	s := &Service{
		Deps:      d,
		opts:      opts,
		logger:    logger,
		typing:    make(map[backend.ID]*time.Timer),
		chatLinks: make(map[backend.ID]Link),
	}
	d.Global.SetHandlers(s.handlers())
	return s
}

func (s *Service) handlers() realtime.Handlers {
	return realtime.Handlers{
		Message: s.handleMessage,
		TypingStart: func(e realtime.TypingEvent) {
			s.Store.TypingStart(e.ChatID, e.UserID)
		},
		TypingStop: func(e realtime.TypingEvent) {
			s.Store.TypingStop(e.ChatID, e.UserID)
		},
		Read: func(r realtime.ReadReceipt) {
			s.Store.ApplyReadReceipt(r.ChatID, r.UserID, r.MessageIDs)
		},
		Connected: func(userID backend.ID) {
			if userID != "" && s.Store.Me() == "" {
				s.Store.SetMe(userID)
			}
			go s.resync()
		},
		Error: s.Store.ReportError,
		Notification: func(n realtime.Notification) {
			if s.Notifier != nil {
				s.Notifier.Notify(n)
			}
		},
	}
}

// Start loads the conversation list and opens the global socket. Failures are
// logged: the daemon keeps serving cached state while offline.
func (s *Service) Start(ctx context.Context) {
	if err := s.Bootstrap(ctx); err != nil {
		s.logger.Warn("bootstrap failed, using cached conversations", zap.Error(err))
	}
	if err := s.Global.Connect(ctx); err != nil {
		s.logger.Warn("realtime connect failed", zap.Error(err))
	}
}

// Bootstrap fetches the profile and conversation list in parallel.
func (s *Service) Bootstrap(ctx context.Context) error {
	var (
		me    *backend.User
		chats []backend.Chat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.Profile.Me(gctx)
		me = u
		return err
	})
	g.Go(func() error {
		c, err := s.API.ListChats(gctx)
		chats = c
		return err
	})
	if err := g.Wait(); err != nil {
		s.restoreFromArchive()
		return fmt.Errorf("bootstrap: %w", err)
	}

	s.Store.SetMe(me.ID)
	s.Store.LoadConversations(chats)
	s.archiveConversations()
	s.logger.Info("conversations loaded", zap.Int("count", len(chats)), zap.Int("unread", s.Store.TotalUnread()))
	return nil
}

// resync runs after the socket (re)connects: rejoin open scopes and reload the
// list to pick up anything missed while offline.
func (s *Service) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !s.opts.PerChatSockets {
		for _, c := range s.Store.Conversations() {
			if s.Store.IsOpen(c.ID) {
				_ = s.Global.Join(ctx, c.ID)
			}
		}
	}
	chats, err := s.API.ListChats(ctx)
	if err != nil {
		s.logger.Debug("resync list failed", zap.Error(err))
		return
	}
	s.Store.LoadConversations(chats)
	s.archiveConversations()
}

func (s *Service) handleMessage(bm backend.Message, tempID string) {
	m, isNew := s.Store.Receive(bm, tempID)
	if !isNew {
		return
	}
	s.archiveMessages(m)

	conv, _ := s.Store.Conversation(m.ChatID)
	if conv.Other.ID == "" {
		go s.refreshConversation(m.ChatID)
	}
	if m.SenderID != s.Store.Me() && !s.Store.IsOpen(m.ChatID) && s.Notifier != nil {
		title := conv.Other.DisplayName()
		if title == "" {
			title = "New message"
		}
		s.Notifier.Notify(realtime.Notification{
			Category:  "message",
			Title:     title,
			Message:   Preview(&m),
			Link:      string(m.ChatID),
			CreatedAt: m.CreatedAt,
		})
	}
}

func (s *Service) refreshConversation(chatID backend.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	c, err := s.API.GetChat(ctx, chatID)
	if err != nil {
		s.logger.Debug("conversation lookup failed", zap.String("chat_id", string(chatID)), zap.Error(err))
		return
	}
	s.Store.UpsertConversation(*c)
}

func (s *Service) linkFor(chatID backend.ID) Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.chatLinks[chatID]; ok {
		return l
	}
	return s.Global
}

// Open shows a conversation: joins its realtime scope, loads recent history and
// marks it read.
func (s *Service) Open(ctx context.Context, chatID backend.ID) ([]Message, error) {
	s.Store.Open(chatID)

	if s.opts.PerChatSockets && s.opts.NewChatLink != nil {
		s.mu.Lock()
		l, ok := s.chatLinks[chatID]
		if !ok {
			l = s.opts.NewChatLink(chatID)
			l.SetHandlers(s.handlers())
			s.chatLinks[chatID] = l
		}
		s.mu.Unlock()
		if err := l.Connect(ctx); err != nil {
			s.logger.Warn("chat socket connect failed", zap.String("chat_id", string(chatID)), zap.Error(err))
		}
	} else if err := s.Global.Join(ctx, chatID); err != nil && !errors.Is(err, realtime.ErrNotConnected) {
		s.logger.Warn("join failed", zap.String("chat_id", string(chatID)), zap.Error(err))
	}

	if _, err := s.LoadHistory(ctx, chatID, 1); err != nil {
		s.logger.Warn("history load failed, using archive", zap.String("chat_id", string(chatID)), zap.Error(err))
		s.restoreMessages(chatID)
	}
	if err := s.MarkRead(ctx, chatID); err != nil {
		s.logger.Debug("mark read failed", zap.String("chat_id", string(chatID)), zap.Error(err))
	}
	return s.Store.Messages(chatID), nil
}

// LoadHistory fetches one page of history and merges it. It reports whether more
// pages exist.
func (s *Service) LoadHistory(ctx context.Context, chatID backend.ID, page int) (bool, error) {
	p, err := s.API.ListMessages(ctx, chatID, page)
	if err != nil {
		return false, err
	}
	s.Store.LoadMessages(chatID, p.Results)
	msgs := make([]Message, 0, len(p.Results))
	for _, bm := range p.Results {
		m := fromBackend(bm)
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		msgs = append(msgs, m)
	}
	s.archiveMessages(msgs...)
	return p.Next != "", nil
}

// Close hides a conversation: cancels the local typing timer, leaves the scope
// and keeps the shared socket open.
func (s *Service) Close(ctx context.Context, chatID backend.ID) {
	s.StopTyping(ctx, chatID)
	s.Store.Close(chatID)

	s.mu.Lock()
	l, ok := s.chatLinks[chatID]
	delete(s.chatLinks, chatID)
	s.mu.Unlock()

	if ok {
		l.Disconnect()
		return
	}
	if err := s.Global.Leave(ctx, chatID); err != nil && !errors.Is(err, realtime.ErrNotConnected) {
		s.logger.Debug("leave failed", zap.String("chat_id", string(chatID)), zap.Error(err))
	}
}

// StartChat opens (or finds) the conversation with a user.
func (s *Service) StartChat(ctx context.Context, userID, productID backend.ID) (backend.ID, error) {
	c, err := s.API.StartChat(ctx, userID, productID)
	if err != nil {
		return "", err
	}
	s.Store.UpsertConversation(*c)
	return c.ID, nil
}

// SendText appends an optimistic message and delivers it over the socket, falling
// back to HTTP. When both fail the entry is marked failed, queued for resend if
// the failure looks transient, and an error is returned: the message was not
// delivered.
func (s *Service) SendText(ctx context.Context, chatID backend.ID, text string) (Message, error) {
	m := s.Store.AddOptimistic(chatID, backend.MessageText, text, "")
	s.StopTyping(ctx, chatID)

	if err := s.linkFor(chatID).SendText(ctx, chatID, text, m.TempID); err == nil {
		return m, nil
	}

	sent, err := s.API.SendText(ctx, chatID, text)
	if err == nil {
		confirmed, _ := s.Store.Receive(*sent, m.TempID)
		s.archiveMessages(confirmed)
		return confirmed, nil
	}

	failed, _ := s.Store.MarkFailed(chatID, m.TempID, err)
	if s.Queue != nil && transient(err) {
		if qerr := s.Queue.Enqueue(m.TempID, chatID, backend.MessageText, text); qerr != nil {
			s.logger.Error("outbox enqueue failed", zap.String("temp_id", m.TempID), zap.Error(qerr))
		}
	}
	s.logger.Warn("message not delivered", zap.String("chat_id", string(chatID)), zap.String("temp_id", m.TempID), zap.Error(err))
	return failed, fmt.Errorf("message not delivered: %w", err)
}

// SendImage uploads an image message over HTTP.
func (s *Service) SendImage(ctx context.Context, chatID backend.ID, name string, data []byte) (Message, error) {
	m := s.Store.AddOptimistic(chatID, backend.MessageImage, "", "")

	sent, err := s.API.SendImage(ctx, chatID, name, data)
	if err != nil {
		failed, _ := s.Store.MarkFailed(chatID, m.TempID, err)
		return failed, fmt.Errorf("image not delivered: %w", err)
	}
	confirmed, _ := s.Store.Receive(*sent, m.TempID)
	s.archiveMessages(confirmed)
	return confirmed, nil
}

// Deliver resends a queued message. It is the outbox's delivery hook. Text
// falls back to HTTP while the socket is down; image URLs only travel over the
// socket.
func (s *Service) Deliver(ctx context.Context, chatID backend.ID, tempID, kind, body string) (string, error) {
	s.Store.Retry(chatID, tempID)

	link := s.linkFor(chatID)
	if link.Connected() {
		var err error
		if kind == backend.MessageImage {
			err = link.SendImage(ctx, chatID, body, tempID)
		} else {
			err = link.SendText(ctx, chatID, body, tempID)
		}
		if err == nil {
			return "", nil
		}
	}

	if kind == backend.MessageImage {
		s.Store.MarkFailed(chatID, tempID, realtime.ErrNotConnected)
		return "", fmt.Errorf("%w: %w", outbox.ErrUnreachable, realtime.ErrNotConnected)
	}

	sent, err := s.API.SendText(ctx, chatID, body)
	if err != nil {
		s.Store.MarkFailed(chatID, tempID, err)
		if httpapi.IsKind(err, httpapi.KindNetwork) {
			return "", fmt.Errorf("%w: %w", outbox.ErrUnreachable, err)
		}
		return "", err
	}
	confirmed, _ := s.Store.Receive(*sent, tempID)
	s.archiveMessages(confirmed)
	return string(sent.ID), nil
}

// Typing is called on each keystroke: typing_start goes out once, typing_stop
// after the idle period without keystrokes.
func (s *Service) Typing(ctx context.Context, chatID backend.ID) error {
	s.mu.Lock()
	if t, ok := s.typing[chatID]; ok {
		t.Reset(s.opts.TypingIdle)
		s.mu.Unlock()
		return nil
	}
	s.typing[chatID] = time.AfterFunc(s.opts.TypingIdle, func() {
		s.StopTyping(context.Background(), chatID)
	})
	s.mu.Unlock()

	return s.linkFor(chatID).TypingStart(ctx, chatID)
}

// StopTyping cancels the idle timer and sends typing_stop if typing was active.
func (s *Service) StopTyping(ctx context.Context, chatID backend.ID) {
	s.mu.Lock()
	t, ok := s.typing[chatID]
	if ok {
		t.Stop()
		delete(s.typing, chatID)
	}
	s.mu.Unlock()

	if ok {
		_ = s.linkFor(chatID).TypingStop(ctx, chatID)
	}
}

// MarkRead zeroes the conversation's counter locally and acknowledges it over the
// socket, or over HTTP when the socket is down.
func (s *Service) MarkRead(ctx context.Context, chatID backend.ID) error {
	s.Store.MarkRead(chatID)
	if s.Archive != nil {
		if err := s.Archive.MarkChatRead(string(chatID), string(s.Store.Me())); err != nil {
			s.logger.Warn("archive mark read failed", zap.Error(err))
		}
	}
	if err := s.linkFor(chatID).MarkRead(ctx, chatID); err == nil {
		return nil
	}
	return s.API.MarkRead(ctx, chatID)
}

// Stop closes every socket and cancels local timers.
func (s *Service) Stop() {
	s.mu.Lock()
	for id, t := range s.typing {
		t.Stop()
		delete(s.typing, id)
	}
	links := s.chatLinks
	s.chatLinks = make(map[backend.ID]Link)
	s.mu.Unlock()

	for _, l := range links {
		l.Disconnect()
	}
	s.Global.Disconnect()
}

// Reset tears everything down for logout.
func (s *Service) Reset() {
	s.Stop()
	s.Store.Reset()
}

func transient(err error) bool {
	return httpapi.IsKind(err, httpapi.KindNetwork) ||
		httpapi.IsKind(err, httpapi.KindServer) ||
		errors.Is(err, realtime.ErrNotConnected)
}
