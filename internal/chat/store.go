package chat

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"go.uber.org/zap"
)

const (
	DefaultMatchWindow = 10 * time.Second
	DefaultTypingTTL   = 6 * time.Second
)

// StoreOptions tunes a Store. Zero values take the defaults.
type StoreOptions struct {
	MatchWindow time.Duration
	TypingTTL   time.Duration
	Now         func() time.Time
}

// Store is the in-memory conversation state: the sorted conversation list,
// per-conversation messages and unread counters, and remote typing indicators.
type Store struct {
	mu        sync.Mutex
	me        backend.ID
	convs     map[backend.ID]*Conversation
	messages  map[backend.ID][]Message
	open      map[backend.ID]bool
	typing    map[backend.ID]map[backend.ID]*time.Timer
	window    time.Duration
	typingTTL time.Duration
	now       func() time.Time

	onMessage       slot[MessageEvent]
	onTyping        slot[TypingChange]
	onRead          slot[ReadEvent]
	onConversations slot[ConversationsEvent]
	onError         slot[error]

	bus    *bus.Bus
	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions, b *bus.Bus, logger *zap.Logger) *Store {
	if opts.MatchWindow <= 0 {
		opts.MatchWindow = DefaultMatchWindow
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		window:    opts.MatchWindow,
		typingTTL: opts.TypingTTL,
		now:       opts.Now,
		bus:       b,
		logger:    logger,
	}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	for _, users := range s.typing {
		for _, t := range users {
			t.Stop()
		}
	}
	s.me = ""
	s.convs = make(map[backend.ID]*Conversation)
	s.messages = make(map[backend.ID][]Message)
	s.open = make(map[backend.ID]bool)
	s.typing = make(map[backend.ID]map[backend.ID]*time.Timer)
}

// OnMessage takes the message slot.
func (s *Store) OnMessage(fn func(MessageEvent)) *Subscription { return s.onMessage.set(fn) }

// OnTyping takes the typing slot.
func (s *Store) OnTyping(fn func(TypingChange)) *Subscription { return s.onTyping.set(fn) }

// OnRead takes the read-receipt slot.
func (s *Store) OnRead(fn func(ReadEvent)) *Subscription { return s.onRead.set(fn) }

// OnConversations takes the conversation-list slot.
func (s *Store) OnConversations(fn func(ConversationsEvent)) *Subscription {
	return s.onConversations.set(fn)
}

// OnError takes the error slot.
func (s *Store) OnError(fn func(error)) *Subscription { return s.onError.set(fn) }

// ReportError forwards an error to the error slot.
func (s *Store) ReportError(err error) {
	s.onError.emit(err)
}

// SetMe records the signed-in user's id.
func (s *Store) SetMe(id backend.ID) {
	s.mu.Lock()
	s.me = id
	s.mu.Unlock()
}

// Me returns the signed-in user's id.
func (s *Store) Me() backend.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.me
}

// Reset drops all state and cancels typing timers. Handlers stay registered.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.emitConversations()
}

// LoadConversations replaces the list with a backend listing.
func (s *Store) LoadConversations(chats []backend.Chat) {
	s.mu.Lock()
	next := make(map[backend.ID]*Conversation, len(chats))
	for _, c := range chats {
		next[c.ID] = s.fromChatLocked(c)
	}
	s.convs = next
	s.mu.Unlock()
	s.emitConversations()
}

// UpsertConversation adds or refreshes one conversation.
func (s *Store) UpsertConversation(c backend.Chat) {
	s.mu.Lock()
	conv := s.fromChatLocked(c)
	if old, ok := s.convs[c.ID]; ok && old.LastActivity.After(conv.LastActivity) {
		conv.LastActivity = old.LastActivity
		conv.LastMessage = old.LastMessage
	}
	s.convs[c.ID] = conv
	s.mu.Unlock()
	s.emitConversations()
}

// Restore seeds the list from cached conversations (offline start-up). Entries
// already present are left alone.
func (s *Store) Restore(convs []Conversation) {
	s.mu.Lock()
	for _, c := range convs {
		if _, ok := s.convs[c.ID]; !ok {
			cp := c
			s.convs[c.ID] = &cp
		}
	}
	s.mu.Unlock()
	s.emitConversations()
}

func (s *Store) fromChatLocked(c backend.Chat) *Conversation {
	conv := &Conversation{
		ID:           c.ID,
		Other:        c.Other(s.me),
		LastActivity: c.LastActivity(),
		Unread:       c.UnreadCount,
	}
	if c.Product != nil {
		conv.ProductTitle = c.Product.Title
	}
	if c.LastMessage != nil {
		m := fromBackend(*c.LastMessage)
		if m.ChatID == "" {
			m.ChatID = c.ID
		}
		conv.LastMessage = &m
	}
	return conv
}

// Known reports whether a conversation is in the list.
func (s *Store) Known(chatID backend.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[chatID]
	return ok
}

// Conversations returns the list sorted by most recent activity.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []Conversation {
	out := make([]Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		cp := *c
		if c.LastMessage != nil {
			m := *c.LastMessage
			cp.LastMessage = &m
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Conversation returns one conversation.
func (s *Store) Conversation(chatID backend.ID) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[chatID]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// TotalUnread is the sum of all per-conversation unread counters.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnreadLocked()
}

func (s *Store) totalUnreadLocked() int {
	n := 0
	for _, c := range s.convs {
		n += c.Unread
	}
	return n
}

// Messages returns a copy of a conversation's messages, oldest first.
func (s *Store) Messages(chatID backend.ID) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages[chatID])
}

// Open marks a conversation as visible; incoming messages stop counting as unread.
func (s *Store) Open(chatID backend.ID) {
	s.mu.Lock()
	s.open[chatID] = true
	s.mu.Unlock()
}

// Close marks a conversation as no longer visible.
func (s *Store) Close(chatID backend.ID) {
	s.mu.Lock()
	delete(s.open, chatID)
	s.mu.Unlock()
}

// IsOpen reports whether a conversation is visible.
func (s *Store) IsOpen(chatID backend.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[chatID]
}

// LoadMessages merges a page of history. Known server ids are skipped.
func (s *Store) LoadMessages(chatID backend.ID, msgs []backend.Message) {
	s.mu.Lock()
	list := s.messages[chatID]
	for _, bm := range msgs {
		m := fromBackend(bm)
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		if m.ID != "" && indexByID(list, m.ID) >= 0 {
			continue
		}
		list = insertSorted(list, m)
	}
	s.messages[chatID] = list
	s.mu.Unlock()
}

// AddOptimistic appends a locally sent message with a fresh temporary id.
func (s *Store) AddOptimistic(chatID backend.ID, typ, content, imageURL string) Message {
	s.mu.Lock()
	m := Message{
		TempID:    uuid.NewString(),
		ChatID:    chatID,
		SenderID:  s.me,
		Type:      typ,
		Content:   content,
		ImageURL:  imageURL,
		CreatedAt: s.now(),
		Status:    StatusPending,
	}
	s.messages[chatID] = insertSorted(s.messages[chatID], m)
	s.touchLocked(chatID, m)
	s.mu.Unlock()

	s.onMessage.emit(MessageEvent{ChatID: chatID, Message: m})
	s.emitConversations()
	return m
}

// MarkFailed flags an optimistic message as not delivered.
func (s *Store) MarkFailed(chatID backend.ID, tempID string, cause error) (Message, bool) {
	return s.updateOptimistic(chatID, tempID, func(m *Message) {
		m.Status = StatusFailed
		if cause != nil {
			m.Error = cause.Error()
		}
	})
}

// Retry puts a failed optimistic message back to pending and restamps it, so the
// server echo of the resend falls inside the match window.
func (s *Store) Retry(chatID backend.ID, tempID string) (Message, bool) {
	return s.updateOptimistic(chatID, tempID, func(m *Message) {
		m.Status = StatusPending
		m.Error = ""
		m.CreatedAt = s.now()
	})
}

func (s *Store) updateOptimistic(chatID backend.ID, tempID string, fn func(*Message)) (Message, bool) {
	s.mu.Lock()
	list := s.messages[chatID]
	i := indexByTemp(list, tempID)
	if i < 0 || !list[i].Optimistic() {
		s.mu.Unlock()
		return Message{}, false
	}
	m := list[i]
	fn(&m)
	list = slices.Delete(list, i, i+1)
	s.messages[chatID] = insertSorted(list, m)
	s.mu.Unlock()

	s.onMessage.emit(MessageEvent{ChatID: chatID, Message: m})
	return m, true
}

// Receive merges a server-confirmed message. It first tries to replace a pending
// optimistic entry (by echoed temp id, else by sender, content and a timestamp
// within the match window, oldest first), then de-duplicates by server id.
// It reports whether the message was new to the conversation.
func (s *Store) Receive(bm backend.Message, tempID string) (Message, bool) {
	m := fromBackend(bm)
	chatID := m.ChatID

	s.mu.Lock()
	list := s.messages[chatID]

	if m.ID != "" {
		if i := indexByID(list, m.ID); i >= 0 {
			existing := list[i]
			existing.Read = existing.Read || m.Read
			list[i] = existing
			s.mu.Unlock()
			return existing, false
		}
	}

	replaced := ""
	i := -1
	if tempID != "" {
		i = indexByTemp(list, tempID)
		if i >= 0 && !list[i].Optimistic() {
			i = -1
		}
	}
	if i < 0 {
		i = s.matchOptimisticLocked(list, m)
	}
	if i >= 0 {
		replaced = list[i].TempID
		m.TempID = replaced
		list = slices.Delete(list, i, i+1)
	}
	s.messages[chatID] = insertSorted(list, m)

	// Until the profile is known, own messages from other devices cannot be told
	// apart, so nothing counts as incoming.
	incoming := s.me != "" && m.SenderID != s.me
	if replaced != "" {
		incoming = false
	}
	s.touchLocked(chatID, m)
	if incoming && !s.open[chatID] && !m.Read {
		s.convs[chatID].Unread++
	}
	typingChanged := s.stopTypingLocked(chatID, m.SenderID)
	var typers []backend.ID
	if typingChanged {
		typers = s.typersLocked(chatID)
	}
	s.mu.Unlock()

	if typingChanged {
		s.onTyping.emit(TypingChange{ChatID: chatID, Users: typers})
	}
	evt := MessageEvent{ChatID: chatID, Message: m, ReplacedTempID: replaced, Incoming: incoming}
	s.onMessage.emit(evt)
	s.bus.Emit(bus.ChatMessage, evt)
	s.emitConversations()
	return m, true
}

// matchOptimisticLocked finds the oldest optimistic entry from the same sender
// with identical content whose timestamp is within the match window.
func (s *Store) matchOptimisticLocked(list []Message, m Message) int {
	for i, cand := range list {
		if !cand.Optimistic() || cand.Type != m.Type {
			continue
		}
		// An empty sender means the entry was created before the user id was known.
		if cand.SenderID != "" && cand.SenderID != m.SenderID {
			continue
		}
		if cand.Content != m.Content {
			continue
		}
		d := cand.CreatedAt.Sub(m.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= s.window {
			return i
		}
	}
	return -1
}

// touchLocked records m as the conversation's latest activity if it is newer.
func (s *Store) touchLocked(chatID backend.ID, m Message) {
	conv, ok := s.convs[chatID]
	if !ok {
		conv = &Conversation{ID: chatID}
		s.convs[chatID] = conv
	}
	if conv.LastMessage == nil || !m.CreatedAt.Before(conv.LastActivity) || conv.LastMessage.Key() == m.Key() {
		cp := m
		conv.LastMessage = &cp
		if m.CreatedAt.After(conv.LastActivity) {
			conv.LastActivity = m.CreatedAt
		}
	}
}

// MarkRead zeroes one conversation's unread counter and flags its incoming
// messages as read. It returns the previous counter.
func (s *Store) MarkRead(chatID backend.ID) int {
	s.mu.Lock()
	prev := 0
	if c, ok := s.convs[chatID]; ok {
		prev = c.Unread
		c.Unread = 0
	}
	list := s.messages[chatID]
	for i := range list {
		if list[i].SenderID != s.me {
			list[i].Read = true
		}
	}
	s.mu.Unlock()

	s.bus.Emit(bus.ChatRead, ReadEvent{ChatID: chatID, UserID: s.Me()})
	s.emitConversations()
	return prev
}

// ApplyReadReceipt records that the other participant read our messages.
func (s *Store) ApplyReadReceipt(chatID, userID backend.ID, messageIDs []backend.ID) {
	s.mu.Lock()
	if userID == s.me && userID != "" {
		s.mu.Unlock()
		return
	}
	list := s.messages[chatID]
	for i := range list {
		if list[i].SenderID != s.me {
			continue
		}
		if len(messageIDs) == 0 || slices.Contains(messageIDs, list[i].ID) {
			list[i].Read = true
		}
	}
	s.mu.Unlock()

	s.onRead.emit(ReadEvent{ChatID: chatID, UserID: userID})
}

// TypingStart adds a remote user to a conversation's typing set. The entry
// expires after the typing TTL unless refreshed.
func (s *Store) TypingStart(chatID, userID backend.ID) {
	s.mu.Lock()
	if userID == "" || userID == s.me {
		s.mu.Unlock()
		return
	}
	users := s.typing[chatID]
	if users == nil {
		users = make(map[backend.ID]*time.Timer)
		s.typing[chatID] = users
	}
	old, known := users[userID]
	if known && old.Stop() {
		old.Reset(s.typingTTL)
		s.mu.Unlock()
		return
	}
	// A fired timer's expiry may still be waiting on s.mu; a fresh timer makes
	// it stale.
	var timer *time.Timer
	timer = time.AfterFunc(s.typingTTL, func() { s.expireTyping(chatID, userID, timer) })
	users[userID] = timer
	if known {
		s.mu.Unlock()
		return
	}
	typers := s.typersLocked(chatID)
	s.mu.Unlock()

	s.onTyping.emit(TypingChange{ChatID: chatID, Users: typers})
	s.bus.Emit(bus.ChatTyping, TypingChange{ChatID: chatID, Users: typers})
}

// TypingStop removes a remote user from a conversation's typing set.
func (s *Store) TypingStop(chatID, userID backend.ID) {
	s.mu.Lock()
	if !s.stopTypingLocked(chatID, userID) {
		s.mu.Unlock()
		return
	}
	typers := s.typersLocked(chatID)
	s.mu.Unlock()

	s.onTyping.emit(TypingChange{ChatID: chatID, Users: typers})
	s.bus.Emit(bus.ChatTyping, TypingChange{ChatID: chatID, Users: typers})
}

func (s *Store) expireTyping(chatID, userID backend.ID, timer *time.Timer) {
	s.mu.Lock()
	if s.typing[chatID][userID] != timer {
		s.mu.Unlock()
		return
	}
	s.stopTypingLocked(chatID, userID)
	typers := s.typersLocked(chatID)
	s.mu.Unlock()

	s.logger.Debug("typing indicator expired", zap.String("chat_id", string(chatID)), zap.String("user_id", string(userID)))
	s.onTyping.emit(TypingChange{ChatID: chatID, Users: typers})
	s.bus.Emit(bus.ChatTyping, TypingChange{ChatID: chatID, Users: typers})
}

func (s *Store) stopTypingLocked(chatID, userID backend.ID) bool {
	users := s.typing[chatID]
	t, ok := users[userID]
	if !ok {
		return false
	}
	t.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(s.typing, chatID)
	}
	return true
}

// Typing returns the remote users currently typing in a conversation.
func (s *Store) Typing(chatID backend.ID) []backend.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typersLocked(chatID)
}

func (s *Store) typersLocked(chatID backend.ID) []backend.ID {
	users := make([]backend.ID, 0, len(s.typing[chatID]))
	for id := range s.typing[chatID] {
		users = append(users, id)
	}
	slices.Sort(users)
	return users
}

func (s *Store) emitConversations() {
	s.mu.Lock()
	evt := ConversationsEvent{Conversations: s.sortedLocked(), TotalUnread: s.totalUnreadLocked()}
	s.mu.Unlock()
	s.onConversations.emit(evt)
	s.bus.Emit(bus.ChatConversations, evt)
}

func indexByID(list []Message, id backend.ID) int {
	return slices.IndexFunc(list, func(m Message) bool { return m.ID == id })
}

func indexByTemp(list []Message, tempID string) int {
	if tempID == "" {
		return -1
	}
	return slices.IndexFunc(list, func(m Message) bool { return m.TempID == tempID })
}

// insertSorted places m after every entry not newer than it, keeping the list
// non-decreasing by creation time and stable for equal timestamps.
func insertSorted(list []Message, m Message) []Message {
	i := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(m.CreatedAt) })
	return slices.Insert(list, i, m)
}

// Preview renders a one-line summary of a message for list views.
func Preview(m *Message) string {
	if m == nil {
		return ""
	}
	if m.Type == backend.MessageImage {
		return "[image]"
	}
	return strings.Join(strings.Fields(m.Content), " ")
}
