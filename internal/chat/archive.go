package chat

import (
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/zap"
)

func (s *Service) archiveConversations() {
	if s.Archive == nil {
		return
	}
	convs := s.Store.Conversations()
	rows := make([]store.Chat, 0, len(convs))
	for _, c := range convs {
		rows = append(rows, toStoreChat(c))
	}
	if err := s.Archive.ReplaceChats(rows); err != nil {
		s.logger.Warn("archive conversations failed", zap.Error(err))
	}
}

func (s *Service) archiveMessages(msgs ...Message) {
	if s.Archive == nil || len(msgs) == 0 {
		return
	}
	rows := make([]store.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Optimistic() {
			continue
		}
		rows = append(rows, store.Message{
			ChatID:      string(m.ChatID),
			MsgID:       string(m.ID),
			SenderID:    string(m.SenderID),
			MessageType: m.Type,
			Body:        m.Content,
			ImageURL:    m.ImageURL,
			Read:        m.Read,
			CreatedAt:   m.CreatedAt.UnixMilli(),
		})
	}
	if len(rows) == 0 {
		return
	}
	if err := s.Archive.UpsertMessages(rows); err != nil {
		s.logger.Warn("archive messages failed", zap.Error(err))
	}
	if conv, ok := s.Store.Conversation(msgs[0].ChatID); ok {
		row := toStoreChat(conv)
		if err := s.Archive.UpsertChat(&row); err != nil {
			s.logger.Warn("archive conversation failed", zap.Error(err))
		}
	}
}

func (s *Service) restoreFromArchive() {
	if s.Archive == nil {
		return
	}
	rows, err := s.Archive.ListChats(500, 0)
	if err != nil {
		s.logger.Warn("read archived conversations failed", zap.Error(err))
		return
	}
	convs := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		c := Conversation{
			ID:           backend.ID(r.ChatID),
			Other:        backend.User{ID: backend.ID(r.OtherUserID), Username: r.OtherName},
			LastActivity: time.UnixMilli(r.LastMessageAt),
			Unread:       r.UnreadCount,
		}
		if r.LastMessagePreview != "" {
			c.LastMessage = &Message{ChatID: c.ID, Content: r.LastMessagePreview, Type: backend.MessageText, CreatedAt: c.LastActivity, Status: StatusSent}
		}
		convs = append(convs, c)
	}
	s.Store.Restore(convs)
}

func (s *Service) restoreMessages(chatID backend.ID) {
	if s.Archive == nil {
		return
	}
	rows, err := s.Archive.ListMessages(string(chatID), 0, 100)
	if err != nil {
		s.logger.Warn("read archived messages failed", zap.Error(err))
		return
	}
	msgs := make([]backend.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, backend.Message{
			ID:          backend.ID(r.MsgID),
			Chat:        backend.ID(r.ChatID),
			SenderID:    backend.ID(r.SenderID),
			MessageType: r.MessageType,
			Content:     r.Body,
			Image:       r.ImageURL,
			IsRead:      r.Read,
			CreatedAt:   time.UnixMilli(r.CreatedAt),
		})
	}
	s.Store.LoadMessages(chatID, msgs)
}

func toStoreChat(c Conversation) store.Chat {
	row := store.Chat{
		ChatID:      string(c.ID),
		OtherUserID: string(c.Other.ID),
		OtherName:   c.Other.DisplayName(),
		UnreadCount: c.Unread,
	}
	if !c.LastActivity.IsZero() {
		row.LastMessageAt = c.LastActivity.UnixMilli()
	}
	row.LastMessagePreview = Preview(c.LastMessage)
	return row
}
