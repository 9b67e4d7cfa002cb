package api

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/chat"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/store"
)

const (
	defaultSearchLimit = 50
	maxImageBytes      = 10 << 20
)

// ChatService implements rpc.ChatServer on top of the chat coordinator and the
// local archive.
type ChatService struct {
	chat *chat.Service
	db   *store.DB
}

// NewChatService creates the chat service. db may be nil; search and the outbox
// listing then return nothing.
func NewChatService(c *chat.Service, db *store.DB) *ChatService {
	return &ChatService{chat: c, db: db}
}

func (s *ChatService) ListConversations(_ context.Context, _ *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	convs := s.chat.Store.Conversations()
	out := make([]rpc.Conversation, 0, len(convs))
	total := 0
	for _, c := range convs {
		rc := conversationToRPC(c)
		for _, id := range s.chat.Store.Typing(c.ID) {
			rc.Typing = append(rc.Typing, string(id))
		}
		out = append(out, rc)
		total += c.Unread
	}
	return &rpc.ListConversationsResponse{Conversations: out, TotalUnread: total}, nil
}

func (s *ChatService) Open(ctx context.Context, req *rpc.ChatRequest) (*rpc.MessagesResponse, error) {
	if req.ChatID == "" {
		return nil, invalid("A conversation id is required.")
	}
	msgs, err := s.chat.Open(ctx, backend.ID(req.ChatID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.MessagesResponse{Messages: messagesToRPC(msgs)}, nil
}

func (s *ChatService) Close(ctx context.Context, req *rpc.ChatRequest) (*rpc.Empty, error) {
	s.chat.Close(ctx, backend.ID(req.ChatID))
	return &rpc.Empty{}, nil
}

func (s *ChatService) LoadHistory(ctx context.Context, req *rpc.HistoryRequest) (*rpc.MessagesResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	more, err := s.chat.LoadHistory(ctx, backend.ID(req.ChatID), page)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.MessagesResponse{
		Messages: messagesToRPC(s.chat.Store.Messages(backend.ID(req.ChatID))),
		HasMore:  more,
	}, nil
}

func (s *ChatService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendResponse, error) {
	if req.ChatID == "" {
		return nil, invalid("A conversation id is required.")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalid("Message cannot be empty.")
	}
	m, err := s.chat.SendText(ctx, backend.ID(req.ChatID), req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.SendResponse{Message: messageToRPC(m)}, nil
}

func (s *ChatService) SendImage(ctx context.Context, req *rpc.SendImageRequest) (*rpc.SendResponse, error) {
	if len(req.Data) == 0 {
		return nil, invalid("Choose an image to send.")
	}
	if len(req.Data) > maxImageBytes {
		return nil, invalid("Images must be 10 MB or smaller.")
	}
	m, err := s.chat.SendImage(ctx, backend.ID(req.ChatID), req.Name, req.Data)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.SendResponse{Message: messageToRPC(m)}, nil
}

func (s *ChatService) Typing(ctx context.Context, req *rpc.ChatRequest) (*rpc.Empty, error) {
	// Best effort.
	_ = s.chat.Typing(ctx, backend.ID(req.ChatID))
	return &rpc.Empty{}, nil
}

func (s *ChatService) MarkRead(ctx context.Context, req *rpc.ChatRequest) (*rpc.Empty, error) {
	if err := s.chat.MarkRead(ctx, backend.ID(req.ChatID)); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *ChatService) StartChat(ctx context.Context, req *rpc.StartChatRequest) (*rpc.StartChatResponse, error) {
	if req.UserID == "" {
		return nil, invalid("A user id is required.")
	}
	id, err := s.chat.StartChat(ctx, backend.ID(req.UserID), backend.ID(req.ProductID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.StartChatResponse{ChatID: string(id)}, nil
}

func (s *ChatService) Search(_ context.Context, req *rpc.SearchRequest) (*rpc.SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, invalid("Enter something to search for.")
	}
	if s.db == nil {
		return &rpc.SearchResponse{}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := s.db.SearchMessages(req.Query, req.ChatID, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]rpc.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, rpc.SearchResult{
			ChatID:    r.Message.ChatID,
			MsgID:     r.Message.MsgID,
			SenderID:  r.Message.SenderID,
			Snippet:   r.Snippet,
			CreatedAt: time.UnixMilli(r.Message.CreatedAt),
		})
	}
	return &rpc.SearchResponse{Results: out}, nil
}

func (s *ChatService) ListOutbox(_ context.Context, req *rpc.ChatRequest) (*rpc.OutboxResponse, error) {
	if s.db == nil {
		return &rpc.OutboxResponse{}, nil
	}
	entries, err := s.db.ListOutbox(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]rpc.OutboxEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, rpc.OutboxEntry{
			TempID:   e.TempID,
			ChatID:   e.ChatID,
			Kind:     e.Kind,
			Body:     e.Body,
			Status:   e.Status,
			Attempts: e.Attempts,
			Error:    e.ErrorMessage,
		})
	}
	return &rpc.OutboxResponse{Entries: out}, nil
}

func messageToRPC(m chat.Message) rpc.Message {
	return rpc.Message{
		ID:        string(m.ID),
		TempID:    m.TempID,
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Type:      m.Type,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
		Status:    m.Status,
		Error:     m.Error,
	}
}

func messagesToRPC(msgs []chat.Message) []rpc.Message {
	out := make([]rpc.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToRPC(m))
	}
	return out
}

func conversationToRPC(c chat.Conversation) rpc.Conversation {
	rc := rpc.Conversation{
		ID:           string(c.ID),
		Other:        c.Other,
		ProductTitle: c.ProductTitle,
		LastActivity: c.LastActivity,
		Unread:       c.Unread,
	}
	if c.LastMessage != nil {
		m := messageToRPC(*c.LastMessage)
		rc.LastMessage = &m
	}
	return rc
}
