package rpc

import (
	"context"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"google.golang.org/grpc"
)

const ChatService = "souk.v1.ChatService"

type Message struct {
	ID        string    `json:"id,omitempty"`
	TempID    string    `json:"temp_id,omitempty"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

type Conversation struct {
	ID           string       `json:"id"`
	Other        backend.User `json:"other"`
	ProductTitle string       `json:"product_title,omitempty"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	LastActivity time.Time    `json:"last_activity"`
	Unread       int          `json:"unread"`
	Typing       []string     `json:"typing,omitempty"`
}

type ListConversationsRequest struct{}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	TotalUnread   int            `json:"total_unread"`
}

type ChatRequest struct {
	ChatID string `json:"chat_id"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type HistoryRequest struct {
	ChatID string `json:"chat_id"`
	Page   int    `json:"page"`
}

type SendTextRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type SendImageRequest struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
	Data   []byte `json:"data"`
}

// MessageEvent is the payload of chat.message events.
type MessageEvent struct {
	ChatID         string  `json:"chat_id"`
	Message        Message `json:"message"`
	ReplacedTempID string  `json:"replaced_temp_id,omitempty"`
	Incoming       bool    `json:"incoming"`
}

// TypingEvent is the payload of chat.typing events.
type TypingEvent struct {
	ChatID string   `json:"chat_id"`
	Users  []string `json:"users"`
}

type SendResponse struct {
	Message Message `json:"message"`
}

type StartChatRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id,omitempty"`
}

type StartChatResponse struct {
	ChatID string `json:"chat_id"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchResult struct {
	ChatID    string    `json:"chat_id"`
	MsgID     string    `json:"msg_id"`
	SenderID  string    `json:"sender_id"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type OutboxEntry struct {
	TempID   string `json:"temp_id"`
	ChatID   string `json:"chat_id"`
	Kind     string `json:"kind"`
	Body     string `json:"body"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type OutboxResponse struct {
	Entries []OutboxEntry `json:"entries"`
}

// ChatServer is the messaging surface of the daemon.
type ChatServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	Open(context.Context, *ChatRequest) (*MessagesResponse, error)
	Close(context.Context, *ChatRequest) (*Empty, error)
	LoadHistory(context.Context, *HistoryRequest) (*MessagesResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendResponse, error)
	SendImage(context.Context, *SendImageRequest) (*SendResponse, error)
	Typing(context.Context, *ChatRequest) (*Empty, error)
	MarkRead(context.Context, *ChatRequest) (*Empty, error)
	StartChat(context.Context, *StartChatRequest) (*StartChatResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	ListOutbox(context.Context, *ChatRequest) (*OutboxResponse, error)
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatService,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatService, "ListConversations", ChatServer.ListConversations),
		unary(ChatService, "Open", ChatServer.Open),
		unary(ChatService, "Close", ChatServer.Close),
		unary(ChatService, "LoadHistory", ChatServer.LoadHistory),
		unary(ChatService, "SendText", ChatServer.SendText),
		unary(ChatService, "SendImage", ChatServer.SendImage),
		unary(ChatService, "Typing", ChatServer.Typing),
		unary(ChatService, "MarkRead", ChatServer.MarkRead),
		unary(ChatService, "StartChat", ChatServer.StartChat),
		unary(ChatService, "Search", ChatServer.Search),
		unary(ChatService, "ListOutbox", ChatServer.ListOutbox),
	},
}

func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// ChatClient calls a daemon's ChatService.
type ChatClient struct {
	cc grpc.ClientConnInterface
}

func NewChatClient(cc grpc.ClientConnInterface) *ChatClient {
	return &ChatClient{cc: cc}
}

func (c *ChatClient) ListConversations(ctx context.Context, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, ChatService, "ListConversations", &ListConversationsRequest{}, opts)
}

func (c *ChatClient) Open(ctx context.Context, chatID string, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, ChatService, "Open", &ChatRequest{ChatID: chatID}, opts)
}

func (c *ChatClient) Close(ctx context.Context, chatID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, ChatService, "Close", &ChatRequest{ChatID: chatID}, opts)
	return err
}

func (c *ChatClient) LoadHistory(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, ChatService, "LoadHistory", in, opts)
}

func (c *ChatClient) SendText(ctx context.Context, in *SendTextRequest, opts ...grpc.CallOption) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c.cc, ChatService, "SendText", in, opts)
}

func (c *ChatClient) SendImage(ctx context.Context, in *SendImageRequest, opts ...grpc.CallOption) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c.cc, ChatService, "SendImage", in, opts)
}

func (c *ChatClient) Typing(ctx context.Context, chatID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, ChatService, "Typing", &ChatRequest{ChatID: chatID}, opts)
	return err
}

func (c *ChatClient) MarkRead(ctx context.Context, chatID string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, ChatService, "MarkRead", &ChatRequest{ChatID: chatID}, opts)
	return err
}

func (c *ChatClient) StartChat(ctx context.Context, in *StartChatRequest, opts ...grpc.CallOption) (*StartChatResponse, error) {
	return invoke[StartChatResponse](ctx, c.cc, ChatService, "StartChat", in, opts)
}

func (c *ChatClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c.cc, ChatService, "Search", in, opts)
}

func (c *ChatClient) ListOutbox(ctx context.Context, chatID string, opts ...grpc.CallOption) (*OutboxResponse, error) {
	return invoke[OutboxResponse](ctx, c.cc, ChatService, "ListOutbox", &ChatRequest{ChatID: chatID}, opts)
}
