package api

import (
	"context"
	"testing"

	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestChatServiceValidation(t *testing.T) {
	h := newSessionHarness(t)
	svc := NewChatService(h.svc.Chat, h.db)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"blank text", func() error {
			_, err := svc.SendText(ctx, &rpc.SendTextRequest{ChatID: "c1", Text: "   "})
			return err
		}},
		{"missing chat", func() error {
			_, err := svc.SendText(ctx, &rpc.SendTextRequest{Text: "hi"})
			return err
		}},
		{"empty image", func() error {
			_, err := svc.SendImage(ctx, &rpc.SendImageRequest{ChatID: "c1", Name: "a.png"})
			return err
		}},
		{"oversized image", func() error {
			_, err := svc.SendImage(ctx, &rpc.SendImageRequest{ChatID: "c1", Name: "a.png", Data: make([]byte, maxImageBytes+1)})
			return err
		}},
		{"open without id", func() error {
			_, err := svc.Open(ctx, &rpc.ChatRequest{})
			return err
		}},
		{"start without user", func() error {
			_, err := svc.StartChat(ctx, &rpc.StartChatRequest{ProductID: "p1"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := grpcstatus.Code(tt.call()); code != codes.InvalidArgument {
				t.Errorf("code = %v, want InvalidArgument", code)
			}
		})
	}
}

func TestChatServiceStartChatLists(t *testing.T) {
	h := newSessionHarness(t)
	svc := NewChatService(h.svc.Chat, h.db)
	ctx := context.Background()

	resp, err := svc.StartChat(ctx, &rpc.StartChatRequest{UserID: "2", ProductID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ChatID != "c1" {
		t.Errorf("chat id = %q, want c1", resp.ChatID)
	}

	list, err := svc.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].ID != "c1" {
		t.Errorf("conversations = %+v", list.Conversations)
	}
}

func TestChatServiceSearchArchive(t *testing.T) {
	h := newSessionHarness(t)
	svc := NewChatService(h.svc.Chat, h.db)

	if err := h.db.UpsertChat(&store.Chat{ChatID: "c1", OtherName: "Bea", LastMessageAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertMessages([]store.Message{
		{MsgID: "m1", ChatID: "c1", SenderID: "2", MessageType: "text", Body: "is the lamp still available", CreatedAt: 1000},
		{MsgID: "m2", ChatID: "c1", SenderID: "1", MessageType: "text", Body: "yes it is", CreatedAt: 2000},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Search(context.Background(), &rpc.SearchRequest{Query: "lamp"})
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
}
