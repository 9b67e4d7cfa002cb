package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/auth"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestIDDecodesNumbersAndStrings(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42, "b": "7f3c", "c": null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "42" || v.B != "7f3c" || v.C != "" {
		t.Errorf("ids = %+v", v)
	}

	out, err := json.Marshal(map[string]ID{"n": "42", "s": "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"n":42,"s":"abc"}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestPageDecodesBothShapes(t *testing.T) {
	var paged Page[Order]
	if err := json.Unmarshal([]byte(`{"count": 10, "next": "http://x/?page=2", "previous": null, "results": [{"id": 1, "status": "pending", "total": "19.90"}]}`), &paged); err != nil {
		t.Fatal(err)
	}
	if paged.Count != 10 || len(paged.Results) != 1 || paged.Next == "" {
		t.Errorf("paged = %+v", paged)
	}
	if !paged.Results[0].Total.Equal(decimal.RequireFromString("19.90")) {
		t.Errorf("total = %s", paged.Results[0].Total)
	}

	var bare Page[Order]
	if err := json.Unmarshal([]byte(`[{"id": 1}, {"id": 2}]`), &bare); err != nil {
		t.Fatal(err)
	}
	if bare.Count != 2 || len(bare.Results) != 2 {
		t.Errorf("bare = %+v", bare)
	}
}

func TestCartAvailableIsDisplayOnly(t *testing.T) {
	cart := Cart{
		Items: []CartItem{
			{ID: "1", Product: Product{Title: "Lamp", Stock: 3}},
			{ID: "2", Product: Product{Title: "Rug", Stock: 0}},
		},
		Total: decimal.RequireFromString("80.00"),
	}
	avail := cart.Available()
	if len(avail) != 1 || avail[0].ID != "1" {
		t.Errorf("available = %+v", avail)
	}
	if !cart.Total.Equal(decimal.RequireFromString("80.00")) || len(cart.Items) != 2 {
		t.Error("Available must not touch the backend cart")
	}
}

func TestChatHelpers(t *testing.T) {
	now := time.Now()
	c := Chat{
		Participants: []User{{ID: "1", Username: "me"}, {ID: "2", Username: "bob", FirstName: "Bob", LastName: "Ross"}},
		UpdatedAt:    now.Add(-time.Hour),
		LastMessage:  &Message{CreatedAt: now},
	}
	if got := c.Other("1").DisplayName(); got != "Bob Ross" {
		t.Errorf("Other = %q", got)
	}
	if !c.LastActivity().Equal(now) {
		t.Errorf("LastActivity = %v, want last message time", c.LastActivity())
	}

	m := Message{Sender: &User{ID: "9"}}
	if m.From() != "9" {
		t.Errorf("From = %q", m.From())
	}
}

func newTestAPI(t *testing.T, h http.HandlerFunc) *httpapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens, _ := auth.NewStore(nil)
	_ = tokens.Set("tok", "ref")
	return httpapi.New(httpapi.Options{BaseURL: srv.URL, BaseDelay: time.Millisecond}, tokens, zap.NewNop())
}

func TestChatAPISendText(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/chats/42/messages/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["content"] != "hello" || body["message_type"] != "text" {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 501, "chat": 42, "sender": {"id": 1, "username": "me"}, "message_type": "text", "content": "hello", "created_at": "2026-03-01T10:00:00.123456Z"}`)
	})

	msg, err := NewChatAPI(c).SendText(context.Background(), "42", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "501" || msg.Chat != "42" || msg.From() != "1" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestMarketAPIToggleFavorite(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketplace/products/7/favorite/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"is_favorited": true}`)
	})

	fav, err := NewMarketAPI(c).ToggleFavorite(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	if !fav {
		t.Error("want favorited")
	}
}

func TestSellerAPIApplyUploadsPhotos(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := len(r.MultipartForm.File["photos"]); got != 2 {
			t.Errorf("photos = %d, want 2", got)
		}
		if r.FormValue("shop_name") != "Lamps" {
			t.Errorf("shop_name = %q", r.FormValue("shop_name"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 3, "shop_name": "Lamps", "status": "pending"}`)
	})

	app, err := NewSellerAPI(c).Apply(context.Background(), ApplicationForm{
		ShopName:    "Lamps",
		Description: "Vintage lamps",
		Photos: []httpapi.File{
			{Name: "front.jpg", Data: []byte("a")},
			{Name: "back.jpg", Data: []byte("b")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if app.Status != ApplicationPending {
		t.Errorf("status = %q", app.Status)
	}
}

func TestUserMessage(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/400/":
			w.WriteHeader(400)
			_, _ = io.WriteString(w, `{"detail": "Order cannot be cancelled after shipping."}`)
		case "/403/":
			w.WriteHeader(403)
		case "/404/":
			w.WriteHeader(404)
		case "/500/":
			w.WriteHeader(500)
			_, _ = io.WriteString(w, `{"detail": "Traceback..."}`)
		}
	})

	tests := []struct {
		path string
		want string
	}{
		{"/400/", "Order cannot be cancelled after shipping."},
		{"/403/", MsgForbidden},
		{"/404/", MsgNotFound},
		{"/500/", MsgUnavailable},
	}
	for _, tt := range tests {
		err := c.Get(context.Background(), tt.path, nil, nil)
		if got := UserMessage(err); got != tt.want {
			t.Errorf("UserMessage(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if got := UserMessage(&httpapi.Error{Kind: httpapi.KindNetwork, Err: errors.New("refused")}); got != MsgOffline {
		t.Errorf("network = %q", got)
	}
	if got := UserMessage(fmt.Errorf("wrapped: %w", context.Canceled)); got != MsgCancelled {
		t.Errorf("cancelled = %q", got)
	}
	if UserMessage(nil) != "" {
		t.Error("nil should map to empty")
	}
}
