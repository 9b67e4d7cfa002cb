package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/auth"
	"go.uber.org/zap"
)

func testTokens(t *testing.T, access, refresh string) *auth.Store {
	t.Helper()
	s, err := auth.NewStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(access, refresh); err != nil {
		t.Fatal(err)
	}
	return s
}

func testClient(base string, tokens TokenSource) *Client {
	return New(Options{BaseURL: base, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, tokens, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDoAttachesBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, testTokens(t, "tok", "ref"))
	var out map[string]string
	if err := c.Post(context.Background(), "/x/", map[string]int{"a": 1}, &out); err != nil {
		t.Fatal(err)
	}
	if out["hello"] != "world" {
		t.Errorf("out = %v", out)
	}
}

func TestRefreshOnceAndRetryOnce(t *testing.T) {
	var refreshCalls, protectedCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DefaultRefreshPath:
			refreshCalls.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh"] != "ref-1" {
				t.Errorf("refresh body = %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
		case "/orders/":
			protectedCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
				return
			}
			writeJSON(w, http.StatusOK, []int{1, 2})
		}
	}))
	defer srv.Close()

	tokens := testTokens(t, "stale", "ref-1")
	c := testClient(srv.URL, tokens)

	var out []int
	if err := c.Get(context.Background(), "/orders/", nil, &out); err != nil {
		t.Fatal(err)
	}
	if refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshCalls.Load())
	}
	if protectedCalls.Load() != 2 {
		t.Errorf("protected calls = %d, want 2 (original + one retry)", protectedCalls.Load())
	}
	if tokens.Access() != "fresh" || tokens.Refresh() != "ref-1" {
		t.Errorf("tokens = %+v, want fresh/ref-1", tokens.Tokens())
	}
}

func TestSecond401IsAuthErrorWithoutAnotherRefresh(t *testing.T) {
	var refreshCalls, protectedCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == DefaultRefreshPath {
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh", "refresh": "ref-2"})
			return
		}
		protectedCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, testTokens(t, "stale", "ref-1"))
	err := c.Get(context.Background(), "/me/", nil, nil)
	if !IsKind(err, KindAuth) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if refreshCalls.Load() != 1 || protectedCalls.Load() != 2 {
		t.Errorf("refresh=%d protected=%d, want 1 and 2", refreshCalls.Load(), protectedCalls.Load())
	}
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	var protectedCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == DefaultRefreshPath {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is blacklisted", "code": "token_not_valid"})
			return
		}
		protectedCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	}))
	defer srv.Close()

	tokens := testTokens(t, "stale", "ref-1")
	c := testClient(srv.URL, tokens)

	err := c.Get(context.Background(), "/cart/", nil, nil)
	if !IsKind(err, KindAuth) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if tokens.Access() != "" || tokens.Refresh() != "" {
		t.Errorf("tokens = %+v, want cleared", tokens.Tokens())
	}
	if protectedCalls.Load() != 1 {
		t.Errorf("protected calls = %d, want 1 (no retry after failed refresh)", protectedCalls.Load())
	}
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == DefaultRefreshPath {
			refreshCalls.Add(1)
			<-release
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL, testTokens(t, "stale", "ref"))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Get(context.Background(), "/chat/chats/", nil, nil)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("request error: %v", err)
		}
	}
	if refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshCalls.Load())
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNetworkErrorRetriesThenPropagates(t *testing.T) {
	var calls atomic.Int32
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	hc := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, dialErr
	})}
	c := New(Options{BaseURL: "http://shop.test/api", HTTPClient: hc, BaseDelay: time.Millisecond}, nil, zap.NewNop())

	err := c.Post(context.Background(), "/orders/", map[string]string{}, nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("err = %v, want network error", err)
	}
	if calls.Load() != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", calls.Load(), DefaultMaxAttempts)
	}
}

func TestNetworkErrorRecovers(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"count":3}`)),
			Request:    r,
		}, nil
	})}
	c := New(Options{BaseURL: "http://shop.test/api", HTTPClient: hc, BaseDelay: time.Millisecond}, nil, zap.NewNop())

	var out struct{ Count int }
	if err := c.Get(context.Background(), "/marketplace/products/", nil, &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 3 || calls.Load() != 3 {
		t.Errorf("count=%d calls=%d, want 3 and 3", out.Count, calls.Load())
	}
}

func TestNonIdempotentNotReplayedAfterSend(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
	})}
	c := New(Options{BaseURL: "http://shop.test/api", HTTPClient: hc, BaseDelay: time.Millisecond}, nil, zap.NewNop())

	err := c.Post(context.Background(), "/orders/1/cancel/", nil, nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1", calls.Load())
	}
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantKind    Kind
		wantMessage string
		wantField   string
	}{
		{"detail", 404, "application/json", `{"detail":"Order not found."}`, KindNotFound, "Order not found.", ""},
		{"field errors", 400, "application/json", `{"email":["Enter a valid email address."]}`, KindValidation, "email: Enter a valid email address.", "email"},
		{"non field errors", 400, "application/json", `{"non_field_errors":["Passwords do not match."]}`, KindValidation, "Passwords do not match.", "non_field_errors"},
		{"email unverified", 403, "application/json", `{"detail":"Verify your email first.","code":"email_not_verified"}`, KindEmailUnverified, "Verify your email first.", ""},
		{"forbidden", 403, "application/json", `{"error":"Sellers only"}`, KindForbidden, "Sellers only", ""},
		{"server html", 502, "text/html", `<html>bad gateway</html>`, KindServer, "HTTP error 502", ""},
		{"teapot", 418, "", ``, KindHTTP, "HTTP error 418", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := testClient(srv.URL, nil).Get(context.Background(), "/x/", nil, nil)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Message != tt.wantMessage || apiErr.Status != tt.status {
				t.Errorf("got kind=%s msg=%q status=%d", apiErr.Kind, apiErr.Message, apiErr.Status)
			}
			if tt.wantField != "" && len(apiErr.Fields[tt.wantField]) == 0 {
				t.Errorf("fields = %v, want %q", apiErr.Fields, tt.wantField)
			}
		})
	}
}

func TestNoContentAndNonJSONResolveEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty/" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	out := map[string]string{"untouched": "yes"}
	if err := c.Delete(context.Background(), "/empty/", &out); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(context.Background(), "/text/", nil, &out); err != nil {
		t.Fatal(err)
	}
	if out["untouched"] != "yes" {
		t.Errorf("out modified: %v", out)
	}
}

func TestPostFormSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer on multipart upload")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if r.FormValue("shop_name") != "Lamps" {
			t.Errorf("shop_name = %q", r.FormValue("shop_name"))
		}
		f, hdr, err := r.FormFile("photos")
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "a.jpg" || string(data) != "JPEG" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		writeJSON(w, http.StatusCreated, map[string]int{"id": 9})
	}))
	defer srv.Close()

	c := testClient(srv.URL, testTokens(t, "tok", "ref"))
	form := &Form{
		Fields: map[string]string{"shop_name": "Lamps"},
		Files:  []File{{Field: "photos", Name: "a.jpg", Data: []byte("JPEG")}},
	}
	var out struct{ ID int }
	if err := c.PostForm(context.Background(), "/seller/applications/", form, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != 9 {
		t.Errorf("id = %d", out.ID)
	}
}
