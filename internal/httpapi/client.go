package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenSource is the credential store the client reads from and refreshes into.
type TokenSource interface {
	Access() string
	Refresh() string
	Set(access, refresh string) error
	SetAccess(access string) error
	Clear() error
}

// Options tunes a Client. Zero values fall back to the defaults below.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RefreshPath string
}

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 5 * time.Second
	DefaultRefreshPath = "/auth/token/refresh/"
)

// Client issues authenticated REST calls against the marketplace backend.
type Client struct {
	base        string
	http        *http.Client
	tokens      TokenSource
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	refreshPath string
	refreshes   singleflight.Group
}

// New creates a client. tokens may be nil for unauthenticated use.
func New(opts Options, tokens TokenSource, logger *zap.Logger) *Client {
	c := &Client{
		base:        strings.TrimRight(opts.BaseURL, "/"),
		http:        opts.HTTPClient,
		tokens:      tokens,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		refreshPath: opts.RefreshPath,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: opts.Timeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = DefaultMaxDelay
	}
	if c.refreshPath == "" {
		c.refreshPath = DefaultRefreshPath
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// File is one part of a multipart upload.
type File struct {
	Field string
	Name  string
	Data  []byte
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Request describes one API call. Body is JSON-encoded; Form takes precedence when set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Form   *Form
	NoAuth bool
}

// Do performs r and decodes a JSON response into out (which may be nil).
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	body, contentType, err := r.encode()
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", r.Method, r.Path, err)
	}

	token := ""
	if !r.NoAuth && c.tokens != nil {
		token = c.tokens.Access()
	}
	resp, err := c.send(ctx, r, body, contentType, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.NoAuth && c.tokens != nil {
		discard(resp)
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, r, body, contentType, fresh)
		if err != nil {
			return err
		}
	}
	defer discard(resp)

	return decode(resp, out)
}

// Get is a convenience wrapper for GET requests.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post is a convenience wrapper for JSON POST requests.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Patch is a convenience wrapper for JSON PATCH requests.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete is a convenience wrapper for DELETE requests.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// PostForm uploads a multipart form.
func (c *Client) PostForm(ctx context.Context, path string, form *Form, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Form: form}, out)
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// refresh exchanges the refresh token for a new access token. Concurrent callers
// share one call. stale is the access token that was rejected: if another caller
// already replaced it, the current token is returned without a new exchange.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	if current := c.tokens.Access(); current != "" && current != stale {
		return current, nil
	}

	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		rt := c.tokens.Refresh()
		if rt == "" {
			_ = c.tokens.Clear()
			return "", &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired"}
		}

		body, ct, err := Request{Body: map[string]string{"refresh": rt}}.encode()
		if err != nil {
			return "", err
		}
		resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.refreshPath, NoAuth: true}, body, ct, "")
		if err != nil {
			// Offline is not a rejected session; keep the tokens.
			return "", err
		}
		defer discard(resp)

		var out refreshResponse
		if err := decode(resp, &out); err != nil || out.Access == "" {
			c.logger.Warn("token refresh rejected", zap.Int("status", resp.StatusCode))
			_ = c.tokens.Clear()
			return "", &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired", Err: err}
		}

		if out.Refresh != "" {
			err = c.tokens.Set(out.Access, out.Refresh)
		} else {
			err = c.tokens.SetAccess(out.Access)
		}
		if err != nil {
			return "", fmt.Errorf("store refreshed token: %w", err)
		}
		c.logger.Debug("access token refreshed")
		return out.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// send issues the request, retrying network-level failures with exponential backoff.
func (c *Client) send(ctx context.Context, r Request, body []byte, contentType, token string) (*http.Response, error) {
	target := c.base + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	delay := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err == nil {
			c.logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.Path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(r.Method, err) || attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("network error, retrying",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			break
		}
		delay = min(delay*2, c.maxDelay)
	}
	return nil, &Error{Kind: KindNetwork, Message: "network error", Err: lastErr}
}

func retryable(method string, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	// The request body may have reached the server; only replay when it never left.
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if resp.StatusCode == http.StatusNoContent || out == nil || !isJSON(resp.Header.Get("Content-Type")) {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func (r Request) encode() ([]byte, string, error) {
	if r.Form != nil {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range r.Form.Fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		for _, f := range r.Form.Files {
			part, err := w.CreateFormFile(f.Field, f.Name)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), w.FormDataContentType(), nil
	}
	if r.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}
