package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/souk/internal/activity"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/chat"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/status"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Authenticator is the account side of the backend. *backend.AuthAPI implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.User, error)
	Logout(ctx context.Context, refresh string) error
	Me(ctx context.Context) (*backend.User, error)
	OAuthURL(ctx context.Context, provider, redirectURI string) (string, error)
	OAuthCallback(ctx context.Context, provider, code, state string) (*backend.LoginResult, error)
	ResendVerification(ctx context.Context, email string) error
}

// TokenStore holds the session tokens. *auth.Store implements it.
type TokenStore interface {
	HasSession() bool
	Refresh() string
	Set(access, refresh string) error
	Clear() error
}

// Realtime is the global channel as the session service sees it.
// *realtime.Conn implements it.
type Realtime interface {
	State() status.State
	Connect(ctx context.Context) error
}

// SessionDeps groups the session service's collaborators. DB, Queue and Feed
// are optional.
type SessionDeps struct {
	Auth     Authenticator
	Tokens   TokenStore
	Chat     *chat.Service
	Realtime Realtime
	Feed     *activity.Feed
	DB       *store.DB
	Bus      *bus.Bus
}

// SessionService implements rpc.SessionServer.
type SessionService struct {
	SessionDeps
	sessionName string
	startedAt   time.Time
	logger      *zap.Logger

	mu   sync.Mutex
	user *backend.User
}

// NewSessionService creates the session service.
func NewSessionService(sessionName string, d SessionDeps, logger *zap.Logger) *SessionService {
	return &SessionService{
		SessionDeps: d,
		sessionName: sessionName,
		startedAt:   time.Now(),
		logger:      logger,
	}
}

// Resume restores a persisted session at daemon start-up.
func (s *SessionService) Resume(ctx context.Context) {
	if !s.Tokens.HasSession() {
		s.logger.Info("no stored session, sign-in required")
		return
	}
	s.logger.Info("resuming stored session")
	s.Chat.Start(ctx)
	if u, err := s.Auth.Me(ctx); err == nil {
		s.setUser(u)
	}
}

func (s *SessionService) setUser(u *backend.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *SessionService) currentUser() *backend.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *SessionService) Status(_ context.Context, _ *rpc.StatusRequest) (*rpc.StatusResponse, error) {
	resp := &rpc.StatusResponse{
		Session:     s.sessionName,
		SignedIn:    s.Tokens.HasSession(),
		User:        s.currentUser(),
		Realtime:    string(s.Realtime.State()),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		TotalUnread: s.Chat.Store.TotalUnread(),
	}
	if s.Feed != nil {
		resp.UnreadNotifications = s.Feed.Unread()
	}
	if s.DB != nil {
		if n, err := s.DB.ChatCount(); err == nil {
			resp.ChatCount = n
		}
		if n, err := s.DB.MessageCount(); err == nil {
			resp.MessageCount = n
		}
		if pending, err := s.DB.ListOutbox(""); err == nil {
			resp.QueuedMessages = len(pending)
		}
	}
	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid("Email and password are required.")
	}
	res, err := s.Auth.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.signIn(ctx, res)
}

func (s *SessionService) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {
	if req.Password != req.Password2 {
		return nil, invalid("Passwords do not match.")
	}
	u, err := s.Auth.Register(ctx, req.RegisterRequest)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.RegisterResponse{User: u, Message: "Account created. Check your email to verify your address."}, nil
}

func (s *SessionService) ResendVerification(ctx context.Context, req *rpc.ResendVerificationRequest) (*rpc.Empty, error) {
	if err := s.Auth.ResendVerification(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *SessionService) OAuthURL(ctx context.Context, req *rpc.OAuthURLRequest) (*rpc.OAuthURLResponse, error) {
	if req.Provider == "" {
		return nil, invalid("An OAuth provider is required.")
	}
	u, err := s.Auth.OAuthURL(ctx, req.Provider, req.RedirectURI)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.OAuthURLResponse{URL: u}, nil
}

func (s *SessionService) OAuthCallback(ctx context.Context, req *rpc.OAuthCallbackRequest) (*rpc.LoginResponse, error) {
	if req.Provider == "" || req.Code == "" {
		return nil, invalid("Provider and code are required.")
	}
	res, err := s.Auth.OAuthCallback(ctx, req.Provider, req.Code, req.State)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.signIn(ctx, res)
}

func (s *SessionService) signIn(ctx context.Context, res *backend.LoginResult) (*rpc.LoginResponse, error) {
	if err := s.Tokens.Set(res.Access, res.Refresh); err != nil {
		return nil, toStatus(err)
	}
	u := res.User
	if u == nil {
		me, err := s.Auth.Me(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		u = me
	}
	s.setUser(u)
	s.Chat.Store.SetMe(u.ID)
	go s.Chat.Start(context.WithoutCancel(ctx))

	s.logger.Info("signed in", zap.String("user_id", string(u.ID)))
	s.Bus.Emit(bus.SessionSignedIn, u)
	return &rpc.LoginResponse{User: u}, nil
}

// Logout revokes the refresh token (best effort) and drops every piece of
// account state the daemon holds.
func (s *SessionService) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if refresh := s.Tokens.Refresh(); refresh != "" {
		if err := s.Auth.Logout(ctx, refresh); err != nil {
			s.logger.Warn("server-side logout failed", zap.Error(err))
		}
	}
	s.Chat.Reset()
	if s.Feed != nil {
		s.Feed.Clear()
	}
	if err := s.Tokens.Clear(); err != nil {
		return nil, toStatus(err)
	}
	if s.DB != nil {
		if err := s.DB.Wipe(); err != nil {
			s.logger.Error("wipe local data failed", zap.Error(err))
		}
	}
	s.setUser(nil)

	s.logger.Info("signed out")
	s.Bus.Emit(bus.SessionSignedOut, nil)
	return &rpc.Empty{}, nil
}

// Reconnect re-opens the global channel, e.g. after it gave up retrying.
func (s *SessionService) Reconnect(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if !s.Tokens.HasSession() {
		return nil, toStatus(errNotSignedIn)
	}
	if err := s.Realtime.Connect(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *SessionService) WatchEvents(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.Event]) error {
	ch, unsub := s.Bus.Subscribe(req.Prefix, 256)
	defer unsub()
	dropped := s.Bus.Dropped()
	defer func() {
		if n := s.Bus.Dropped() - dropped; n > 0 {
			s.logger.Warn("event stream missed events", zap.String("prefix", req.Prefix), zap.Uint64("dropped", n))
		}
	}()

	for {
		select {
		case evt := <-ch:
			payload, err := json.Marshal(eventPayload(evt.Payload))
			if err != nil {
				s.logger.Debug("event payload not encodable", zap.String("kind", evt.Kind), zap.Error(err))
				payload = nil
			}
			if err := stream.Send(&rpc.Event{
				ID:           uuid.NewString(),
				Session:      s.sessionName,
				Kind:         evt.Kind,
				OccurredAtMs: evt.Timestamp.UnixMilli(),
				Payload:      payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
