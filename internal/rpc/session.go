package rpc

import (
	"context"
	"encoding/json"

	"github.com/matheus3301/souk/internal/backend"
	"google.golang.org/grpc"
)

const SessionService = "souk.v1.SessionService"

type Empty struct{}

type StatusRequest struct{}

type StatusResponse struct {
	Session             string        `json:"session"`
	SignedIn            bool          `json:"signed_in"`
	User                *backend.User `json:"user,omitempty"`
	Realtime            string        `json:"realtime"`
	UptimeMs            int64         `json:"uptime_ms"`
	ChatCount           int64         `json:"chat_count"`
	MessageCount        int64         `json:"message_count"`
	TotalUnread         int           `json:"total_unread"`
	UnreadNotifications int           `json:"unread_notifications"`
	QueuedMessages      int           `json:"queued_messages"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User *backend.User `json:"user"`
}

type RegisterRequest struct {
	backend.RegisterRequest
}

type RegisterResponse struct {
	User    *backend.User `json:"user"`
	Message string        `json:"message"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type OAuthURLRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type OAuthURLResponse struct {
	URL string `json:"url"`
}

type OAuthCallbackRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	State    string `json:"state,omitempty"`
}

// WatchRequest filters the event stream by kind prefix ("" for everything).
type WatchRequest struct {
	Prefix string `json:"prefix"`
}

// Event is one bus event forwarded to a watcher.
type Event struct {
	ID           string          `json:"id"`
	Session      string          `json:"session"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// SessionServer is the account and connection surface of the daemon.
type SessionServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	ResendVerification(context.Context, *ResendVerificationRequest) (*Empty, error)
	OAuthURL(context.Context, *OAuthURLRequest) (*OAuthURLResponse, error)
	OAuthCallback(context.Context, *OAuthCallbackRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Reconnect(context.Context, *Empty) (*Empty, error)
	WatchEvents(*WatchRequest, grpc.ServerStreamingServer[Event]) error
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionService,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionService, "Status", SessionServer.Status),
		unary(SessionService, "Login", SessionServer.Login),
		unary(SessionService, "Register", SessionServer.Register),
		unary(SessionService, "ResendVerification", SessionServer.ResendVerification),
		unary(SessionService, "OAuthURL", SessionServer.OAuthURL),
		unary(SessionService, "OAuthCallback", SessionServer.OAuthCallback),
		unary(SessionService, "Logout", SessionServer.Logout),
		unary(SessionService, "Reconnect", SessionServer.Reconnect),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SessionServer).WatchEvents(in, &grpc.GenericServerStream[WatchRequest, Event]{ServerStream: stream})
			},
		},
	},
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionClient calls a daemon's SessionService.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{cc: cc}
}

func (c *SessionClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, SessionService, "Status", in, opts)
}

func (c *SessionClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, SessionService, "Login", in, opts)
}

func (c *SessionClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, SessionService, "Register", in, opts)
}

func (c *SessionClient) ResendVerification(ctx context.Context, in *ResendVerificationRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, SessionService, "ResendVerification", in, opts)
}

func (c *SessionClient) OAuthURL(ctx context.Context, in *OAuthURLRequest, opts ...grpc.CallOption) (*OAuthURLResponse, error) {
	return invoke[OAuthURLResponse](ctx, c.cc, SessionService, "OAuthURL", in, opts)
}

func (c *SessionClient) OAuthCallback(ctx context.Context, in *OAuthCallbackRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, SessionService, "OAuthCallback", in, opts)
}

func (c *SessionClient) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, SessionService, "Logout", &Empty{}, opts)
	return err
}

func (c *SessionClient) Reconnect(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, SessionService, "Reconnect", &Empty{}, opts)
	return err
}

// WatchEvents opens the event stream.
func (c *SessionClient) WatchEvents(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	stream, err := c.cc.NewStream(ctx, &SessionServiceDesc.Streams[0], "/"+SessionService+"/WatchEvents", callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
