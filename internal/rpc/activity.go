package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const ActivityService = "souk.v1.ActivityService"

type Notification struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationsResponse struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

type NotificationRequest struct {
	ID string `json:"id"`
}

type MarkAllReadResponse struct {
	Changed int `json:"changed"`
}

// ActivityServer exposes the notification feed.
type ActivityServer interface {
	List(context.Context, *Empty) (*NotificationsResponse, error)
	MarkRead(context.Context, *NotificationRequest) (*Empty, error)
	MarkAllRead(context.Context, *Empty) (*MarkAllReadResponse, error)
}

var ActivityServiceDesc = grpc.ServiceDesc{
	ServiceName: ActivityService,
	HandlerType: (*ActivityServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ActivityService, "List", ActivityServer.List),
		unary(ActivityService, "MarkRead", ActivityServer.MarkRead),
		unary(ActivityService, "MarkAllRead", ActivityServer.MarkAllRead),
	},
}

func RegisterActivityServer(s grpc.ServiceRegistrar, srv ActivityServer) {
	s.RegisterService(&ActivityServiceDesc, srv)
}

// ActivityClient calls a daemon's ActivityService.
type ActivityClient struct {
	cc grpc.ClientConnInterface
}

func NewActivityClient(cc grpc.ClientConnInterface) *ActivityClient {
	return &ActivityClient{cc: cc}
}

func (c *ActivityClient) List(ctx context.Context, opts ...grpc.CallOption) (*NotificationsResponse, error) {
	return invoke[NotificationsResponse](ctx, c.cc, ActivityService, "List", &Empty{}, opts)
}

func (c *ActivityClient) MarkRead(ctx context.Context, id string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, ActivityService, "MarkRead", &NotificationRequest{ID: id}, opts)
	return err
}

func (c *ActivityClient) MarkAllRead(ctx context.Context, opts ...grpc.CallOption) (int, error) {
	resp, err := invoke[MarkAllReadResponse](ctx, c.cc, ActivityService, "MarkAllRead", &Empty{}, opts)
	if err != nil {
		return 0, err
	}
	return resp.Changed, nil
}
