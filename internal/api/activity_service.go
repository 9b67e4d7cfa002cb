package api

import (
	"context"

	"github.com/matheus3301/souk/internal/activity"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ActivityService implements rpc.ActivityServer.
type ActivityService struct {
	feed *activity.Feed
}

// NewActivityService creates the activity service.
func NewActivityService(feed *activity.Feed) *ActivityService {
	return &ActivityService{feed: feed}
}

func (s *ActivityService) List(_ context.Context, _ *rpc.Empty) (*rpc.NotificationsResponse, error) {
	items := s.feed.List()
	out := make([]rpc.Notification, 0, len(items))
	unread := 0
	for _, it := range items {
		if !it.Read {
			unread++
		}
		out = append(out, notificationToRPC(it))
	}
	return &rpc.NotificationsResponse{Items: out, Unread: unread}, nil
}

func notificationToRPC(it activity.Item) rpc.Notification {
	return rpc.Notification{
		ID:        string(it.ID),
		Category:  it.Category,
		Type:      it.Type,
		Title:     it.Title,
		Message:   it.Message,
		Link:      it.Link,
		Read:      it.Read,
		CreatedAt: it.CreatedAt,
	}
}

func (s *ActivityService) MarkRead(_ context.Context, req *rpc.NotificationRequest) (*rpc.Empty, error) {
	if !s.feed.MarkRead(backend.ID(req.ID)) {
		return nil, grpcstatus.Errorf(codes.NotFound, "notification %q not found", req.ID)
	}
	return &rpc.Empty{}, nil
}

func (s *ActivityService) MarkAllRead(_ context.Context, _ *rpc.Empty) (*rpc.MarkAllReadResponse, error) {
	return &rpc.MarkAllReadResponse{Changed: s.feed.MarkAllRead()}, nil
}
