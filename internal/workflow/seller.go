package workflow

import (
	"context"
	"strings"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"go.uber.org/zap"
)

// SellerBackend is the REST side of seller applications. *backend.SellerAPI
// implements it.
type SellerBackend interface {
	Apply(ctx context.Context, f backend.ApplicationForm) (*backend.SellerApplication, error)
	List(ctx context.Context, status string) ([]backend.SellerApplication, error)
	Approve(ctx context.Context, id backend.ID) (*backend.SellerApplication, error)
	Reject(ctx context.Context, id backend.ID, reason string) (*backend.SellerApplication, error)
}

// SellerApplications is the staff review queue plus the applicant's own submission.
type SellerApplications struct {
	api    SellerBackend
	list   *List[backend.ID, backend.SellerApplication]
	logger *zap.Logger
}

// NewSellerApplications creates an empty review list.
func NewSellerApplications(api SellerBackend, logger *zap.Logger) *SellerApplications {
	return &SellerApplications{
		api:    api,
		list:   NewList(func(a backend.SellerApplication) backend.ID { return a.ID }),
		logger: logger,
	}
}

// Load replaces the list with the applications in status ("" for all).
func (s *SellerApplications) Load(ctx context.Context, status string) error {
	apps, err := s.api.List(ctx, status)
	if err != nil {
		return err
	}
	s.list.Replace(apps)
	return nil
}

// Items returns the applications in listing order.
func (s *SellerApplications) Items() []backend.SellerApplication { return s.list.Items() }

// Get returns one application.
func (s *SellerApplications) Get(id backend.ID) (backend.SellerApplication, bool) { return s.list.Get(id) }

// Approve approves one application.
func (s *SellerApplications) Approve(ctx context.Context, id backend.ID) (backend.SellerApplication, error) {
	return s.list.Apply(ctx, id, func(ctx context.Context, cur backend.SellerApplication) (backend.SellerApplication, error) {
		updated, err := s.api.Approve(ctx, id)
		if err != nil {
			return cur, err
		}
		return mergeApplication(cur, updated, backend.ApplicationApproved), nil
	})
}

// Reject rejects one application. A reason is required.
func (s *SellerApplications) Reject(ctx context.Context, id backend.ID, reason string) (backend.SellerApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return backend.SellerApplication{}, &httpapi.Error{
			Kind:    httpapi.KindValidation,
			Message: "A rejection reason is required.",
			Fields:  map[string][]string{"reason": {"This field may not be blank."}},
		}
	}
	return s.list.Apply(ctx, id, func(ctx context.Context, cur backend.SellerApplication) (backend.SellerApplication, error) {
		updated, err := s.api.Reject(ctx, id, reason)
		if err != nil {
			return cur, err
		}
		out := mergeApplication(cur, updated, backend.ApplicationRejected)
		if out.RejectionReason == "" {
			out.RejectionReason = reason
		}
		return out, nil
	})
}

// Submit sends the caller's application and adds it to the list.
func (s *SellerApplications) Submit(ctx context.Context, f backend.ApplicationForm) (backend.SellerApplication, error) {
	app, err := s.api.Apply(ctx, f)
	if err != nil {
		return backend.SellerApplication{}, err
	}
	s.list.Put(*app)
	s.logger.Info("seller application submitted", zap.String("application_id", string(app.ID)))
	return *app, nil
}

func mergeApplication(cur backend.SellerApplication, updated *backend.SellerApplication, status string) backend.SellerApplication {
	out := cur
	if updated != nil {
		out = *updated
		if out.ID == "" {
			out.ID = cur.ID
		}
		if out.User == nil {
			out.User = cur.User
		}
		if out.ShopName == "" {
			out.ShopName = cur.ShopName
		}
	}
	if out.Status == "" {
		out.Status = status
	}
	return out
}
