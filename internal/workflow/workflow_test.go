package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"go.uber.org/zap"
)

type fakeOrders struct {
	orders    []backend.Order
	cancelErr error
}

func (f *fakeOrders) List(context.Context) ([]backend.Order, error) { return f.orders, nil }

func (f *fakeOrders) Cancel(_ context.Context, id backend.ID) (*backend.Order, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &backend.Order{ID: id, Status: backend.OrderCancelled}, nil
}

func (f *fakeOrders) AddTracking(_ context.Context, id backend.ID, _, _ string) (*backend.Order, error) {
	return &backend.Order{ID: id, Status: backend.OrderShipped}, nil
}

func loadedOrders(t *testing.T, api *fakeOrders) *Orders {
	t.Helper()
	o := NewOrders(api, zap.NewNop())
	if err := o.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestListApplyPatchesOnlyTarget(t *testing.T) {
	l := NewList(func(s string) string { return s[:1] })
	l.Replace([]string{"a1", "b1", "c1"})

	got, err := l.Apply(context.Background(), "b", func(_ context.Context, cur string) (string, error) {
		return "b2", nil
	})
	if err != nil || got != "b2" {
		t.Fatalf("Apply = %q, %v", got, err)
	}
	items := l.Items()
	if items[0] != "a1" || items[1] != "b2" || items[2] != "c1" {
		t.Errorf("items = %v", items)
	}

	if _, err := l.Apply(context.Background(), "z", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	l.Put("d1")
	if l.Items()[0] != "d1" || l.Len() != 4 {
		t.Errorf("items = %v", l.Items())
	}
}

func TestCancelOrderSuccess(t *testing.T) {
	api := &fakeOrders{orders: []backend.Order{
		{ID: "1", Status: backend.OrderPending},
		{ID: "2", Status: backend.OrderPaid},
	}}
	o := loadedOrders(t, api)

	got, err := o.Cancel(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != backend.OrderCancelled {
		t.Errorf("status = %q", got.Status)
	}
	if other, _ := o.Get("2"); other.Status != backend.OrderPaid {
		t.Errorf("other order changed: %q", other.Status)
	}
}

func TestCancelOrderFailureKeepsState(t *testing.T) {
	api := &fakeOrders{
		orders:    []backend.Order{{ID: "1", Status: backend.OrderShipped}},
		cancelErr: &httpapi.Error{Kind: httpapi.KindValidation, Status: 400, Message: "Order can no longer be cancelled."},
	}
	o := loadedOrders(t, api)

	_, err := o.Cancel(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := backend.UserMessage(err); got != "Order can no longer be cancelled." {
		t.Errorf("message = %q, want backend copy verbatim", got)
	}
	if cur, _ := o.Get("1"); cur.Status != backend.OrderShipped {
		t.Errorf("status = %q, want unchanged", cur.Status)
	}
}

func TestAddTrackingFillsFields(t *testing.T) {
	o := loadedOrders(t, &fakeOrders{orders: []backend.Order{{ID: "1", Status: backend.OrderPaid}}})
	got, err := o.AddTracking(context.Background(), "1", "DHL", "JD0001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Carrier != "DHL" || got.TrackingNumber != "JD0001" || got.Status != backend.OrderShipped {
		t.Errorf("order = %+v", got)
	}
}

func TestCanCancel(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{backend.OrderPending, true},
		{backend.OrderPaid, true},
		{backend.OrderProcessing, true},
		{backend.OrderShipped, false},
		{backend.OrderDelivered, false},
		{backend.OrderCancelled, false},
	}
	for _, tt := range tests {
		if got := CanCancel(backend.Order{Status: tt.status}); got != tt.want {
			t.Errorf("CanCancel(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

type fakeSeller struct {
	apps      []backend.SellerApplication
	rejectErr error
	reasons   []string
}

func (f *fakeSeller) Apply(_ context.Context, form backend.ApplicationForm) (*backend.SellerApplication, error) {
	return &backend.SellerApplication{ID: "9", ShopName: form.ShopName, Status: backend.ApplicationPending}, nil
}

func (f *fakeSeller) List(context.Context, string) ([]backend.SellerApplication, error) {
	return f.apps, nil
}

func (f *fakeSeller) Approve(_ context.Context, id backend.ID) (*backend.SellerApplication, error) {
	return &backend.SellerApplication{ID: id, Status: backend.ApplicationApproved}, nil
}

func (f *fakeSeller) Reject(_ context.Context, id backend.ID, reason string) (*backend.SellerApplication, error) {
	f.reasons = append(f.reasons, reason)
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	return &backend.SellerApplication{ID: id}, nil
}

func TestSellerApplicationsReview(t *testing.T) {
	api := &fakeSeller{apps: []backend.SellerApplication{
		{ID: "1", ShopName: "Pots", Status: backend.ApplicationPending},
		{ID: "2", ShopName: "Rugs", Status: backend.ApplicationPending},
	}}
	s := NewSellerApplications(api, zap.NewNop())
	ctx := context.Background()
	if err := s.Load(ctx, backend.ApplicationPending); err != nil {
		t.Fatal(err)
	}

	a, err := s.Approve(ctx, "1")
	if err != nil || a.Status != backend.ApplicationApproved || a.ShopName != "Pots" {
		t.Fatalf("Approve = %+v, %v", a, err)
	}

	if _, err := s.Reject(ctx, "2", "   "); !httpapi.IsKind(err, httpapi.KindValidation) {
		t.Errorf("blank reason err = %v", err)
	}
	if len(api.reasons) != 0 {
		t.Error("blank reason reached the backend")
	}

	r, err := s.Reject(ctx, "2", "Blurry photos")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != backend.ApplicationRejected || r.RejectionReason != "Blurry photos" {
		t.Errorf("Reject = %+v", r)
	}

	sub, err := s.Submit(ctx, backend.ApplicationForm{ShopName: "Lamps"})
	if err != nil {
		t.Fatal(err)
	}
	if items := s.Items(); items[0].ID != sub.ID || len(items) != 3 {
		t.Errorf("items = %+v", items)
	}
}

func TestSellerRejectFailureKeepsState(t *testing.T) {
	api := &fakeSeller{
		apps:      []backend.SellerApplication{{ID: "1", Status: backend.ApplicationApproved}},
		rejectErr: &httpapi.Error{Kind: httpapi.KindForbidden, Status: 403, Message: "Already reviewed."},
	}
	s := NewSellerApplications(api, zap.NewNop())
	ctx := context.Background()
	_ = s.Load(ctx, "")

	if _, err := s.Reject(ctx, "1", "late"); err == nil {
		t.Fatal("expected error")
	}
	if s.Items()[0].Status != backend.ApplicationApproved {
		t.Error("status changed after failed reject")
	}
}

// gatedFavorites returns queued responses and lets the test pick completion order.
type gatedFavorites struct {
	mu     sync.Mutex
	server bool
	gates  []chan struct{}
}

func (g *gatedFavorites) ToggleFavorite(_ context.Context, _ backend.ID) (bool, error) {
	g.mu.Lock()
	g.server = !g.server
	v := g.server
	gate := make(chan struct{})
	g.gates = append(g.gates, gate)
	g.mu.Unlock()
	<-gate
	return v, nil
}

// waitIssued blocks until n requests reached the server.
func (g *gatedFavorites) waitIssued(n int) {
	for {
		g.mu.Lock()
		ok := len(g.gates) >= n
		g.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (g *gatedFavorites) release(i int) {
	g.waitIssued(i + 1)
	g.mu.Lock()
	close(g.gates[i])
	g.mu.Unlock()
}

type toggleFunc func(context.Context, backend.ID) (bool, error)

func (f toggleFunc) ToggleFavorite(ctx context.Context, id backend.ID) (bool, error) {
	return f(ctx, id)
}

func TestFavoritesDoubleToggleReturnsToOriginal(t *testing.T) {
	server := false
	f := NewFavorites(toggleFunc(func(context.Context, backend.ID) (bool, error) {
		server = !server
		return server, nil
	}))
	f.Seed([]backend.Product{{ID: "p", IsFavorited: false}})
	ctx := context.Background()

	if v, _ := f.Toggle(ctx, "p"); !v {
		t.Errorf("first toggle = %v", v)
	}
	if v, _ := f.Toggle(ctx, "p"); v {
		t.Errorf("second toggle = %v", v)
	}
	if f.Value("p") {
		t.Error("expected original state after two toggles")
	}
}

func TestFavoritesIgnoresStaleResponse(t *testing.T) {
	g := &gatedFavorites{}
	f := NewFavorites(g)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.Toggle(ctx, "p") // server answers true
	}()
	g.waitIssued(1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.Toggle(ctx, "p") // server answers false
	}()

	g.release(1) // second completes first
	g.release(0)
	wg.Wait()

	if f.Value("p") {
		t.Error("stale first response overwrote the newer one")
	}
}

func TestFavoritesErrorKeepsValue(t *testing.T) {
	boom := errors.New("offline")
	f := NewFavorites(toggleFunc(func(context.Context, backend.ID) (bool, error) { return false, boom }))
	f.Seed([]backend.Product{{ID: "p", IsFavorited: true}})

	v, err := f.Toggle(context.Background(), "p")
	if !errors.Is(err, boom) || !v {
		t.Errorf("Toggle = %v, %v", v, err)
	}
}
