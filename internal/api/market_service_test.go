package api

import (
	"context"
	"sync"
	"testing"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/rpc"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type fakeMarket struct {
	mu        sync.Mutex
	products  []backend.Product
	favorites map[backend.ID]bool

	cart    backend.Cart
	removed []backend.ID
	updated map[backend.ID]int

	orders     []backend.Order
	listCalls  int
	cancelErr  error
	apps       []backend.SellerApplication
	rejectCall int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{favorites: make(map[backend.ID]bool), updated: make(map[backend.ID]int)}
}

// Catalog

func (f *fakeMarket) Products(_ context.Context, _ backend.ProductQuery) (*backend.Page[backend.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]backend.Product(nil), f.products...)
	for i := range out {
		out[i].IsFavorited = f.favorites[out[i].ID]
	}
	return &backend.Page[backend.Product]{Count: len(out), Results: out}, nil
}

func (f *fakeMarket) Product(_ context.Context, id backend.ID) (*backend.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &httpapi.Error{Kind: httpapi.KindNotFound, Message: "Not found."}
}

func (f *fakeMarket) ToggleFavorite(_ context.Context, id backend.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites[id] = !f.favorites[id]
	return f.favorites[id], nil
}

// Carts

func (f *fakeMarket) Get(_ context.Context) (*backend.Cart, error) {
	c := f.cart
	return &c, nil
}

func (f *fakeMarket) Add(_ context.Context, productID backend.ID, quantity int) (*backend.Cart, error) {
	f.cart.Items = append(f.cart.Items, backend.CartItem{ID: "i-" + productID, Product: backend.Product{ID: productID, Stock: 5}, Quantity: quantity})
	return f.Get(context.Background())
}

func (f *fakeMarket) Update(_ context.Context, itemID backend.ID, quantity int) (*backend.Cart, error) {
	f.updated[itemID] = quantity
	return f.Get(context.Background())
}

func (f *fakeMarket) Remove(_ context.Context, itemID backend.ID) error {
	f.removed = append(f.removed, itemID)
	items := f.cart.Items[:0]
	for _, it := range f.cart.Items {
		if it.ID != itemID {
			items = append(items, it)
		}
	}
	f.cart.Items = items
	return nil
}

// Checkouts

func (f *fakeMarket) List(_ context.Context) ([]backend.Order, error) {
	f.listCalls++
	return append([]backend.Order(nil), f.orders...), nil
}

func (f *fakeMarket) Cancel(_ context.Context, id backend.ID) (*backend.Order, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &backend.Order{ID: id, Status: "cancelled"}, nil
}

func (f *fakeMarket) AddTracking(_ context.Context, id backend.ID, carrier, number string) (*backend.Order, error) {
	return &backend.Order{ID: id, Status: "shipped", Carrier: carrier, TrackingNumber: number}, nil
}

func (f *fakeMarket) Checkout(_ context.Context, req backend.CheckoutRequest) (*backend.Order, error) {
	return &backend.Order{ID: "new", Status: "pending", ShippingAddress: req.ShippingAddress}, nil
}

// sellerSide adapts the fake to workflow.SellerBackend, whose List has a
// different signature than the order one.
type sellerSide struct{ *fakeMarket }

func (s sellerSide) Apply(_ context.Context, f backend.ApplicationForm) (*backend.SellerApplication, error) {
	return &backend.SellerApplication{ID: "a-new", ShopName: f.ShopName, Status: "pending"}, nil
}

func (s sellerSide) List(_ context.Context, _ string) ([]backend.SellerApplication, error) {
	return append([]backend.SellerApplication(nil), s.apps...), nil
}

func (s sellerSide) Approve(_ context.Context, id backend.ID) (*backend.SellerApplication, error) {
	return &backend.SellerApplication{ID: id, Status: "approved"}, nil
}

func (s sellerSide) Reject(_ context.Context, id backend.ID, reason string) (*backend.SellerApplication, error) {
	s.rejectCall++
	return &backend.SellerApplication{ID: id, Status: "rejected", RejectionReason: reason}, nil
}

func (s sellerSide) Mine(_ context.Context) (*backend.SellerApplication, error) {
	if len(s.apps) == 0 {
		return nil, &httpapi.Error{Kind: httpapi.KindNotFound}
	}
	return &s.apps[0], nil
}

func newTestMarket() (*MarketService, *fakeMarket) {
	f := newFakeMarket()
	return NewMarketService(f, f, f, sellerSide{f}, zap.NewNop()), f
}

func TestMarketToggleFavorite(t *testing.T) {
	svc, f := newTestMarket()
	f.products = []backend.Product{{ID: "p1", Title: "Lamp"}, {ID: "p2", Title: "Rug"}}
	ctx := context.Background()

	if _, err := svc.Products(ctx, &rpc.ProductsRequest{}); err != nil {
		t.Fatal(err)
	}
	fav, err := svc.ToggleFavorite(ctx, &rpc.ProductRequest{ProductID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if !fav.Favorited {
		t.Fatal("expected p1 favorited")
	}

	resp, err := svc.Products(ctx, &rpc.ProductsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Products[0].IsFavorited || resp.Products[1].IsFavorited {
		t.Errorf("favorites = %v/%v, want true/false", resp.Products[0].IsFavorited, resp.Products[1].IsFavorited)
	}
}

func TestMarketUpdateCartZeroRemoves(t *testing.T) {
	svc, f := newTestMarket()
	ctx := context.Background()

	if _, err := svc.AddToCart(ctx, &rpc.CartItemRequest{ProductID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if f.cart.Items[0].Quantity != 1 {
		t.Errorf("default quantity = %d, want 1", f.cart.Items[0].Quantity)
	}

	resp, err := svc.UpdateCartItem(ctx, &rpc.CartItemRequest{ItemID: "i-p1", Quantity: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.removed) != 1 || f.removed[0] != "i-p1" {
		t.Errorf("removed = %v, want [i-p1]", f.removed)
	}
	if len(f.updated) != 0 {
		t.Errorf("Update should not be called, got %v", f.updated)
	}
	if len(resp.Cart.Items) != 0 {
		t.Errorf("cart items = %d, want 0", len(resp.Cart.Items))
	}

	if _, err := svc.AddToCart(ctx, &rpc.CartItemRequest{}); grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("AddToCart without product code = %v", grpcstatus.Code(err))
	}
}

func TestMarketCancelLoadsUnknownOrder(t *testing.T) {
	svc, f := newTestMarket()
	f.orders = []backend.Order{{ID: "o1", Status: "paid"}, {ID: "o2", Status: "shipped"}}
	ctx := context.Background()

	resp, err := svc.CancelOrder(ctx, &rpc.OrderRequest{OrderID: "o1"})
	if err != nil {
		t.Fatalf("CancelOrder error = %v", err)
	}
	if resp.Order.Status != "cancelled" || resp.CanCancel {
		t.Errorf("order = %+v, can_cancel = %v", resp.Order, resp.CanCancel)
	}
	if f.listCalls != 1 {
		t.Errorf("list calls = %d, want 1", f.listCalls)
	}

	list, err := svc.Orders(ctx, &rpc.Empty{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(list.Orders))
	}
}

func TestMarketCancelFailureShowsBackendMessage(t *testing.T) {
	svc, f := newTestMarket()
	f.orders = []backend.Order{{ID: "o1", Status: "paid"}}
	f.cancelErr = &httpapi.Error{Kind: httpapi.KindValidation, Status: 400, Message: "Order cannot be cancelled after shipping."}

	_, err := svc.CancelOrder(context.Background(), &rpc.OrderRequest{OrderID: "o1"})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if got := rpc.ErrorMessage(err); got != "Order cannot be cancelled after shipping." {
		t.Errorf("message = %q", got)
	}
}

func TestMarketUnknownOrderNotFound(t *testing.T) {
	svc, _ := newTestMarket()
	_, err := svc.AddTracking(context.Background(), &rpc.TrackingRequest{OrderID: "zz", Carrier: "UPS", Number: "1Z"})
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", grpcstatus.Code(err))
	}
	_, err = svc.AddTracking(context.Background(), &rpc.TrackingRequest{OrderID: "zz"})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("blank tracking code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestMarketRejectRequiresReason(t *testing.T) {
	svc, f := newTestMarket()
	f.apps = []backend.SellerApplication{{ID: "a1", ShopName: "Mugs", Status: "pending"}}
	ctx := context.Background()

	_, err := svc.RejectApplication(ctx, &rpc.ReviewRequest{ApplicationID: "a1", Reason: "  "})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if f.rejectCall != 0 {
		t.Errorf("backend reject called %d times", f.rejectCall)
	}

	resp, err := svc.RejectApplication(ctx, &rpc.ReviewRequest{ApplicationID: "a1", Reason: "Blurry photos"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Application.Status != "rejected" || resp.Application.RejectionReason != "Blurry photos" {
		t.Errorf("application = %+v", resp.Application)
	}

	apps, err := svc.Applications(ctx, &rpc.ApplicationsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(apps.Applications) != 1 {
		t.Errorf("applications = %d, want 1", len(apps.Applications))
	}
}
