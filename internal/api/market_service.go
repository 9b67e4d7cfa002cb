package api

import (
	"context"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/workflow"
	"go.uber.org/zap"
)

// Catalog is the product side of the backend. *backend.MarketAPI implements it.
type Catalog interface {
	Products(ctx context.Context, q backend.ProductQuery) (*backend.Page[backend.Product], error)
	Product(ctx context.Context, id backend.ID) (*backend.Product, error)
	ToggleFavorite(ctx context.Context, id backend.ID) (bool, error)
}

// Carts is the cart side of the backend. *backend.CartAPI implements it.
type Carts interface {
	Get(ctx context.Context) (*backend.Cart, error)
	Add(ctx context.Context, productID backend.ID, quantity int) (*backend.Cart, error)
	Update(ctx context.Context, itemID backend.ID, quantity int) (*backend.Cart, error)
	Remove(ctx context.Context, itemID backend.ID) error
}

// Checkouts places orders. *backend.OrderAPI implements it.
type Checkouts interface {
	workflow.OrderBackend
	Checkout(ctx context.Context, req backend.CheckoutRequest) (*backend.Order, error)
}

// Sellers covers seller onboarding. *backend.SellerAPI implements it.
type Sellers interface {
	workflow.SellerBackend
	Mine(ctx context.Context) (*backend.SellerApplication, error)
}

// MarketService implements rpc.MarketServer.
type MarketService struct {
	catalog      Catalog
	carts        Carts
	orderAPI     Checkouts
	sellerAPI    Sellers
	orders       *workflow.Orders
	applications *workflow.SellerApplications
	favorites    *workflow.Favorites
	logger       *zap.Logger
}

// NewMarketService wires the marketplace workflows.
func NewMarketService(catalog Catalog, carts Carts, orders Checkouts, sellers Sellers, logger *zap.Logger) *MarketService {
	return &MarketService{
		catalog:      catalog,
		carts:        carts,
		orderAPI:     orders,
		sellerAPI:    sellers,
		orders:       workflow.NewOrders(orders, logger),
		applications: workflow.NewSellerApplications(sellers, logger),
		favorites:    workflow.NewFavorites(catalog),
		logger:       logger,
	}
}

func (s *MarketService) Products(ctx context.Context, req *rpc.ProductsRequest) (*rpc.ProductsResponse, error) {
	page, err := s.catalog.Products(ctx, backend.ProductQuery{Search: req.Search, Category: req.Category, Page: req.Page})
	if err != nil {
		return nil, toStatus(err)
	}
	s.favorites.Seed(page.Results)
	for i := range page.Results {
		page.Results[i].IsFavorited = s.favorites.Value(page.Results[i].ID)
	}
	return &rpc.ProductsResponse{Products: page.Results, Count: page.Count, HasMore: page.Next != ""}, nil
}

func (s *MarketService) Product(ctx context.Context, req *rpc.ProductRequest) (*rpc.ProductResponse, error) {
	p, err := s.catalog.Product(ctx, backend.ID(req.ProductID))
	if err != nil {
		return nil, toStatus(err)
	}
	s.favorites.Seed([]backend.Product{*p})
	p.IsFavorited = s.favorites.Value(p.ID)
	return &rpc.ProductResponse{Product: *p}, nil
}

func (s *MarketService) ToggleFavorite(ctx context.Context, req *rpc.ProductRequest) (*rpc.FavoriteResponse, error) {
	v, err := s.favorites.Toggle(ctx, backend.ID(req.ProductID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.FavoriteResponse{Favorited: v}, nil
}

func cartResponse(c *backend.Cart) *rpc.CartResponse {
	return &rpc.CartResponse{Cart: *c, Available: c.Available()}
}

func (s *MarketService) Cart(ctx context.Context, _ *rpc.Empty) (*rpc.CartResponse, error) {
	c, err := s.carts.Get(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return cartResponse(c), nil
}

func (s *MarketService) AddToCart(ctx context.Context, req *rpc.CartItemRequest) (*rpc.CartResponse, error) {
	if req.ProductID == "" {
		return nil, invalid("A product id is required.")
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	c, err := s.carts.Add(ctx, backend.ID(req.ProductID), qty)
	if err != nil {
		return nil, toStatus(err)
	}
	return cartResponse(c), nil
}

func (s *MarketService) UpdateCartItem(ctx context.Context, req *rpc.CartItemRequest) (*rpc.CartResponse, error) {
	if req.Quantity <= 0 {
		return s.RemoveCartItem(ctx, req)
	}
	c, err := s.carts.Update(ctx, backend.ID(req.ItemID), req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return cartResponse(c), nil
}

func (s *MarketService) RemoveCartItem(ctx context.Context, req *rpc.CartItemRequest) (*rpc.CartResponse, error) {
	if err := s.carts.Remove(ctx, backend.ID(req.ItemID)); err != nil {
		return nil, toStatus(err)
	}
	return s.Cart(ctx, &rpc.Empty{})
}

func (s *MarketService) Checkout(ctx context.Context, req *rpc.CheckoutRequest) (*rpc.OrderResponse, error) {
	o, err := s.orderAPI.Checkout(ctx, backend.CheckoutRequest{ShippingAddress: req.ShippingAddress, PaymentMethod: req.PaymentMethod})
	if err != nil {
		return nil, toStatus(err)
	}
	s.orders.Put(*o)
	return orderResponse(*o), nil
}

func orderResponse(o backend.Order) *rpc.OrderResponse {
	return &rpc.OrderResponse{Order: o, CanCancel: workflow.CanCancel(o)}
}

func (s *MarketService) Orders(ctx context.Context, _ *rpc.Empty) (*rpc.OrdersResponse, error) {
	if err := s.orders.Load(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.OrdersResponse{Orders: s.orders.Items()}, nil
}

// knownOrder loads the list when id is not in it yet.
func (s *MarketService) knownOrder(ctx context.Context, id backend.ID) {
	if _, ok := s.orders.Get(id); !ok {
		if err := s.orders.Load(ctx); err != nil {
			s.logger.Debug("order list load failed", zap.Error(err))
		}
	}
}

func (s *MarketService) CancelOrder(ctx context.Context, req *rpc.OrderRequest) (*rpc.OrderResponse, error) {
	id := backend.ID(req.OrderID)
	s.knownOrder(ctx, id)
	o, err := s.orders.Cancel(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return orderResponse(o), nil
}

func (s *MarketService) AddTracking(ctx context.Context, req *rpc.TrackingRequest) (*rpc.OrderResponse, error) {
	if req.Number == "" {
		return nil, invalid("A tracking number is required.")
	}
	id := backend.ID(req.OrderID)
	s.knownOrder(ctx, id)
	o, err := s.orders.AddTracking(ctx, id, req.Carrier, req.Number)
	if err != nil {
		return nil, toStatus(err)
	}
	return orderResponse(o), nil
}

func (s *MarketService) Apply(ctx context.Context, req *rpc.ApplyRequest) (*rpc.ApplicationResponse, error) {
	form := backend.ApplicationForm{ShopName: req.ShopName, Description: req.Description, Phone: req.Phone}
	for _, p := range req.Photos {
		form.Photos = append(form.Photos, httpapi.File{Name: p.Name, Data: p.Data})
	}
	app, err := s.applications.Submit(ctx, form)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ApplicationResponse{Application: app}, nil
}

func (s *MarketService) MyApplication(ctx context.Context, _ *rpc.Empty) (*rpc.ApplicationResponse, error) {
	app, err := s.sellerAPI.Mine(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ApplicationResponse{Application: *app}, nil
}

func (s *MarketService) Applications(ctx context.Context, req *rpc.ApplicationsRequest) (*rpc.ApplicationsResponse, error) {
	if err := s.applications.Load(ctx, req.Status); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ApplicationsResponse{Applications: s.applications.Items()}, nil
}

func (s *MarketService) knownApplication(ctx context.Context, id backend.ID) {
	if _, ok := s.applications.Get(id); !ok {
		if err := s.applications.Load(ctx, ""); err != nil {
			s.logger.Debug("application list load failed", zap.Error(err))
		}
	}
}

func (s *MarketService) ApproveApplication(ctx context.Context, req *rpc.ReviewRequest) (*rpc.ApplicationResponse, error) {
	s.knownApplication(ctx, backend.ID(req.ApplicationID))
	app, err := s.applications.Approve(ctx, backend.ID(req.ApplicationID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ApplicationResponse{Application: app}, nil
}

func (s *MarketService) RejectApplication(ctx context.Context, req *rpc.ReviewRequest) (*rpc.ApplicationResponse, error) {
	s.knownApplication(ctx, backend.ID(req.ApplicationID))
	app, err := s.applications.Reject(ctx, backend.ID(req.ApplicationID), req.Reason)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ApplicationResponse{Application: app}, nil
}
