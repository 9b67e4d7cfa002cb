package rpc

import (
	"context"

	"github.com/matheus3301/souk/internal/backend"
	"google.golang.org/grpc"
)

const MarketService = "souk.v1.MarketService"

type ProductsRequest struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Page     int    `json:"page,omitempty"`
}

type ProductsResponse struct {
	Products []backend.Product `json:"products"`
	Count    int               `json:"count"`
	HasMore  bool              `json:"has_more"`
}

type ProductRequest struct {
	ProductID string `json:"product_id"`
}

type ProductResponse struct {
	Product backend.Product `json:"product"`
}

type FavoriteResponse struct {
	Favorited bool `json:"favorited"`
}

type CartItemRequest struct {
	ProductID string `json:"product_id,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type CartResponse struct {
	Cart      backend.Cart       `json:"cart"`
	Available []backend.CartItem `json:"available"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method,omitempty"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type TrackingRequest struct {
	OrderID string `json:"order_id"`
	Carrier string `json:"carrier"`
	Number  string `json:"number"`
}

type OrderResponse struct {
	Order     backend.Order `json:"order"`
	CanCancel bool          `json:"can_cancel"`
}

type OrdersResponse struct {
	Orders []backend.Order `json:"orders"`
}

type Photo struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type ApplyRequest struct {
	ShopName    string  `json:"shop_name"`
	Description string  `json:"description"`
	Phone       string  `json:"phone,omitempty"`
	Photos      []Photo `json:"photos,omitempty"`
}

type ApplicationsRequest struct {
	Status string `json:"status,omitempty"`
}

type ReviewRequest struct {
	ApplicationID string `json:"application_id"`
	Reason        string `json:"reason,omitempty"`
}

type ApplicationResponse struct {
	Application backend.SellerApplication `json:"application"`
}

type ApplicationsResponse struct {
	Applications []backend.SellerApplication `json:"applications"`
}

// MarketServer exposes catalog, cart, order and seller workflows.
type MarketServer interface {
	Products(context.Context, *ProductsRequest) (*ProductsResponse, error)
	Product(context.Context, *ProductRequest) (*ProductResponse, error)
	ToggleFavorite(context.Context, *ProductRequest) (*FavoriteResponse, error)
	Cart(context.Context, *Empty) (*CartResponse, error)
	AddToCart(context.Context, *CartItemRequest) (*CartResponse, error)
	UpdateCartItem(context.Context, *CartItemRequest) (*CartResponse, error)
	RemoveCartItem(context.Context, *CartItemRequest) (*CartResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*OrderResponse, error)
	Orders(context.Context, *Empty) (*OrdersResponse, error)
	CancelOrder(context.Context, *OrderRequest) (*OrderResponse, error)
	AddTracking(context.Context, *TrackingRequest) (*OrderResponse, error)
	Apply(context.Context, *ApplyRequest) (*ApplicationResponse, error)
	MyApplication(context.Context, *Empty) (*ApplicationResponse, error)
	Applications(context.Context, *ApplicationsRequest) (*ApplicationsResponse, error)
	ApproveApplication(context.Context, *ReviewRequest) (*ApplicationResponse, error)
	RejectApplication(context.Context, *ReviewRequest) (*ApplicationResponse, error)
}

var MarketServiceDesc = grpc.ServiceDesc{
	ServiceName: MarketService,
	HandlerType: (*MarketServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MarketService, "Products", MarketServer.Products),
		unary(MarketService, "Product", MarketServer.Product),
		unary(MarketService, "ToggleFavorite", MarketServer.ToggleFavorite),
		unary(MarketService, "Cart", MarketServer.Cart),
		unary(MarketService, "AddToCart", MarketServer.AddToCart),
		unary(MarketService, "UpdateCartItem", MarketServer.UpdateCartItem),
		unary(MarketService, "RemoveCartItem", MarketServer.RemoveCartItem),
		unary(MarketService, "Checkout", MarketServer.Checkout),
		unary(MarketService, "Orders", MarketServer.Orders),
		unary(MarketService, "CancelOrder", MarketServer.CancelOrder),
		unary(MarketService, "AddTracking", MarketServer.AddTracking),
		unary(MarketService, "Apply", MarketServer.Apply),
		unary(MarketService, "MyApplication", MarketServer.MyApplication),
		unary(MarketService, "Applications", MarketServer.Applications),
		unary(MarketService, "ApproveApplication", MarketServer.ApproveApplication),
		unary(MarketService, "RejectApplication", MarketServer.RejectApplication),
	},
}

func RegisterMarketServer(s grpc.ServiceRegistrar, srv MarketServer) {
	s.RegisterService(&MarketServiceDesc, srv)
}

// MarketClient calls a daemon's MarketService.
type MarketClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketClient(cc grpc.ClientConnInterface) *MarketClient {
	return &MarketClient{cc: cc}
}

func (c *MarketClient) Products(ctx context.Context, in *ProductsRequest, opts ...grpc.CallOption) (*ProductsResponse, error) {
	return invoke[ProductsResponse](ctx, c.cc, MarketService, "Products", in, opts)
}

func (c *MarketClient) Product(ctx context.Context, id string, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MarketService, "Product", &ProductRequest{ProductID: id}, opts)
}

func (c *MarketClient) ToggleFavorite(ctx context.Context, id string, opts ...grpc.CallOption) (bool, error) {
	resp, err := invoke[FavoriteResponse](ctx, c.cc, MarketService, "ToggleFavorite", &ProductRequest{ProductID: id}, opts)
	if err != nil {
		return false, err
	}
	return resp.Favorited, nil
}

func (c *MarketClient) Cart(ctx context.Context, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MarketService, "Cart", &Empty{}, opts)
}

func (c *MarketClient) AddToCart(ctx context.Context, in *CartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MarketService, "AddToCart", in, opts)
}

func (c *MarketClient) UpdateCartItem(ctx context.Context, in *CartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MarketService, "UpdateCartItem", in, opts)
}

func (c *MarketClient) RemoveCartItem(ctx context.Context, in *CartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MarketService, "RemoveCartItem", in, opts)
}

func (c *MarketClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MarketService, "Checkout", in, opts)
}

func (c *MarketClient) Orders(ctx context.Context, opts ...grpc.CallOption) (*OrdersResponse, error) {
	return invoke[OrdersResponse](ctx, c.cc, MarketService, "Orders", &Empty{}, opts)
}

func (c *MarketClient) CancelOrder(ctx context.Context, id string, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MarketService, "CancelOrder", &OrderRequest{OrderID: id}, opts)
}

func (c *MarketClient) AddTracking(ctx context.Context, in *TrackingRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MarketService, "AddTracking", in, opts)
}

func (c *MarketClient) Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*ApplicationResponse, error) {
	return invoke[ApplicationResponse](ctx, c.cc, MarketService, "Apply", in, opts)
}

func (c *MarketClient) MyApplication(ctx context.Context, opts ...grpc.CallOption) (*ApplicationResponse, error) {
	return invoke[ApplicationResponse](ctx, c.cc, MarketService, "MyApplication", &Empty{}, opts)
}

func (c *MarketClient) Applications(ctx context.Context, status string, opts ...grpc.CallOption) (*ApplicationsResponse, error) {
	return invoke[ApplicationsResponse](ctx, c.cc, MarketService, "Applications", &ApplicationsRequest{Status: status}, opts)
}

func (c *MarketClient) ApproveApplication(ctx context.Context, id string, opts ...grpc.CallOption) (*ApplicationResponse, error) {
	return invoke[ApplicationResponse](ctx, c.cc, MarketService, "ApproveApplication", &ReviewRequest{ApplicationID: id}, opts)
}

func (c *MarketClient) RejectApplication(ctx context.Context, in *ReviewRequest, opts ...grpc.CallOption) (*ApplicationResponse, error) {
	return invoke[ApplicationResponse](ctx, c.cc, MarketService, "RejectApplication", in, opts)
}
