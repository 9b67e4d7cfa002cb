package backend

import (
	"context"
	"net/url"

	"github.com/matheus3301/souk/internal/httpapi"
)

// CheckoutRequest places an order from the current cart.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method,omitempty"`
}

// OrderAPI covers buyer and seller order endpoints.
type OrderAPI struct {
	c *httpapi.Client
}

// NewOrderAPI creates the order service.
func NewOrderAPI(c *httpapi.Client) *OrderAPI {
	return &OrderAPI{c: c}
}

func orderPath(id ID, suffix string) string {
	return "/orders/" + url.PathEscape(string(id)) + "/" + suffix
}

// List returns the user's orders.
func (a *OrderAPI) List(ctx context.Context) ([]Order, error) {
	var out Page[Order]
	if err := a.c.Get(ctx, "/orders/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Get returns one order.
func (a *OrderAPI) Get(ctx context.Context, id ID) (*Order, error) {
	var out Order
	if err := a.c.Get(ctx, orderPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout turns the cart into an order.
func (a *OrderAPI) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var out Order
	if err := a.c.Post(ctx, "/orders/checkout/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel asks the backend to cancel an order and returns it as updated.
func (a *OrderAPI) Cancel(ctx context.Context, id ID) (*Order, error) {
	var out Order
	if err := a.c.Post(ctx, orderPath(id, "cancel/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTracking attaches carrier tracking to a shipped order.
func (a *OrderAPI) AddTracking(ctx context.Context, id ID, carrier, number string) (*Order, error) {
	var out Order
	body := map[string]string{"carrier": carrier, "tracking_number": number}
	if err := a.c.Post(ctx, orderPath(id, "tracking/"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
