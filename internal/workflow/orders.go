package workflow

import (
	"context"
	"slices"

	"github.com/matheus3301/souk/internal/backend"
	"go.uber.org/zap"
)

// OrderBackend is the REST side of orders. *backend.OrderAPI implements it.
type OrderBackend interface {
	List(ctx context.Context) ([]backend.Order, error)
	Cancel(ctx context.Context, id backend.ID) (*backend.Order, error)
	AddTracking(ctx context.Context, id backend.ID, carrier, number string) (*backend.Order, error)
}

var cancellable = []string{backend.OrderPending, backend.OrderPaid, backend.OrderProcessing}

// CanCancel reports whether the cancel action should be offered. The backend
// decides; this only hides the button.
func CanCancel(o backend.Order) bool {
	return slices.Contains(cancellable, o.Status)
}

// CanAddTracking reports whether a seller should be offered the tracking form.
func CanAddTracking(o backend.Order) bool {
	return o.Status == backend.OrderPaid || o.Status == backend.OrderProcessing || o.Status == backend.OrderShipped
}

// Orders is the buyer's or seller's order list.
type Orders struct {
	api    OrderBackend
	list   *List[backend.ID, backend.Order]
	logger *zap.Logger
}

// NewOrders creates an empty order list.
func NewOrders(api OrderBackend, logger *zap.Logger) *Orders {
	return &Orders{
		api:    api,
		list:   NewList(func(o backend.Order) backend.ID { return o.ID }),
		logger: logger,
	}
}

// Load replaces the list with the backend's.
func (o *Orders) Load(ctx context.Context) error {
	orders, err := o.api.List(ctx)
	if err != nil {
		return err
	}
	o.list.Replace(orders)
	return nil
}

// Items returns the orders in listing order.
func (o *Orders) Items() []backend.Order { return o.list.Items() }

// Put adds a newly placed order, or patches a known one.
func (o *Orders) Put(order backend.Order) { o.list.Put(order) }

// Get returns one order.
func (o *Orders) Get(id backend.ID) (backend.Order, bool) { return o.list.Get(id) }

// Cancel asks the backend to cancel an order and patches it on success.
func (o *Orders) Cancel(ctx context.Context, id backend.ID) (backend.Order, error) {
	return o.list.Apply(ctx, id, func(ctx context.Context, cur backend.Order) (backend.Order, error) {
		updated, err := o.api.Cancel(ctx, id)
		if err != nil {
			o.logger.Info("cancel order rejected", zap.String("order_id", string(id)), zap.String("status", cur.Status), zap.Error(err))
			return cur, err
		}
		return mergeOrder(cur, updated), nil
	})
}

// AddTracking records the carrier and tracking number for a shipped order.
func (o *Orders) AddTracking(ctx context.Context, id backend.ID, carrier, number string) (backend.Order, error) {
	return o.list.Apply(ctx, id, func(ctx context.Context, cur backend.Order) (backend.Order, error) {
		updated, err := o.api.AddTracking(ctx, id, carrier, number)
		if err != nil {
			return cur, err
		}
		if updated.TrackingNumber == "" {
			updated.TrackingNumber = number
		}
		if updated.Carrier == "" {
			updated.Carrier = carrier
		}
		return mergeOrder(cur, updated), nil
	})
}

// mergeOrder keeps the fields a partial response leaves out.
func mergeOrder(cur backend.Order, updated *backend.Order) backend.Order {
	if updated == nil {
		return cur
	}
	out := *updated
	if out.ID == "" {
		out.ID = cur.ID
	}
	if len(out.Items) == 0 {
		out.Items = cur.Items
	}
	if out.Total.IsZero() {
		out.Total = cur.Total
	}
	if out.Buyer == nil {
		out.Buyer = cur.Buyer
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = cur.CreatedAt
	}
	return out
}
