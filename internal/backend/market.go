package backend

import (
	"context"
	"net/url"
	"strconv"

	"github.com/matheus3301/souk/internal/httpapi"
)

// ProductQuery filters the product listing.
type ProductQuery struct {
	Search   string
	Category string
	Page     int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// MarketAPI covers products and favorites.
type MarketAPI struct {
	c *httpapi.Client
}

// NewMarketAPI creates the marketplace service.
func NewMarketAPI(c *httpapi.Client) *MarketAPI {
	return &MarketAPI{c: c}
}

func productPath(id ID, suffix string) string {
	return "/marketplace/products/" + url.PathEscape(string(id)) + "/" + suffix
}

// Products lists products.
func (a *MarketAPI) Products(ctx context.Context, q ProductQuery) (*Page[Product], error) {
	var out Page[Product]
	if err := a.c.Get(ctx, "/marketplace/products/", q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Product returns one listing.
func (a *MarketAPI) Product(ctx context.Context, id ID) (*Product, error) {
	var out Product
	if err := a.c.Get(ctx, productPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Favorites lists the user's favorited products.
func (a *MarketAPI) Favorites(ctx context.Context) ([]Product, error) {
	var out Page[Product]
	if err := a.c.Get(ctx, "/marketplace/favorites/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ToggleFavorite flips the favorite flag and returns the server's new value.
func (a *MarketAPI) ToggleFavorite(ctx context.Context, id ID) (bool, error) {
	var out struct {
		IsFavorited bool `json:"is_favorited"`
	}
	if err := a.c.Post(ctx, productPath(id, "favorite/"), nil, &out); err != nil {
		return false, err
	}
	return out.IsFavorited, nil
}

// CartAPI covers the shopping cart.
type CartAPI struct {
	c *httpapi.Client
}

// NewCartAPI creates the cart service.
func NewCartAPI(c *httpapi.Client) *CartAPI {
	return &CartAPI{c: c}
}

// Get returns the current cart.
func (a *CartAPI) Get(ctx context.Context) (*Cart, error) {
	var out Cart
	if err := a.c.Get(ctx, "/cart/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add puts quantity units of a product in the cart and returns the updated cart.
func (a *CartAPI) Add(ctx context.Context, productID ID, quantity int) (*Cart, error) {
	var out Cart
	body := map[string]any{"product_id": productID, "quantity": quantity}
	if err := a.c.Post(ctx, "/cart/items/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sets a line's quantity.
func (a *CartAPI) Update(ctx context.Context, itemID ID, quantity int) (*Cart, error) {
	var out Cart
	if err := a.c.Patch(ctx, "/cart/items/"+url.PathEscape(string(itemID))+"/", map[string]int{"quantity": quantity}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a line.
func (a *CartAPI) Remove(ctx context.Context, itemID ID) error {
	return a.c.Delete(ctx, "/cart/items/"+url.PathEscape(string(itemID))+"/", nil)
}
