package workflow

import (
	"context"
	"sync"

	"github.com/matheus3301/souk/internal/backend"
)

// FavoriteBackend toggles a product's favorite flag. *backend.MarketAPI
// implements it.
type FavoriteBackend interface {
	ToggleFavorite(ctx context.Context, productID backend.ID) (bool, error)
}

// Favorites tracks favorite flags under rapid toggling. Each toggle is a request
// with a sequence number; a response is applied only if no later-issued request
// has already been applied, so the flag always reflects the newest completed
// request.
type Favorites struct {
	api FavoriteBackend

	mu      sync.Mutex
	value   map[backend.ID]bool
	issued  map[backend.ID]uint64
	applied map[backend.ID]uint64
	pending map[backend.ID]int
}

// NewFavorites creates an empty tracker.
func NewFavorites(api FavoriteBackend) *Favorites {
	return &Favorites{
		api:     api,
		value:   make(map[backend.ID]bool),
		issued:  make(map[backend.ID]uint64),
		applied: make(map[backend.ID]uint64),
		pending: make(map[backend.ID]int),
	}
}

// Seed records flags from a product listing. Products with requests in flight
// keep their tracked value.
func (f *Favorites) Seed(products []backend.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range products {
		if f.pending[p.ID] == 0 {
			f.value[p.ID] = p.IsFavorited
		}
	}
}

// Value returns the displayed flag.
func (f *Favorites) Value(productID backend.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value[productID]
}

// Toggle issues a toggle request and returns the displayed flag once it
// completes. A stale response leaves the flag alone. On error the flag is
// unchanged and the error is returned.
func (f *Favorites) Toggle(ctx context.Context, productID backend.ID) (bool, error) {
	f.mu.Lock()
	f.issued[productID]++
	seq := f.issued[productID]
	f.pending[productID]++
	f.mu.Unlock()

	v, err := f.api.ToggleFavorite(ctx, productID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[productID]--
	if err != nil {
		return f.value[productID], err
	}
	if seq > f.applied[productID] {
		f.applied[productID] = seq
		f.value[productID] = v
	}
	return f.value[productID], nil
}
