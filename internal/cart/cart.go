// Package cart implements the ephemeral shopping cart.
//
// A cart is purely local state: it never touches the network, is never
// persisted, and dies with the browsing session. Checkout copies its lines
// into an immutable order snapshot and only then clears it.
package cart

import (
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/collection"
)

// Item is one cart line. Quantity is always >= 1: a line that would reach
// zero is removed, never stored at zero.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl"`
	Quantity  int     `json:"quantity"`
}

// Product is the subset of catalog data a cart line is built from.
type Product struct {
	ID       string
	Name     string
	Price    float64
	ImageURL string
}

// Cart is a synchronous state machine over the selected products.
// Every operation is a total function; there is no error channel.
// Safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	items []Item // insertion order, ProductID unique
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add inserts product with quantity 1, or bumps the existing line's quantity.
// First-seen order is preserved.
func (c *Cart) Add(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  1,
	})
}

// Decrease lowers the line's quantity by one, removing the line entirely when
// it reaches zero. Decreasing an absent product is a no-op.
func (c *Cart) Decrease(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		c.items[i].Quantity--
		if c.items[i].Quantity < 1 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return
	}
}

// Remove deletes the line unconditionally. Absent product is a no-op.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = collection.Reject(c.items, func(it Item) bool {
		return it.ProductID == productID
	})
}

// Clear empties the cart. Called as the final step of a successful checkout.
// Idempotent.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subtotal recomputes Σ price × quantity over all lines. Never cached.
func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return collection.Sum(c.items, func(it Item) float64 {
		return it.Price * float64(it.Quantity)
	})
}
