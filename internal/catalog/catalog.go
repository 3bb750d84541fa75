// Package catalog holds products and categories: the two live collections
// every visitor sees, plus the admin operations that mutate them.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/collection"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

// Uncategorized is the bucket products fall into when their category field
// is empty or names a category that no longer exists.
const Uncategorized = "Uncategorized"

// Product is one storefront item.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category is a named product grouping.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecodeProduct turns a raw store document into a Product.
func DecodeProduct(doc store.Doc) (Product, error) {
	var p Product
	if err := json.Unmarshal(doc.Data, &p); err != nil {
		return Product{}, fmt.Errorf("catalog: decode product %s: %w", doc.ID, err)
	}
	p.ID = doc.ID
	return p, nil
}

// DecodeCategory turns a raw store document into a Category.
func DecodeCategory(doc store.Doc) (Category, error) {
	var c Category
	if err := json.Unmarshal(doc.Data, &c); err != nil {
		return Category{}, fmt.Errorf("catalog: decode category %s: %w", doc.ID, err)
	}
	c.ID = doc.ID
	return c, nil
}

func encodeProduct(p Product) (store.Doc, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return store.Doc{}, fmt.Errorf("catalog: encode product %s: %w", p.ID, err)
	}
	return store.Doc{ID: p.ID, Data: data}, nil
}

func encodeCategory(c Category) (store.Doc, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return store.Doc{}, fmt.Errorf("catalog: encode category %s: %w", c.ID, err)
	}
	return store.Doc{ID: c.ID, Data: data}, nil
}

// ─── Derived views ────────────────────────────────────────────────────────────
//
// These are pure functions over a snapshot. They never mutate their input,
// so the same snapshot can be filtered different ways by different callers.

// FilterProducts narrows a product snapshot by free-text search and category.
// Search matches name and description, case-insensitively. An empty search
// or category means "no constraint".
func FilterProducts(items []Product, search, category string) []Product {
	search = strings.ToLower(strings.TrimSpace(search))
	return collection.Filter(items, func(p Product) bool {
		if category != "" && p.Category != category {
			return false
		}
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Description), search)
	})
}

// GroupByCategory buckets products by their category name, with the
// Uncategorized fallback for products whose category is empty.
func GroupByCategory(items []Product) map[string][]Product {
	return collection.GroupBy(items, func(p Product) string {
		if p.Category == "" {
			return Uncategorized
		}
		return p.Category
	})
}

// CategoryNames extracts the display names from a category snapshot.
func CategoryNames(cats []Category) []string {
	return collection.Pluck(cats, func(c Category) string { return c.Name })
}
