// Package seeders loads demo data so a fresh install has something to show.
package seeders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/catalog"
	pkgauth "github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

// Run inserts the demo catalog and an admin account. Safe to re-run: it
// skips seeding when the products collection is non-empty.
func Run(ctx context.Context, st store.Store) error {
	products := st.Collection("products")

	existing, err := products.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list products: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("seed skipped, products already present", "count", len(existing))
		return nil
	}

	if err := seedAdmin(ctx, st); err != nil {
		return err
	}
	if err := seedCatalog(ctx, st); err != nil {
		return err
	}

	logger.Info("seed complete")
	return nil
}

func seedAdmin(ctx context.Context, st store.Store) error {
	password := config.Get("SEED_ADMIN_PASSWORD", "changeme1")
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed: hash admin password: %w", err)
	}

	doc := map[string]any{
		"email":        config.Get("SEED_ADMIN_EMAIL", "admin@storefront.dev"),
		"passwordHash": hash,
		"role":         "admin",
		"name":         "Shop Admin",
		"createdAt":    time.Now().UTC(),
	}
	return insert(ctx, st.Collection("users"), doc)
}

func seedCatalog(ctx context.Context, st store.Store) error {
	categories := []string{"Clothing", "Accessories", "Home"}
	for _, name := range categories {
		c := catalog.Category{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("seed: encode category: %w", err)
		}
		if err := st.Collection("categories").Insert(ctx, store.Doc{ID: c.ID, Data: data}); err != nil {
			return fmt.Errorf("seed: insert category %s: %w", name, err)
		}
	}

	demo := []catalog.Product{
		{Name: "Linen Shirt", Description: "Relaxed-fit linen shirt in off-white.", Price: 49.90, Category: "Clothing", ImageURL: "https://images.storefront.dev/linen-shirt.jpg"},
		{Name: "Wool Scarf", Description: "Hand-woven merino scarf.", Price: 34.50, Category: "Accessories", ImageURL: "https://images.storefront.dev/wool-scarf.jpg"},
		{Name: "Ceramic Vase", Description: "Small glazed vase, fired locally.", Price: 27.00, Category: "Home", ImageURL: "https://images.storefront.dev/ceramic-vase.jpg"},
		{Name: "Leather Belt", Description: "Full-grain leather belt with brass buckle.", Price: 42.00, Category: "Accessories", ImageURL: "https://images.storefront.dev/leather-belt.jpg"},
	}
	for _, p := range demo {
		p.ID = uuid.NewString()
		p.CreatedAt = time.Now().UTC()
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("seed: encode product: %w", err)
		}
		if err := st.Collection("products").Insert(ctx, store.Doc{ID: p.ID, Data: data}); err != nil {
			return fmt.Errorf("seed: insert product %s: %w", p.Name, err)
		}
	}
	return nil
}

func insert(ctx context.Context, col store.Collection, doc map[string]any) error {
	id := uuid.NewString()
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return col.Insert(ctx, store.Doc{ID: id, Data: data})
}
