package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/realtime"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/store"
	"github.com/shashiranjanraj/storefront/pkg/validate"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// ProductInput is the admin create/update form. Partial products are
// rejected before they reach the store. Price carries no "required" rule:
// that rule reads a zero float as absent, and 0 is a legal price.
type ProductInput struct {
	Name        string  `json:"name"        validate:"required,min=2,max=120"`
	Description string  `json:"description" validate:"required,min=2,max=2000"`
	Price       float64 `json:"price"       validate:"numeric,gte=0"`
	Category    string  `json:"category"    validate:"required,min=2,max=60"`
	ImageURL    string  `json:"imageUrl"    validate:"required,url"`
}

// CategoryInput is the admin category form.
type CategoryInput struct {
	Name string `json:"name" validate:"required,min=2,max=60"`
}

// Service owns the catalog collections and their live mirrors.
//
// Reads go through the mirrors (every visitor sees the same snapshot);
// writes go straight to the store and come back through the change feed,
// so a successful write is visible to the writer the same way it is
// visible to everyone else.
type Service struct {
	products   store.Collection
	categories store.Collection

	Products   *realtime.Syncer[Product]
	Categories *realtime.Syncer[Category]
}

// New builds a Service over the store's "products" and "categories"
// collections. pool may be nil.
func New(st store.Store, pool *workerpool.Pool) *Service {
	prodCol := st.Collection("products")
	catCol := st.Collection("categories")
	return &Service{
		products:   prodCol,
		categories: catCol,
		Products:   realtime.New(prodCol, DecodeProduct, realtime.WithPool[Product](pool)),
		Categories: realtime.New(catCol, DecodeCategory, realtime.WithPool[Category](pool)),
	}
}

// CreateProduct inserts a new product. Admin only. Returns the created
// product, or a field→message map when validation fails.
func (s *Service) CreateProduct(ctx context.Context, sess auth.Session, in ProductInput) (Product, map[string]string, error) {
	if !sess.Role.IsAdmin() {
		return Product{}, nil, auth.ErrUnauthorized
	}
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Product{}, errs, nil
	}

	p := Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		CreatedAt:   time.Now().UTC(),
	}

	doc, err := encodeProduct(p)
	if err != nil {
		return Product{}, nil, err
	}
	if err := s.products.Insert(ctx, doc); err != nil {
		return Product{}, nil, fmt.Errorf("catalog: insert product: %w", err)
	}

	logger.Info("product created", "product_id", p.ID, "name", p.Name)
	return p, nil, nil
}

// UpdateProduct replaces an existing product's fields. Admin only.
// The created timestamp survives the replacement.
func (s *Service) UpdateProduct(ctx context.Context, sess auth.Session, id string, in ProductInput) (Product, map[string]string, error) {
	if !sess.Role.IsAdmin() {
		return Product{}, nil, auth.ErrUnauthorized
	}
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Product{}, errs, nil
	}

	doc, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, nil, err
	}
	existing, err := DecodeProduct(doc)
	if err != nil {
		return Product{}, nil, err
	}

	existing.Name = in.Name
	existing.Description = in.Description
	existing.Price = in.Price
	existing.Category = in.Category
	existing.ImageURL = in.ImageURL

	out, err := encodeProduct(existing)
	if err != nil {
		return Product{}, nil, err
	}
	if err := s.products.Update(ctx, out); err != nil {
		return Product{}, nil, fmt.Errorf("catalog: update product: %w", err)
	}

	logger.Info("product updated", "product_id", existing.ID)
	return existing, nil, nil
}

// DeleteProduct removes a product. Admin only. Orders that reference the
// product keep their own line copies, so nothing cascades.
func (s *Service) DeleteProduct(ctx context.Context, sess auth.Session, id string) error {
	if !sess.Role.IsAdmin() {
		return auth.ErrUnauthorized
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("product deleted", "product_id", id)
	return nil
}

// CreateCategory inserts a new category. Admin only.
func (s *Service) CreateCategory(ctx context.Context, sess auth.Session, in CategoryInput) (Category, map[string]string, error) {
	if !sess.Role.IsAdmin() {
		return Category{}, nil, auth.ErrUnauthorized
	}
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Category{}, errs, nil
	}

	c := Category{
		ID:        uuid.NewString(),
		Name:      in.Name,
		CreatedAt: time.Now().UTC(),
	}

	doc, err := encodeCategory(c)
	if err != nil {
		return Category{}, nil, err
	}
	if err := s.categories.Insert(ctx, doc); err != nil {
		return Category{}, nil, fmt.Errorf("catalog: insert category: %w", err)
	}

	logger.Info("category created", "category_id", c.ID, "name", c.Name)
	return c, nil, nil
}

// DeleteCategory removes a category. Admin only. Products that carried the
// name keep it; they simply fall back to the Uncategorized bucket in
// grouped views once the category is gone.
func (s *Service) DeleteCategory(ctx context.Context, sess auth.Session, id string) error {
	if !sess.Role.IsAdmin() {
		return auth.ErrUnauthorized
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("category deleted", "category_id", id)
	return nil
}
