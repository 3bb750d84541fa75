package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/catalog"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/sse"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

// sseHeartbeat keeps idle SSE connections from being reaped by proxies.
const sseHeartbeat = 25 * time.Second

type CatalogController struct {
	svc     *catalog.Service
	session func(*http.Request) auth.Session
}

func NewCatalogController(svc *catalog.Service, session func(*http.Request) auth.Session) *CatalogController {
	return &CatalogController{svc: svc, session: session}
}

// ListProducts renders the current product snapshot, optionally narrowed by
// ?search= and ?category=, or bucketed with ?grouped=1.
func (c *CatalogController) ListProducts(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := c.svc.Products.Current()
	if err != nil {
		response.BadGateway(w, "Product feed unavailable")
		return
	}
	if !ok {
		// Mirror still warming up right after boot.
		response.Error(w, http.StatusServiceUnavailable, "Catalog is loading, retry shortly")
		return
	}

	q := r.URL.Query()
	items := catalog.FilterProducts(snap.Items, q.Get("search"), q.Get("category"))

	if q.Get("grouped") != "" {
		response.Success(w, catalog.GroupByCategory(items))
		return
	}
	response.Success(w, items)
}

// ShowProduct renders a single product from the current snapshot.
func (c *CatalogController) ShowProduct(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := c.svc.Products.Current()
	if err != nil {
		response.BadGateway(w, "Product feed unavailable")
		return
	}
	if !ok {
		response.Error(w, http.StatusServiceUnavailable, "Catalog is loading, retry shortly")
		return
	}

	id := chi.URLParam(r, "id")
	for i := range snap.Items {
		if snap.Items[i].ID == id {
			response.Success(w, snap.Items[i])
			return
		}
	}
	response.NotFound(w)
}

// StreamProducts pushes every product snapshot to the client over SSE.
// The subscription is torn down on every exit path: client disconnect,
// feed failure, or server shutdown all release it.
func (c *CatalogController) StreamProducts(w http.ResponseWriter, r *http.Request) {
	stream := sse.New(w, r)
	if stream == nil {
		return
	}

	sub := c.svc.Products.Subscribe(r.Context())
	defer sub.Unsubscribe()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case snap, open := <-sub.Snapshots():
			if !open {
				if err := sub.Err(); err != nil {
					stream.Send("error", map[string]string{"error": "product feed lost"})
					logger.WithCtx(r.Context()).Error("product stream failed", "error", err)
				}
				return
			}
			stream.Send("products", snap.Items)
		case <-heartbeat.C:
			stream.Comment("keepalive")
		case <-r.Context().Done():
			return
		}
	}
}

// ListCategories renders the current category snapshot.
func (c *CatalogController) ListCategories(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := c.svc.Categories.Current()
	if err != nil {
		response.BadGateway(w, "Category feed unavailable")
		return
	}
	if !ok {
		response.Error(w, http.StatusServiceUnavailable, "Catalog is loading, retry shortly")
		return
	}
	response.Success(w, snap.Items)
}

// ─── Admin surface ────────────────────────────────────────────────────────────

func (c *CatalogController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var body catalog.ProductInput
	if _, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	p, errs, err := c.svc.CreateProduct(r.Context(), c.session(r), body)
	if err != nil {
		c.writeCatalogError(w, r, err)
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}
	response.Created(w, p)
}

func (c *CatalogController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body catalog.ProductInput
	if _, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	p, errs, err := c.svc.UpdateProduct(r.Context(), c.session(r), chi.URLParam(r, "id"), body)
	if err != nil {
		c.writeCatalogError(w, r, err)
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}
	response.Success(w, p)
}

func (c *CatalogController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.DeleteProduct(r.Context(), c.session(r), chi.URLParam(r, "id")); err != nil {
		c.writeCatalogError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

func (c *CatalogController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var body catalog.CategoryInput
	if _, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	cat, errs, err := c.svc.CreateCategory(r.Context(), c.session(r), body)
	if err != nil {
		c.writeCatalogError(w, r, err)
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}
	response.Created(w, cat)
}

func (c *CatalogController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.DeleteCategory(r.Context(), c.session(r), chi.URLParam(r, "id")); err != nil {
		c.writeCatalogError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

func (c *CatalogController) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		response.Forbidden(w)
	case errors.Is(err, store.ErrNotFound):
		response.NotFound(w)
	default:
		logger.WithCtx(r.Context()).Error("catalog operation failed", "error", err)
		response.BadGateway(w, "Catalog store unavailable")
	}
}
