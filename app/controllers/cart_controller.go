package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/internal/catalog"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// cartTokenHeader carries the client-generated cart token for anonymous
// visitors. Authenticated requests ignore it; their cart is keyed by
// principal ID.
const cartTokenHeader = "X-Cart-Token"

type CartController struct {
	carts   *cart.Manager
	catalog *catalog.Service
	session func(*http.Request) auth.Session
}

func NewCartController(carts *cart.Manager, cat *catalog.Service, session func(*http.Request) auth.Session) *CartController {
	return &CartController{carts: carts, catalog: cat, session: session}
}

// cartFor resolves the request's cart. ok is false when an anonymous
// request carries no cart token, in which case a 400 was already written.
func (c *CartController) cartFor(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	sess := c.session(r)
	key := sess.CartKey(r.Header.Get(cartTokenHeader))
	if key == "" {
		response.Error(w, http.StatusBadRequest, "Missing "+cartTokenHeader+" header")
		return nil, false
	}
	return c.carts.Get(key), true
}

func (c *CartController) render(w http.ResponseWriter, crt *cart.Cart) {
	response.Success(w, map[string]any{
		"items":    crt.Items(),
		"count":    crt.Len(),
		"subtotal": crt.Subtotal(),
	})
}

// Show returns the cart's current contents.
func (c *CartController) Show(w http.ResponseWriter, r *http.Request) {
	crt, ok := c.cartFor(w, r)
	if !ok {
		return
	}
	c.render(w, crt)
}

type cartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// Add puts one unit of the product in the cart. The line snapshots the
// product's name, price, and image at this moment; later catalog edits do
// not rewrite it.
func (c *CartController) Add(w http.ResponseWriter, r *http.Request) {
	var body cartItemRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	snap, ready, err := c.catalog.Products.Current()
	if err != nil || !ready {
		response.BadGateway(w, "Catalog unavailable")
		return
	}
	var found *catalog.Product
	for i := range snap.Items {
		if snap.Items[i].ID == body.ProductID {
			found = &snap.Items[i]
			break
		}
	}
	if found == nil {
		response.NotFound(w)
		return
	}

	crt, ok := c.cartFor(w, r)
	if !ok {
		return
	}
	crt.Add(cart.Product{
		ID:       found.ID,
		Name:     found.Name,
		Price:    found.Price,
		ImageURL: found.ImageURL,
	})
	metrics.CartOps.WithLabelValues("add").Inc()
	c.render(w, crt)
}

// Decrease lowers a line's quantity by one; at one, the line disappears.
func (c *CartController) Decrease(w http.ResponseWriter, r *http.Request) {
	var body cartItemRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	crt, ok := c.cartFor(w, r)
	if !ok {
		return
	}
	crt.Decrease(body.ProductID)
	metrics.CartOps.WithLabelValues("decrease").Inc()
	c.render(w, crt)
}

// Remove deletes a line outright regardless of quantity.
func (c *CartController) Remove(w http.ResponseWriter, r *http.Request) {
	var body cartItemRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	crt, ok := c.cartFor(w, r)
	if !ok {
		return
	}
	crt.Remove(body.ProductID)
	metrics.CartOps.WithLabelValues("remove").Inc()
	c.render(w, crt)
}

// Clear empties the cart.
func (c *CartController) Clear(w http.ResponseWriter, r *http.Request) {
	crt, ok := c.cartFor(w, r)
	if !ok {
		return
	}
	crt.Clear()
	metrics.CartOps.WithLabelValues("clear").Inc()
	c.render(w, crt)
}
