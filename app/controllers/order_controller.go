package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/internal/order"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/store"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

type OrderController struct {
	ctrl    *order.Controller
	carts   *cart.Manager
	session func(*http.Request) auth.Session

	// hub fans admin order snapshots out to connected dashboards.
	hub *ws.Hub
}

func NewOrderController(ctrl *order.Controller, carts *cart.Manager, session func(*http.Request) auth.Session) *OrderController {
	return &OrderController{
		ctrl:    ctrl,
		carts:   carts,
		session: session,
		hub:     ws.NewHub(),
	}
}

// Run pumps order snapshots into the WebSocket hub until ctx is cancelled.
// The hub subscription is released on every exit path.
func (c *OrderController) Run(ctx context.Context) {
	go c.hub.Run()

	sub := c.ctrl.Feed.Subscribe(ctx)
	defer sub.Unsubscribe()

	for {
		select {
		case snap, open := <-sub.Snapshots():
			if !open {
				if err := sub.Err(); err != nil {
					logger.Error("admin order feed lost", "error", err)
				}
				return
			}
			payload, err := json.Marshal(map[string]any{
				"event":  "orders",
				"seq":    snap.Seq,
				"orders": snap.Items,
			})
			if err != nil {
				continue
			}
			c.hub.Broadcast <- payload
		case <-ctx.Done():
			return
		}
	}
}

type checkoutRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Checkout turns the session's cart into an order. Shipping fields default
// from the profile; the request body may override any of them.
func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := c.session(r)
	if !sess.Authenticated {
		response.Unauthorized(w)
		return
	}

	var body checkoutRequest
	if _, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ship := order.ShippingInfo{
		Name:    firstNonEmpty(body.Name, sess.Profile.Name),
		Phone:   firstNonEmpty(body.Phone, sess.Profile.Phone),
		Address: firstNonEmpty(body.Address, sess.Profile.Address),
		City:    firstNonEmpty(body.City, sess.Profile.City),
	}

	crt := c.carts.Get(sess.CartKey(""))
	ord, err := c.ctrl.PlaceOrder(r.Context(), sess, crt, ship)
	if err != nil {
		c.writeOrderError(w, r, err)
		return
	}
	response.Created(w, ord)
}

// MyOrders lists the customer's own orders, newest first.
func (c *OrderController) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := c.ctrl.OrdersFor(r.Context(), c.session(r))
	if err != nil {
		c.writeOrderError(w, r, err)
		return
	}
	response.Success(w, orders)
}

// ─── Admin surface ────────────────────────────────────────────────────────────

// AllOrders renders the current order snapshot, newest first. Dashboards
// that do not hold a WebSocket open poll this instead.
func (c *OrderController) AllOrders(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := c.ctrl.Feed.Current()
	if err != nil {
		response.BadGateway(w, "Order feed unavailable")
		return
	}
	if !ok {
		response.Error(w, http.StatusServiceUnavailable, "Order mirror is loading, retry shortly")
		return
	}
	response.Success(w, snap.Items)
}

// Feed upgrades the connection to a WebSocket that receives every order
// snapshot. The rbac gate in front of this route has already verified the
// admin role.
func (c *OrderController) Feed(w http.ResponseWriter, r *http.Request) {
	ws.Upgrade(w, r, c.hub)
}

// Confirm marks an order as paid.
func (c *OrderController) Confirm(w http.ResponseWriter, r *http.Request) {
	ord, err := c.ctrl.ConfirmPayment(r.Context(), c.session(r), chi.URLParam(r, "id"))
	if err != nil {
		c.writeOrderError(w, r, err)
		return
	}
	response.Success(w, ord)
}

// Delete removes an order.
func (c *OrderController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.ctrl.DeleteOrder(r.Context(), c.session(r), chi.URLParam(r, "id")); err != nil {
		c.writeOrderError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

func (c *OrderController) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *order.ValidationError
	var pErr *order.PersistenceError

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		response.Unauthorized(w)
	case errors.Is(err, auth.ErrUnauthorized):
		response.Forbidden(w)
	case errors.Is(err, store.ErrNotFound):
		response.NotFound(w)
	case errors.As(err, &vErr):
		response.ValidationError(w, vErr.Fields)
	case errors.As(err, &pErr):
		logger.WithCtx(r.Context()).Error("order persistence failed", "op", pErr.Op, "error", pErr.Err)
		response.BadGateway(w, "Order store unavailable")
	default:
		logger.WithCtx(r.Context()).Error("order operation failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
