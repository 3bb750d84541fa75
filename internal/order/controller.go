package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/internal/realtime"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/store"
	"github.com/shashiranjanraj/storefront/pkg/validate"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// Events fired by the controller. Listeners (notifications, audit log)
// receive the full Order as payload.
const (
	EventPlaced  = "order.placed"
	EventPaid    = "order.paid"
	EventDeleted = "order.deleted"
)

// ValidationError carries per-field messages for a rejected checkout.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: invalid input (%d field(s))", len(e.Fields))
}

// PersistenceError wraps a store failure so callers can distinguish
// "you sent garbage" from "the database is down".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ShippingInfo is the checkout form. All four fields are mandatory; the
// name and phone default from the profile but the client may override them.
type ShippingInfo struct {
	Name    string `json:"name"    validate:"required,min=2,max=100"`
	Phone   string `json:"phone"   validate:"required,min=6,max=30"`
	Address string `json:"address" validate:"required,min=5,max=200"`
	City    string `json:"city"    validate:"required,min=2,max=100"`
}

// Controller owns the orders collection and its live admin view.
type Controller struct {
	orders store.Collection

	// Feed mirrors the orders collection, newest first. Only the admin
	// surface subscribes to it; customers read their own orders on demand.
	Feed *realtime.Syncer[Order]
}

// NewController builds a Controller over the store's "orders" collection.
// pool may be nil; when set, snapshot fan-out runs on it.
func NewController(st store.Store, pool *workerpool.Pool) *Controller {
	col := st.Collection("orders")
	return &Controller{
		orders: col,
		Feed: realtime.New(col, Decode,
			realtime.WithSort[Order](SortNewestFirst),
			realtime.WithPool[Order](pool),
		),
	}
}

// PlaceOrder converts the session's cart into a persisted order.
//
// The cart is read but never mutated until the insert has succeeded, so a
// failed checkout leaves the cart exactly as it was. Order lines are value
// copies: once placed, product edits and deletions do not touch them.
func (c *Controller) PlaceOrder(ctx context.Context, sess auth.Session, crt *cart.Cart, ship ShippingInfo) (Order, error) {
	if !sess.Authenticated {
		return Order{}, auth.ErrUnauthenticated
	}

	if errs := validate.Struct(ship); validate.HasErrors(errs) {
		return Order{}, &ValidationError{Fields: errs}
	}
	if crt.Len() == 0 {
		return Order{}, &ValidationError{Fields: map[string]string{
			"cart": "The cart must not be empty.",
		}}
	}

	items := crt.Items()
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			ID:       it.ProductID,
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	ord := Order{
		ID:              uuid.NewString(),
		UserID:          sess.PrincipalID,
		UserName:        ship.Name,
		UserPhone:       ship.Phone,
		ShippingAddress: ship.Address,
		ShippingCity:    ship.City,
		Items:           lines,
		Total:           crt.Subtotal(),
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	doc, err := encode(ord)
	if err != nil {
		return Order{}, &PersistenceError{Op: "encode order", Err: err}
	}
	if err := c.orders.Insert(ctx, doc); err != nil {
		return Order{}, &PersistenceError{Op: "insert order", Err: err}
	}

	// Only now, with the order durable, is the cart emptied.
	crt.Clear()

	metrics.OrdersPlaced.Inc()
	logger.Info("order placed", "order_id", ord.ID, "user_id", ord.UserID, "total", ord.Total)
	event.Fire(EventPlaced, ord)
	return ord, nil
}

// ConfirmPayment moves an order from Pending to Paid. Admin only.
// Confirming an already-paid order is a harmless no-op overwrite.
func (c *Controller) ConfirmPayment(ctx context.Context, sess auth.Session, orderID string) (Order, error) {
	ord, err := c.adminLoad(ctx, sess, orderID)
	if err != nil {
		return Order{}, err
	}

	if !ord.Status.CanTransition(StatusPaid) {
		return Order{}, fmt.Errorf("order: cannot move %s from %s to %s", ord.ID, ord.Status, StatusPaid)
	}
	already := ord.Status == StatusPaid
	ord.Status = StatusPaid

	doc, err := encode(ord)
	if err != nil {
		return Order{}, &PersistenceError{Op: "encode order", Err: err}
	}
	if err := c.orders.Update(ctx, doc); err != nil {
		return Order{}, &PersistenceError{Op: "update order", Err: err}
	}

	if !already {
		metrics.OrdersPaid.Inc()
		logger.Info("order paid", "order_id", ord.ID)
		event.Fire(EventPaid, ord)
	}
	return ord, nil
}

// DeleteOrder removes an order entirely. Admin only. Deleting a missing
// order reports store.ErrNotFound rather than pretending it succeeded.
func (c *Controller) DeleteOrder(ctx context.Context, sess auth.Session, orderID string) error {
	ord, err := c.adminLoad(ctx, sess, orderID)
	if err != nil {
		return err
	}

	if err := c.orders.Delete(ctx, ord.ID); err != nil {
		return &PersistenceError{Op: "delete order", Err: err}
	}

	logger.Info("order deleted", "order_id", ord.ID)
	event.Fire(EventDeleted, ord)
	return nil
}

// OrdersFor lists a customer's own orders, newest first. This is an
// on-demand read, not a live feed: the confirmation page fetches it once.
func (c *Controller) OrdersFor(ctx context.Context, sess auth.Session) ([]Order, error) {
	if !sess.Authenticated {
		return nil, auth.ErrUnauthenticated
	}

	docs, err := c.orders.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}

	var out []Order
	for _, doc := range docs {
		ord, err := Decode(doc)
		if err != nil {
			logger.Warn("skipping undecodable order", "doc_id", doc.ID, "error", err)
			continue
		}
		if ord.UserID == sess.PrincipalID {
			out = append(out, ord)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// adminLoad gates on the admin role, then fetches the order. The role check
// runs before the read so non-admins learn nothing, not even existence.
func (c *Controller) adminLoad(ctx context.Context, sess auth.Session, orderID string) (Order, error) {
	if !sess.Role.IsAdmin() {
		return Order{}, auth.ErrUnauthorized
	}

	doc, err := c.orders.Get(ctx, orderID)
	if err != nil {
		if err == store.ErrNotFound {
			return Order{}, store.ErrNotFound
		}
		return Order{}, &PersistenceError{Op: "get order", Err: err}
	}
	return Decode(doc)
}
