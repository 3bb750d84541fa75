package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

var (
	userSession = auth.Session{
		PrincipalID: "u1", Email: "jo@example.com", Role: auth.RoleUser,
		Profile:       auth.Profile{Name: "Jo", Phone: "123456", Address: "1 Main St", City: "Lille"},
		Authenticated: true,
	}
	adminSession = auth.Session{
		PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true,
	}
	validShipping = ShippingInfo{Name: "Jo", Phone: "123456", Address: "1 Main St", City: "Lille"}
)

func newTestController(t *testing.T) (*Controller, store.Store) {
	t.Helper()
	event.Flush()
	t.Cleanup(event.Flush)
	mem := store.NewMemory()
	return NewController(mem, nil), mem
}

func filledCart() *cart.Cart {
	c := cart.New()
	c.Add(cart.Product{ID: "p1", Name: "Linen Shirt", Price: 49.90, ImageURL: "img1"})
	c.Add(cart.Product{ID: "p1", Name: "Linen Shirt", Price: 49.90, ImageURL: "img1"})
	c.Add(cart.Product{ID: "p2", Name: "Wool Scarf", Price: 34.50, ImageURL: "img2"})
	return c
}

func TestPlaceOrder_Succeeds(t *testing.T) {
	ctrl, _ := newTestController(t)
	crt := filledCart()

	ord, err := ctrl.PlaceOrder(context.Background(), userSession, crt, validShipping)
	require.NoError(t, err)

	require.Equal(t, StatusPending, ord.Status)
	require.Equal(t, "u1", ord.UserID)
	require.Len(t, ord.Items, 2)
	require.InDelta(t, 49.90*2+34.50, ord.Total, 0.001)

	// A durable order means the cart is done.
	require.Equal(t, 0, crt.Len())
}

func TestPlaceOrder_FiresPlacedEvent(t *testing.T) {
	ctrl, _ := newTestController(t)

	got := make(chan Order, 1)
	event.Listen(EventPlaced, func(payload interface{}) {
		if ord, ok := payload.(Order); ok {
			got <- ord
		}
	})

	ord, err := ctrl.PlaceOrder(context.Background(), userSession, filledCart(), validShipping)
	require.NoError(t, err)

	select {
	case fired := <-got:
		require.Equal(t, ord.ID, fired.ID)
	case <-time.After(time.Second):
		t.Fatal("order.placed never fired")
	}
}

func TestPlaceOrder_UnauthenticatedRejected(t *testing.T) {
	ctrl, _ := newTestController(t)
	crt := filledCart()

	_, err := ctrl.PlaceOrder(context.Background(), auth.Anonymous, crt, validShipping)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	require.Equal(t, 2, crt.Len(), "failed checkout must leave the cart alone")
}

func TestPlaceOrder_MissingShippingFieldRejected(t *testing.T) {
	ctrl, _ := newTestController(t)
	crt := filledCart()

	bad := validShipping
	bad.Address = ""

	_, err := ctrl.PlaceOrder(context.Background(), userSession, crt, bad)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "address")
	require.Equal(t, 2, crt.Len())
}

func TestPlaceOrder_EmptyCartRejected(t *testing.T) {
	ctrl, _ := newTestController(t)

	_, err := ctrl.PlaceOrder(context.Background(), userSession, cart.New(), validShipping)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

// Order lines are value copies; catalog edits after checkout change nothing.
func TestPlaceOrder_LinesAreImmutableCopies(t *testing.T) {
	ctrl, st := newTestController(t)
	ctx := context.Background()

	ord, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	priceBefore := ord.Items[0].Price

	// Re-read from the store rather than trusting the returned struct.
	doc, err := st.Collection("orders").Get(ctx, ord.ID)
	require.NoError(t, err)
	stored, err := Decode(doc)
	require.NoError(t, err)
	require.Equal(t, priceBefore, stored.Items[0].Price)
}

func TestConfirmPayment_PendingToPaid(t *testing.T) {
	ctrl, st := newTestController(t)
	ctx := context.Background()

	ord, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	paid, err := ctrl.ConfirmPayment(ctx, adminSession, ord.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	doc, err := st.Collection("orders").Get(ctx, ord.ID)
	require.NoError(t, err)
	stored, err := Decode(doc)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, stored.Status)
}

func TestConfirmPayment_RepeatIsHarmless(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	ord, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	_, err = ctrl.ConfirmPayment(ctx, adminSession, ord.ID)
	require.NoError(t, err)
	again, err := ctrl.ConfirmPayment(ctx, adminSession, ord.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, again.Status)
}

func TestConfirmPayment_NonAdminRolesAllRefused(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	ord, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	for _, sess := range []auth.Session{
		auth.Anonymous,
		userSession,
		{PrincipalID: "x", Role: auth.RoleGuest, Authenticated: true},
	} {
		_, err := ctrl.ConfirmPayment(ctx, sess, ord.ID)
		require.ErrorIs(t, err, auth.ErrUnauthorized, "role %q must be refused", sess.Role)
	}
}

func TestDeleteOrder_AdminOnly(t *testing.T) {
	ctrl, st := newTestController(t)
	ctx := context.Background()

	ord, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	require.ErrorIs(t, ctrl.DeleteOrder(ctx, userSession, ord.ID), auth.ErrUnauthorized)

	require.NoError(t, ctrl.DeleteOrder(ctx, adminSession, ord.ID))
	_, err = st.Collection("orders").Get(ctx, ord.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteOrder_MissingOrderIsNotFound(t *testing.T) {
	ctrl, _ := newTestController(t)

	err := ctrl.DeleteOrder(context.Background(), adminSession, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrdersFor_OnlyOwnNewestFirst(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	first, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	other := userSession
	other.PrincipalID = "u2"
	_, err = ctrl.PlaceOrder(ctx, other, filledCart(), validShipping)
	require.NoError(t, err)

	second, err := ctrl.PlaceOrder(ctx, userSession, filledCart(), validShipping)
	require.NoError(t, err)

	mine, err := ctrl.OrdersFor(ctx, userSession)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, []string{second.ID, first.ID}, []string{mine[0].ID, mine[1].ID})
}

func TestDecode_RejectsUnknownStatus(t *testing.T) {
	doc := store.Doc{ID: "o1", Data: []byte(`{"userId":"u1","status":"Shipped"}`)}
	_, err := Decode(doc)
	require.Error(t, err)
}

func TestStatus_TransitionTable(t *testing.T) {
	require.True(t, StatusPending.CanTransition(StatusPaid))
	require.True(t, StatusPaid.CanTransition(StatusPaid))
	require.False(t, StatusPaid.CanTransition(StatusPending))
	require.False(t, StatusPending.CanTransition(StatusPending))
}
