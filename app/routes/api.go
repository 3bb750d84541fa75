package routes

import (
	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

// Controllers bundles everything the API surface is built from.
type Controllers struct {
	Auth    *controllers.AuthController
	Catalog *controllers.CatalogController
	Cart    *controllers.CartController
	Order   *controllers.OrderController
}

// RegisterAPI mounts the storefront API. Three privilege tiers:
// public (catalog, cart, auth entry points), authenticated (checkout,
// orders, profile), and admin (order lifecycle, catalog mutations).
func RegisterAPI(r *router.Router, c Controllers) {
	api := r.Group("/api")

	// Auth entry points. Guest-gated so a signed-in client cannot
	// accidentally re-register.
	api.Post("/register", "auth.register", c.Auth.Register, rbac.Guest)
	api.Post("/login", "auth.login", c.Auth.Login, rbac.Guest)
	api.Post("/logout", "auth.logout", c.Auth.Logout)
	api.Post("/forgot-password", "auth.forgot", c.Auth.ForgotPassword)
	api.Post("/reset-password", "auth.reset", c.Auth.ResetPassword)
	api.Get("/me", "auth.me", c.Auth.Me)

	// Catalog reads are public; anonymous visitors browse and subscribe
	// like anyone else.
	api.Get("/products", "catalog.products", c.Catalog.ListProducts)
	api.Get("/products/stream", "catalog.products.stream", c.Catalog.StreamProducts)
	api.Get("/products/{id}", "catalog.products.show", c.Catalog.ShowProduct)
	api.Get("/categories", "catalog.categories", c.Catalog.ListCategories)

	// Cart is public too: anonymous carts are keyed by the client cart
	// token, authenticated carts by principal ID.
	api.Get("/cart", "cart.show", c.Cart.Show)
	api.Post("/cart/add", "cart.add", c.Cart.Add)
	api.Post("/cart/decrease", "cart.decrease", c.Cart.Decrease)
	api.Post("/cart/remove", "cart.remove", c.Cart.Remove)
	api.Post("/cart/clear", "cart.clear", c.Cart.Clear)

	// Authenticated tier.
	authed := api.Group("", middleware.RequireAuth)
	authed.Post("/checkout", "orders.checkout", c.Order.Checkout)
	authed.Get("/orders/mine", "orders.mine", c.Order.MyOrders)
	authed.Put("/profile", "auth.profile.update", c.Auth.UpdateProfile)

	// Admin tier. The rbac gate runs on every request; a role revoked
	// mid-session locks the principal out on their next call.
	admin := api.Group("/admin", middleware.RequireAuth, rbac.HasRole(auth.RoleAdmin.String()))
	admin.Get("/orders", "admin.orders.list", c.Order.AllOrders)
	admin.Get("/orders/feed", "admin.orders.feed", c.Order.Feed)
	admin.Post("/orders/{id}/confirm", "admin.orders.confirm", c.Order.Confirm)
	admin.Delete("/orders/{id}", "admin.orders.delete", c.Order.Delete)

	admin.Post("/products", "admin.products.create", c.Catalog.CreateProduct)
	admin.Put("/products/{id}", "admin.products.update", c.Catalog.UpdateProduct)
	admin.Delete("/products/{id}", "admin.products.delete", c.Catalog.DeleteProduct)

	admin.Post("/categories", "admin.categories.create", c.Catalog.CreateCategory)
	admin.Delete("/categories/{id}", "admin.categories.delete", c.Catalog.DeleteCategory)
}
