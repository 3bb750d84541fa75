package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

func sampleProducts() []Product {
	return []Product{
		{ID: "1", Name: "Linen Shirt", Description: "Relaxed fit", Category: "Clothing", Price: 49.90},
		{ID: "2", Name: "Wool Scarf", Description: "Hand woven merino", Category: "Accessories", Price: 34.50},
		{ID: "3", Name: "Ceramic Vase", Description: "Glazed stoneware", Category: "", Price: 27},
		{ID: "4", Name: "Silk Shirt", Description: "Evening wear", Category: "Clothing", Price: 89},
	}
}

func TestFilterProducts_SearchMatchesNameAndDescription(t *testing.T) {
	got := FilterProducts(sampleProducts(), "shirt", "")
	require.Len(t, got, 2)

	got = FilterProducts(sampleProducts(), "MERINO", "")
	require.Len(t, got, 1)
	require.Equal(t, "Wool Scarf", got[0].Name)
}

func TestFilterProducts_CategoryNarrows(t *testing.T) {
	got := FilterProducts(sampleProducts(), "", "Clothing")
	require.Len(t, got, 2)

	got = FilterProducts(sampleProducts(), "silk", "Clothing")
	require.Len(t, got, 1)
}

func TestFilterProducts_DoesNotMutateInput(t *testing.T) {
	in := sampleProducts()
	FilterProducts(in, "shirt", "")
	require.Len(t, in, 4)
}

func TestGroupByCategory_EmptyFallsBackToUncategorized(t *testing.T) {
	groups := GroupByCategory(sampleProducts())

	require.Len(t, groups["Clothing"], 2)
	require.Len(t, groups[Uncategorized], 1)
	require.Equal(t, "Ceramic Vase", groups[Uncategorized][0].Name)
}

func TestCreateProduct_AdminGateAndValidation(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	ctx := context.Background()
	admin := auth.Session{PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true}

	valid := ProductInput{
		Name: "Linen Shirt", Description: "Relaxed fit", Price: 49.90,
		Category: "Clothing", ImageURL: "https://img/shirt.jpg",
	}

	// Non-admin roles are refused before any validation runs.
	_, _, err := svc.CreateProduct(ctx, auth.Anonymous, valid)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	user := auth.Session{PrincipalID: "u1", Role: auth.RoleUser, Authenticated: true}
	_, _, err = svc.CreateProduct(ctx, user, valid)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	// Partial products never reach the store.
	bad := valid
	bad.ImageURL = ""
	_, errs, err := svc.CreateProduct(ctx, admin, bad)
	require.NoError(t, err)
	require.Contains(t, errs, "imageUrl")

	p, errs, err := svc.CreateProduct(ctx, admin, valid)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.NotEmpty(t, p.ID)

	doc, err := svc.products.Get(ctx, p.ID)
	require.NoError(t, err)
	stored, err := DecodeProduct(doc)
	require.NoError(t, err)
	require.Equal(t, valid.Name, stored.Name)
}

func TestCreateProduct_ZeroPriceIsLegal(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	ctx := context.Background()
	admin := auth.Session{PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true}

	// Giveaways exist. A zero price must pass validation and persist as 0.
	free := ProductInput{
		Name: "Free Sample", Description: "While stocks last", Price: 0,
		Category: "Clothing", ImageURL: "https://img/sample.jpg",
	}
	p, errs, err := svc.CreateProduct(ctx, admin, free)
	require.NoError(t, err)
	require.Empty(t, errs)

	doc, err := svc.products.Get(ctx, p.ID)
	require.NoError(t, err)
	stored, err := DecodeProduct(doc)
	require.NoError(t, err)
	require.Equal(t, 0.0, stored.Price)

	// Negative prices are still rejected.
	free.Price = -1
	_, errs, err = svc.CreateProduct(ctx, admin, free)
	require.NoError(t, err)
	require.Contains(t, errs, "price")
}

func TestUpdateProduct_KeepsCreatedAt(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	ctx := context.Background()
	admin := auth.Session{PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true}

	in := ProductInput{
		Name: "Linen Shirt", Description: "Relaxed fit", Price: 49.90,
		Category: "Clothing", ImageURL: "https://img/shirt.jpg",
	}
	created, _, err := svc.CreateProduct(ctx, admin, in)
	require.NoError(t, err)

	in.Price = 39.90
	updated, errs, err := svc.UpdateProduct(ctx, admin, created.ID, in)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Equal(t, 39.90, updated.Price)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestDeleteProduct_MissingIsNotFound(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	admin := auth.Session{PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true}

	err := svc.DeleteProduct(context.Background(), admin, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCategoryLifecycle(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	ctx := context.Background()
	admin := auth.Session{PrincipalID: "a1", Role: auth.RoleAdmin, Authenticated: true}

	cat, errs, err := svc.CreateCategory(ctx, admin, CategoryInput{Name: "Clothing"})
	require.NoError(t, err)
	require.Empty(t, errs)

	require.NoError(t, svc.DeleteCategory(ctx, admin, cat.ID))
	_, err = svc.categories.Get(ctx, cat.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
