package inventory

import (
	"context"
	"errors"
	"testing"

	"api_pos/internal/database"
	"api_pos/internal/database/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *database.Store) {
	t.Helper()
	store := dbtest.Open(t, &Category{}, &Product{})
	return NewService(store, zaptest.NewLogger(t)), store
}

func strPtr(s string) *string { return &s }

func TestNewService(t *testing.T) {
	svc, _ := newTestService(t)

	require.NotNil(t, svc)
	assert.NotNil(t, svc.store)
	assert.NotNil(t, svc.logger)
}

func TestCreateProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "Electronics", "Devices")
	require.NoError(t, err)

	p, err := svc.CreateProduct(ctx, ProductInput{
		Name:       "  Smartphone ",
		Price:      decimal.RequireFromString("299.99"),
		Stock:      50,
		CategoryID: &cat.ID,
		SKU:        strPtr("PHONE001"),
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "Smartphone", p.Name)
	assert.True(t, decimal.RequireFromString("299.99").Equal(p.Price), "price %s", p.Price)
	assert.Equal(t, 50, p.Stock)
	assert.Equal(t, "Electronics", p.CategoryName)
	require.NotNil(t, p.SKU)
	assert.Equal(t, "PHONE001", *p.SKU)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	missing := uint(99)

	cases := map[string]struct {
		in   ProductInput
		want error
	}{
		"empty name":       {ProductInput{Name: " ", Price: decimal.NewFromInt(1)}, ErrInvalidProduct},
		"negative price":   {ProductInput{Name: "x", Price: decimal.NewFromInt(-1)}, ErrInvalidProduct},
		"negative stock":   {ProductInput{Name: "x", Price: decimal.NewFromInt(1), Stock: -1}, ErrInvalidProduct},
		"unknown category": {ProductInput{Name: "x", Price: decimal.NewFromInt(1), CategoryID: &missing}, ErrCategoryNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, ProductInput{Name: "A", Price: decimal.NewFromInt(1), SKU: strPtr("SKU1")})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "B", Price: decimal.NewFromInt(1), SKU: strPtr("SKU1")})
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	// Blank SKUs are stored as NULL and never collide.
	_, err = svc.CreateProduct(ctx, ProductInput{Name: "C", Price: decimal.NewFromInt(1), SKU: strPtr(" ")})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, ProductInput{Name: "D", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
}

func TestUpdateProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: "Coffee", Price: decimal.RequireFromString("12.99"), Stock: 200})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, p.ID, ProductInput{Name: "Coffee beans", Price: decimal.RequireFromString("13.49"), Stock: 150})
	require.NoError(t, err)
	assert.Equal(t, "Coffee beans", updated.Name)
	assert.Equal(t, 150, updated.Stock)
	assert.True(t, decimal.RequireFromString("13.49").Equal(updated.Price))

	_, err = svc.UpdateProduct(ctx, 9999, ProductInput{Name: "ghost", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeleteProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: "Jeans", Price: decimal.RequireFromString("49.99"), Stock: 75})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))

	_, err = svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), ErrProductNotFound)
}

func TestListProductsFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	books, err := svc.CreateCategory(ctx, "Books", "")
	require.NoError(t, err)

	for _, in := range []ProductInput{
		{Name: "Programming Book", Price: decimal.RequireFromString("39.99"), Stock: 30, CategoryID: &books.ID, SKU: strPtr("BOOK001")},
		{Name: "Energy Drink", Price: decimal.RequireFromString("2.99"), Stock: 5, SKU: strPtr("ENERGY001")},
		{Name: "Garden Tools", Price: decimal.RequireFromString("79.99"), Stock: 8},
	} {
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Energy Drink", all[0].Name, "ordered by name")

	bySearch, err := svc.ListProducts(ctx, ProductFilter{Search: "energy"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)

	bySKU, err := svc.ListProducts(ctx, ProductFilter{Search: "book0"})
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, "Books", bySKU[0].CategoryName)

	byCategory, err := svc.ListProducts(ctx, ProductFilter{CategoryID: &books.ID})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	lowStock, err := svc.ListProducts(ctx, ProductFilter{LowStockBelow: 10})
	require.NoError(t, err)
	assert.Len(t, lowStock, 2)
}

func TestDeleteCategoryUncategorizesProducts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "Clothing", "Apparel")
	require.NoError(t, err)
	p, err := svc.CreateProduct(ctx, ProductInput{Name: "T-Shirt", Price: decimal.RequireFromString("19.99"), Stock: 100, CategoryID: &cat.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Empty(t, got.CategoryName)
	assert.ErrorIs(t, svc.DeleteCategory(ctx, cat.ID), ErrCategoryNotFound)
}

func TestUpdateCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "Food", "")
	require.NoError(t, err)

	updated, err := svc.UpdateCategory(ctx, cat.ID, "Food & Beverages", "Food items and drinks")
	require.NoError(t, err)
	assert.Equal(t, "Food & Beverages", updated.Name)

	_, err = svc.UpdateCategory(ctx, cat.ID, "", "")
	assert.ErrorIs(t, err, ErrInvalidCategory)
	_, err = svc.UpdateCategory(ctx, 999, "x", "")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDecrementStockGuardsAvailability(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: "Laptop", Price: decimal.RequireFromString("899.99"), Stock: 3})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).DecrementStock(ctx, p.ID, 2)
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).DecrementStock(ctx, p.ID, 2)
	})
	assert.True(t, errors.Is(err, ErrStockConflict))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}
