package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"api_pos/internal/auth"
	"api_pos/internal/database"
	"api_pos/internal/database/dbtest"
	"api_pos/internal/inventory"
	"api_pos/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const cashierID = uint(7)

// backend is a Storage plus the hooks the tests need to inspect it.
type backend struct {
	storage Storage
	stock   func(t *testing.T, id uint) int
	sales   func(t *testing.T) int
	reprice func(t *testing.T, id uint, price string)
}

func newLocalBackend(t *testing.T, products ...inventory.Product) backend {
	local := NewLocalStorage()
	for _, p := range products {
		local.PutProduct(p)
	}
	return backend{
		storage: local,
		stock: func(t *testing.T, id uint) int {
			p, ok := local.Product(id)
			require.True(t, ok)
			return p.Stock
		},
		sales: func(t *testing.T) int { return local.Count() },
		reprice: func(t *testing.T, id uint, price string) {
			p, _ := local.Product(id)
			p.Price = decimal.RequireFromString(price)
			local.PutProduct(p)
		},
	}
}

func newDBBackend(t *testing.T, products ...inventory.Product) backend {
	store := dbtest.Open(t, &auth.User{}, &inventory.Category{}, &inventory.Product{}, &Sale{}, &LineItem{})
	ctx := context.Background()
	for i := range products {
		p := products[i]
		require.NoError(t, store.DB(ctx).Omit("Category").Create(&p).Error)
	}
	return backend{
		storage: NewDBStorage(store),
		stock: func(t *testing.T, id uint) int {
			p, err := inventory.NewRepository(store.DB(ctx)).Get(ctx, id)
			require.NoError(t, err)
			return p.Stock
		},
		sales: func(t *testing.T) int {
			var n, items int64
			require.NoError(t, store.DB(ctx).Model(&Sale{}).Count(&n).Error)
			require.NoError(t, store.DB(ctx).Model(&LineItem{}).Count(&items).Error)
			if n == 0 {
				require.Zero(t, items, "line items without a sale")
			}
			return int(n)
		},
		reprice: func(t *testing.T, id uint, price string) {
			require.NoError(t, store.DB(ctx).Model(&inventory.Product{}).Where("id = ?", id).
				Update("price", decimal.RequireFromString(price)).Error)
		},
	}
}

// forEachBackend runs fn against the in-memory and the SQLite storage.
func forEachBackend(t *testing.T, products []inventory.Product, fn func(t *testing.T, b backend)) {
	t.Run("local", func(t *testing.T) { fn(t, newLocalBackend(t, products...)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newDBBackend(t, products...)) })
}

func product(id uint, name, price string, stock int) inventory.Product {
	return inventory.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func catalog() []inventory.Product {
	return []inventory.Product{
		product(1, "Smartphone", "299.99", 50),
		product(2, "Coffee", "12.99", 200),
		product(3, "Laptop", "899.99", 5),
	}
}

func newTestService(t *testing.T, storage Storage, opts ...Option) *Service {
	opts = append([]Option{WithRetry(3, 0)}, opts...)
	return NewService(storage, zaptest.NewLogger(t), opts...)
}

// TestNewService verifies service initialization.
func TestNewService(t *testing.T) {
	svc := NewService(NewLocalStorage(), zaptest.NewLogger(t))

	if svc == nil {
		t.Fatal("NewService returned nil")
	}
	if svc.storage == nil {
		t.Error("Service storage was not initialized")
	}
	if svc.logger == nil {
		t.Error("Service logger was not initialized")
	}
	if svc.maxAttempts != defaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", defaultMaxAttempts, svc.maxAttempts)
	}
}

func TestPostSale_Example(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		sale, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}},
		})
		require.NoError(t, err)

		assert.NotZero(t, sale.ID)
		assert.Equal(t, cashierID, sale.UserID)
		assert.Equal(t, PaymentCash, sale.PaymentMethod)
		assert.Equal(t, "312.98", sale.TotalAmount.StringFixed(2))
		require.Len(t, sale.Items, 2)
		assert.Equal(t, "299.99", sale.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "12.99", sale.Items[1].TotalPrice.StringFixed(2))

		assert.Equal(t, 49, b.stock(t, 1))
		assert.Equal(t, 199, b.stock(t, 2))
		assert.Equal(t, 1, b.sales(t))
	})
}

func TestPostSale_TotalsAndDecrements(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		sale, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID:        cashierID,
			PaymentMethod: " Card ",
			Items: []LineRequest{
				{ProductID: 3, Quantity: 5},
				{ProductID: 2, Quantity: 10},
			},
		})
		require.NoError(t, err)

		want := decimal.RequireFromString("899.99").Mul(decimal.NewFromInt(5)).
			Add(decimal.RequireFromString("12.99").Mul(decimal.NewFromInt(10)))
		assert.True(t, want.Equal(sale.TotalAmount), "want %s got %s", want, sale.TotalAmount)
		assert.Equal(t, PaymentCard, sale.PaymentMethod)
		assert.Equal(t, 0, b.stock(t, 3), "stock may reach exactly zero")
		assert.Equal(t, 190, b.stock(t, 2))
		assert.Equal(t, 50, b.stock(t, 1))
	})
}

func TestPostSale_InsufficientStockIsAtomic(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items: []LineRequest{
				{ProductID: 1, Quantity: 2},
				{ProductID: 3, Quantity: 6},
			},
		})
		require.ErrorIs(t, err, ErrInsufficientStock)

		var lineErr *LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, uint(3), lineErr.ProductID)
		assert.Equal(t, 6, lineErr.Requested)
		assert.Equal(t, 5, lineErr.Available)

		assert.Equal(t, 50, b.stock(t, 1))
		assert.Equal(t, 5, b.stock(t, 3))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_UnknownProduct(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 1}, {ProductID: 404, Quantity: 1}},
		})
		require.ErrorIs(t, err, ErrUnknownProduct)

		var lineErr *LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, uint(404), lineErr.ProductID)

		assert.Equal(t, 50, b.stock(t, 1))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_FailureIsIdempotent(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)
		in := PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 3, Quantity: 9}}}

		_, first := svc.PostSale(context.Background(), in)
		_, second := svc.PostSale(context.Background(), in)

		require.ErrorIs(t, first, ErrInsufficientStock)
		require.ErrorIs(t, second, ErrInsufficientStock)
		assert.Equal(t, first.Error(), second.Error())
		assert.Equal(t, 5, b.stock(t, 3))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_DuplicateProductIDsShareStock(t *testing.T) {
	products := []inventory.Product{product(1, "Energy Drink", "2.99", 5)}

	forEachBackend(t, products, func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 3}, {ProductID: 1, Quantity: 3}},
		})
		require.ErrorIs(t, err, ErrInsufficientStock)

		var lineErr *LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, 6, lineErr.Requested, "cumulative quantity is reported")
		assert.Equal(t, 5, lineErr.Available)
		assert.Equal(t, 5, b.stock(t, 1))

		sale, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 3}},
		})
		require.NoError(t, err)
		assert.Len(t, sale.Items, 2, "each occurrence keeps its own line")
		assert.Equal(t, "14.95", sale.TotalAmount.StringFixed(2))
		assert.Equal(t, 0, b.stock(t, 1))
	})
}

func TestPostSale_HugeRepeatedQuantityIsInsufficientStock(t *testing.T) {
	products := []inventory.Product{product(3, "Laptop", "899.99", 5)}

	forEachBackend(t, products, func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 3, Quantity: 1}, {ProductID: 3, Quantity: math.MaxInt}},
		})
		require.ErrorIs(t, err, ErrInsufficientStock)
		assert.NotErrorIs(t, err, ErrStorageFailure)

		var lineErr *LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, uint(3), lineErr.ProductID)
		assert.Equal(t, math.MaxInt, lineErr.Requested, "requested saturates instead of wrapping")
		assert.Equal(t, 5, lineErr.Available)

		assert.Equal(t, 5, b.stock(t, 3))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_RequestValidation(t *testing.T) {
	cases := map[string]struct {
		in   PostSaleInput
		want error
	}{
		"empty order":      {PostSaleInput{UserID: cashierID}, ErrEmptyOrder},
		"zero quantity":    {PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 0}}}, ErrInvalidQuantity},
		"negative qty":     {PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 1, Quantity: -3}}}, ErrInvalidQuantity},
		"payment method":   {PostSaleInput{UserID: cashierID, PaymentMethod: "bitcoin", Items: []LineRequest{{ProductID: 1, Quantity: 1}}}, ErrInvalidPaymentMethod},
		"missing cashier":  {PostSaleInput{Items: []LineRequest{{ProductID: 1, Quantity: 1}}}, ErrInvalidUser},
		"unknown product":  {PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 404, Quantity: 1}}}, ErrUnknownProduct},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			b := newLocalBackend(t, catalog()...)
			svc := newTestService(t, b.storage)

			sale, err := svc.PostSale(context.Background(), tc.in)
			assert.Nil(t, sale)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 50, b.stock(t, 1))
			assert.Zero(t, b.sales(t))
		})
	}

	t.Run("invalid quantity names the product", func(t *testing.T) {
		svc := newTestService(t, NewLocalStorage())
		_, err := svc.PostSale(context.Background(), PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 9, Quantity: 0}}})

		var lineErr *LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, uint(9), lineErr.ProductID)
	})
}

func TestPostSale_ConcurrentFullStock(t *testing.T) {
	products := []inventory.Product{product(1, "Garden Tools", "79.99", 20)}

	forEachBackend(t, products, func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.PostSale(context.Background(), PostSaleInput{
					UserID: cashierID,
					Items:  []LineRequest{{ProductID: 1, Quantity: 20}},
				})
			}(i)
		}
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrTransactionConflict), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 0, b.stock(t, 1))
		assert.Equal(t, 1, b.sales(t))
	})
}

func TestPostSale_ManyConcurrentPostingsNeverOversell(t *testing.T) {
	products := []inventory.Product{product(1, "T-Shirt", "19.99", 10)}

	forEachBackend(t, products, func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.PostSale(context.Background(), PostSaleInput{
					UserID: cashierID,
					Items:  []LineRequest{{ProductID: 1, Quantity: 1}},
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 0, b.stock(t, 1))
		assert.Equal(t, 10, b.sales(t))
	})
}

func TestPostSale_CommitFailureRollsBack(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		faulty := &faultyStorage{Storage: b.storage, failDecrementOf: 2}
		svc := newTestService(t, faulty)

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 4}, {ProductID: 2, Quantity: 4}},
		})
		require.ErrorIs(t, err, ErrStorageFailure)
		assert.Equal(t, 1, faulty.calls, "storage failures are not retried")

		assert.Equal(t, 50, b.stock(t, 1), "first decrement must be rolled back")
		assert.Equal(t, 200, b.stock(t, 2))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_RetriesConflicts(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		m := metrics.New()
		faulty := &faultyStorage{Storage: b.storage, conflicts: 2}
		svc := newTestService(t, faulty, WithMetrics(m))

		sale, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.NotZero(t, sale.ID)
		assert.Equal(t, 3, faulty.calls)
		assert.Equal(t, 49, b.stock(t, 1))
	})
}

func TestPostSale_GivesUpAfterMaxAttempts(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		faulty := &faultyStorage{Storage: b.storage, conflicts: 10}
		svc := newTestService(t, faulty, WithRetry(2, time.Millisecond))

		_, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 1}},
		})
		require.ErrorIs(t, err, ErrTransactionConflict)
		assert.Equal(t, 2, faulty.calls)
		assert.Equal(t, 50, b.stock(t, 1))
		assert.Zero(t, b.sales(t))
	})
}

func TestPostSale_StockConflictAtCommitIsRetried(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		faulty := &faultyStorage{Storage: b.storage, stealStockOnce: 1}
		svc := newTestService(t, faulty)

		sale, err := svc.PostSale(context.Background(), PostSaleInput{
			UserID: cashierID,
			Items:  []LineRequest{{ProductID: 1, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.NotZero(t, sale.ID)
		assert.Equal(t, 2, faulty.calls)
		assert.Equal(t, 49, b.stock(t, 1))
	})
}

func TestPostSale_CanceledContext(t *testing.T) {
	b := newLocalBackend(t, catalog()...)
	svc := newTestService(t, b.storage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PostSale(ctx, PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 1, Quantity: 1}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 50, b.stock(t, 1))
}

func TestGetSale_SnapshotPrice(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)
		ctx := context.Background()

		posted, err := svc.PostSale(ctx, PostSaleInput{UserID: cashierID, Items: []LineRequest{{ProductID: 2, Quantity: 3}}})
		require.NoError(t, err)

		b.reprice(t, 2, "15.49")

		got, err := svc.GetSale(ctx, posted.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "12.99", got.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "38.97", got.Items[0].TotalPrice.StringFixed(2))
		assert.Equal(t, "Coffee", got.Items[0].ProductName)
		assert.Equal(t, "38.97", got.TotalAmount.StringFixed(2))

		_, err = svc.GetSale(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSearchSales(t *testing.T) {
	forEachBackend(t, catalog(), func(t *testing.T, b backend) {
		svc := newTestService(t, b.storage)
		ctx := context.Background()

		post := func(user uint, method string, qty int) {
			_, err := svc.PostSale(ctx, PostSaleInput{UserID: user, PaymentMethod: method, Items: []LineRequest{{ProductID: 2, Quantity: qty}}})
			require.NoError(t, err)
		}
		post(cashierID, PaymentCash, 1)
		post(cashierID, PaymentCard, 2)
		post(99, PaymentCash, 3)

		all, meta, err := svc.SearchSales(ctx, SaleFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 3, meta.Quantity)
		assert.Equal(t, "77.94", meta.TotalAmount.StringFixed(2))
		assert.Equal(t, 2, meta.ByPaymentMethod[PaymentCash].Count)
		assert.Equal(t, "51.96", meta.ByPaymentMethod[PaymentCash].Amount.StringFixed(2))
		assert.GreaterOrEqual(t, all[0].ID, all[1].ID, "newest first")

		mine, meta, err := svc.SearchSales(ctx, SaleFilter{UserID: cashierID, PaymentMethod: "CARD"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, 1, meta.Quantity)
		assert.Equal(t, "25.98", meta.TotalAmount.StringFixed(2))

		future, _, err := svc.SearchSales(ctx, SaleFilter{From: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)

		_, _, err = svc.SearchSales(ctx, SaleFilter{PaymentMethod: "barter"})
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

		_, _, err = svc.SearchSales(ctx, SaleFilter{From: time.Now(), To: time.Now().Add(-time.Hour)})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestNormalizePaymentMethod(t *testing.T) {
	got, err := NormalizePaymentMethod("")
	require.NoError(t, err)
	assert.Equal(t, PaymentCash, got)

	got, err = NormalizePaymentMethod(" Mobile")
	require.NoError(t, err)
	assert.Equal(t, PaymentMobile, got)

	_, err = NormalizePaymentMethod("iou")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

// faultyStorage injects failures around a real Storage.
type faultyStorage struct {
	Storage
	conflicts       int
	failDecrementOf uint
	stealStockOnce  uint
	calls           int
}

func (f *faultyStorage) InTx(ctx context.Context, fn func(tx Tx) error) error {
	f.calls++
	if f.calls <= f.conflicts {
		return fmt.Errorf("begin transaction: %w", database.ErrConflict)
	}
	steal := uint(0)
	if f.calls == 1 {
		steal = f.stealStockOnce
	}
	return f.Storage.InTx(ctx, func(tx Tx) error {
		return fn(faultyTx{Tx: tx, failDecrementOf: f.failDecrementOf, steal: steal})
	})
}

type faultyTx struct {
	Tx
	failDecrementOf uint
	steal           uint
}

func (t faultyTx) Products() ProductStore {
	return faultyProducts{ProductStore: t.Tx.Products(), failDecrementOf: t.failDecrementOf, steal: t.steal}
}

type faultyProducts struct {
	ProductStore
	failDecrementOf uint
	steal           uint
}

func (p faultyProducts) DecrementStock(ctx context.Context, id uint, amount int) error {
	if id == p.failDecrementOf {
		return errors.New("disk I/O error")
	}
	if id == p.steal {
		// Behaves as if another writer emptied the row after validation.
		return fmt.Errorf("decrement product %d: %w", id, inventory.ErrStockConflict)
	}
	return p.ProductStore.DecrementStock(ctx, id, amount)
}
