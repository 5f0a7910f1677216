package sales

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"api_pos/internal/inventory"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ProductStore is the part of the inventory a posting depends on.
type ProductStore interface {
	Get(ctx context.Context, id uint) (*inventory.Product, error)
	DecrementStock(ctx context.Context, id uint, amount int) error
}

// SaleWriter inserts a sale together with its line items.
type SaleWriter interface {
	Create(ctx context.Context, sale *Sale) error
}

// Tx exposes the stores bound to one write transaction.
type Tx interface {
	Products() ProductStore
	Sales() SaleWriter
}

// Storage is the main interface for our sales storage layer.
type Storage interface {
	// InTx runs fn as one atomic unit. Writes made through tx are discarded
	// unless fn returns nil. Calls are serialized.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Read(ctx context.Context, id uint) (*Sale, error)
	Search(ctx context.Context, filter SaleFilter) ([]Sale, error)
}

// LocalStorage provides an in-memory implementation of Storage. It holds its
// own product table so postings can be exercised without a database.
type LocalStorage struct {
	mu         sync.RWMutex
	products   map[uint]inventory.Product
	sales      map[uint]*Sale
	nextSaleID uint
	nextItemID uint
	now        func() time.Time
}

// NewLocalStorage instantiates a new LocalStorage with empty tables.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		products: map[uint]inventory.Product{},
		sales:    map[uint]*Sale{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutProduct inserts or replaces a product.
func (l *LocalStorage) PutProduct(p inventory.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[p.ID] = p
}

// Product returns the committed state of a product.
func (l *LocalStorage) Product(id uint) (inventory.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[id]
	return p, ok
}

// Count returns the number of committed sales.
func (l *LocalStorage) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sales)
}

func (l *LocalStorage) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &localTx{store: l, stock: map[uint]int{}}
	if err := fn(tx); err != nil {
		return err
	}

	for id, stock := range tx.stock {
		p := l.products[id]
		p.Stock = stock
		p.UpdatedAt = l.now()
		l.products[id] = p
	}
	for _, sale := range tx.created {
		l.nextSaleID++
		sale.ID = l.nextSaleID
		for i := range sale.Items {
			l.nextItemID++
			sale.Items[i].ID = l.nextItemID
			sale.Items[i].SaleID = sale.ID
		}
		l.sales[sale.ID] = cloneSale(sale)
	}
	return nil
}

// Read retrieves a sale by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(_ context.Context, id uint) (*Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.sales[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSale(s)
	for i := range out.Items {
		out.Items[i].ProductName = l.products[out.Items[i].ProductID].Name
	}
	return out, nil
}

// Search returns matching sales, newest first, without line items.
func (l *LocalStorage) Search(_ context.Context, filter SaleFilter) ([]Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]Sale, 0, len(l.sales))
	for _, s := range l.sales {
		if !filter.matches(s) {
			continue
		}
		out := *s
		out.Items = nil
		results = append(results, out)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

func (f SaleFilter) matches(s *Sale) bool {
	if f.UserID != 0 && s.UserID != f.UserID {
		return false
	}
	if f.PaymentMethod != "" && s.PaymentMethod != f.PaymentMethod {
		return false
	}
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// localTx stages writes until InTx decides to apply them.
type localTx struct {
	store   *LocalStorage
	stock   map[uint]int
	created []*Sale
}

func (t *localTx) Products() ProductStore { return t }
func (t *localTx) Sales() SaleWriter      { return t }

func (t *localTx) Get(_ context.Context, id uint) (*inventory.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	if stock, staged := t.stock[id]; staged {
		p.Stock = stock
	}
	return &p, nil
}

func (t *localTx) DecrementStock(ctx context.Context, id uint, amount int) error {
	p, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return inventory.ErrInvalidProduct
	}
	if p.Stock < amount {
		return inventory.ErrStockConflict
	}
	t.stock[id] = p.Stock - amount
	return nil
}

func (t *localTx) Create(_ context.Context, sale *Sale) error {
	sale.CreatedAt = t.store.now()
	t.created = append(t.created, sale)
	return nil
}

func cloneSale(s *Sale) *Sale {
	out := *s
	out.Items = append([]LineItem(nil), s.Items...)
	return &out
}
