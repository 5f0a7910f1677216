package sales

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/database"
	"api_pos/internal/inventory"

	"gorm.io/gorm"
)

// DBStorage persists sales in the SQLite store.
type DBStorage struct {
	store *database.Store
}

// NewDBStorage creates a Storage backed by store.
func NewDBStorage(store *database.Store) *DBStorage {
	return &DBStorage{store: store}
}

func (d *DBStorage) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return d.store.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(dbTx{db: tx})
	})
}

func (d *DBStorage) Read(ctx context.Context, id uint) (*Sale, error) {
	db := d.store.DB(ctx)

	var sale Sale
	err := db.Model(&Sale{}).
		Select("sales.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = sales.user_id").
		Where("sales.id = ?", id).
		Take(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read sale %d: %w", id, err)
	}

	items := make([]LineItem, 0)
	err = db.Model(&LineItem{}).
		Select("sale_items.*, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = sale_items.product_id").
		Where("sale_items.sale_id = ?", id).
		Order("sale_items.id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("read items of sale %d: %w", id, err)
	}
	sale.Items = items
	return &sale, nil
}

func (d *DBStorage) Search(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	q := d.store.DB(ctx).
		Model(&Sale{}).
		Select("sales.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = sales.user_id")
	if filter.UserID != 0 {
		q = q.Where("sales.user_id = ?", filter.UserID)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("sales.payment_method = ?", filter.PaymentMethod)
	}
	if !filter.From.IsZero() {
		q = q.Where("sales.created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("sales.created_at < ?", filter.To.UTC())
	}

	results := make([]Sale, 0)
	if err := q.Order("sales.created_at DESC, sales.id DESC").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("search sales: %w", err)
	}
	return results, nil
}

type dbTx struct {
	db *gorm.DB
}

func (t dbTx) Products() ProductStore { return inventory.NewRepository(t.db) }
func (t dbTx) Sales() SaleWriter      { return saleRepository{db: t.db} }

type saleRepository struct {
	db *gorm.DB
}

// Create inserts the sale row first, then its line items with the new id.
func (r saleRepository) Create(ctx context.Context, sale *Sale) error {
	db := r.db.WithContext(ctx)
	items := sale.Items

	if err := db.Omit("Items").Create(sale).Error; err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	for i := range items {
		items[i].SaleID = sale.ID
	}
	if len(items) > 0 {
		if err := db.Omit("Product").Create(&items).Error; err != nil {
			return fmt.Errorf("insert sale items: %w", err)
		}
	}
	sale.Items = items
	return nil
}
