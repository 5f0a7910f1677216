package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"api_pos/internal/database"

	"gorm.io/gorm"
)

// Repository reads and writes products and categories. It is bound to either
// the root handle or a transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db, which may be a transaction handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) products(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&Product{}).
		Select("products.*, categories.name AS category_name").
		Joins("LEFT JOIN categories ON categories.id = products.category_id")
}

// Get returns the product with the given id or ErrProductNotFound.
func (r *Repository) Get(ctx context.Context, id uint) (*Product, error) {
	var p Product
	err := r.products(ctx).Where("products.id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

// DecrementStock subtracts amount from the product's stock only if enough is
// on hand. It returns ErrStockConflict when the guarded update matches no row.
func (r *Repository) DecrementStock(ctx context.Context, id uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("decrement product %d by %d: %w", id, amount, ErrInvalidProduct)
	}
	res := r.db.WithContext(ctx).
		Model(&Product{}).
		Where("id = ? AND stock >= ?", id, amount).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", amount),
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return fmt.Errorf("decrement product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("decrement product %d by %d: %w", id, amount, ErrStockConflict)
	}
	return nil
}

// List returns products ordered by name.
func (r *Repository) List(ctx context.Context, filter ProductFilter) ([]Product, error) {
	q := r.products(ctx)
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(products.name) LIKE ? OR LOWER(products.sku) LIKE ?", like, like)
	}
	if filter.CategoryID != nil {
		q = q.Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.LowStockBelow > 0 {
		q = q.Where("products.stock < ?", filter.LowStockBelow)
	}

	products := make([]Product, 0)
	if err := q.Order("products.name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Count returns the number of products.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *Repository) Create(ctx context.Context, p *Product) error {
	if err := r.db.WithContext(ctx).Omit("Category").Create(p).Error; err != nil {
		return translateWriteError(err, "create product")
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, p *Product) error {
	res := r.db.WithContext(ctx).
		Model(&Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"stock":       p.Stock,
			"category_id": p.CategoryID,
			"sku":         p.SKU,
			"updated_at":  r.db.NowFunc(),
		})
	if res.Error != nil {
		return translateWriteError(res.Error, "update product")
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Product{}, id)
	if res.Error != nil {
		return translateWriteError(res.Error, "delete product")
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	categories := make([]Category, 0)
	if err := r.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *Repository) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var c Category
	err := r.db.WithContext(ctx).Take(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *Category) error {
	res := r.db.WithContext(ctx).
		Model(&Category{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{"name": c.Name, "description": c.Description})
	if res.Error != nil {
		return fmt.Errorf("update category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Category{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func translateWriteError(err error, op string) error {
	switch {
	case database.IsUniqueViolation(err):
		return ErrDuplicateSKU
	case database.IsForeignKeyViolation(err):
		if strings.HasPrefix(op, "delete") {
			return ErrProductInUse
		}
		return ErrCategoryNotFound
	case database.IsConflict(err):
		return fmt.Errorf("%s: %w", op, database.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
