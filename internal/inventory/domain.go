package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products for browsing and reporting.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a sellable item with its quantity on hand.
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"not null" json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock        int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	CategoryID   *uint           `gorm:"index" json:"category_id"`
	Category     *Category       `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CategoryName string          `gorm:"->;-:migration" json:"category_name,omitempty"`
	SKU          *string         `gorm:"uniqueIndex" json:"sku"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  *uint
	SKU         *string
}

// ProductFilter narrows List results. Zero values disable a filter.
type ProductFilter struct {
	Search        string
	CategoryID    *uint
	LowStockBelow int
}
