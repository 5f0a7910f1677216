package sales

import (
	"time"

	"api_pos/internal/inventory"

	"github.com/shopspring/decimal"
)

// Payment methods accepted at the till.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentMobile   = "mobile"
)

var paymentMethods = map[string]bool{
	PaymentCash:     true,
	PaymentCard:     true,
	PaymentTransfer: true,
	PaymentMobile:   true,
}

// Sale represents a posted sales transaction. It is never modified after the
// posting commits.
type Sale struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaymentMethod string          `gorm:"not null;default:cash" json:"payment_method"`
	UserID        uint            `gorm:"index" json:"user_id"`
	UserName      string          `gorm:"->;-:migration" json:"user_name,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	Items         []LineItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// LineItem is one product line of a sale with the price captured at posting.
type LineItem struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	SaleID      uint               `gorm:"index;not null" json:"sale_id"`
	ProductID   uint               `gorm:"index;not null" json:"product_id"`
	Product     *inventory.Product `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	ProductName string             `gorm:"->;-:migration" json:"product_name,omitempty"`
	Quantity    int                `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice   decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"total_price"`
}

// TableName keeps the historical table name.
func (LineItem) TableName() string { return "sale_items" }

// LineRequest is one requested (product, quantity) pair.
type LineRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// PostSaleInput is what a cashier submits at checkout.
type PostSaleInput struct {
	UserID        uint
	Items         []LineRequest
	PaymentMethod string
}

// SaleFilter narrows SearchSales. Zero values disable a filter.
type SaleFilter struct {
	UserID        uint
	PaymentMethod string
	From          time.Time
	To            time.Time
}

// SalesMetadata summarizes a search result.
type SalesMetadata struct {
	Quantity        int                       `json:"quantity"`
	TotalAmount     decimal.Decimal           `json:"total_amount"`
	ByPaymentMethod map[string]PaymentSummary `json:"by_payment_method"`
}

type PaymentSummary struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
