// Package reports serves read-only aggregations over posted sales.
package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"api_pos/internal/database"
	"api_pos/internal/inventory"
	"api_pos/internal/sales"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	dateLayout         = "2006-01-02"
	dashboardWindow    = 30 * 24 * time.Hour
	bestSellerLimit    = 5
	recentSalesLimit   = 10
	defaultLowStockCap = 10
)

// ErrInvalidRange is returned when a report period ends before it starts.
var ErrInvalidRange = errors.New("invalid date range")

// Dashboard is the landing page summary.
type Dashboard struct {
	TodaySales       decimal.Decimal     `json:"today_sales"`
	MonthlySales     decimal.Decimal     `json:"monthly_sales"`
	TotalProducts    int64               `json:"total_products"`
	LowStockProducts []inventory.Product `json:"low_stock_products"`
	BestSelling      []BestSeller        `json:"best_selling"`
	RecentSales      []sales.Sale        `json:"recent_sales"`
}

// BestSeller is a product ranked by units sold.
type BestSeller struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	TotalSold int64           `json:"total_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DaySummary is one row of the daily sales report.
type DaySummary struct {
	Date              string          `json:"date"`
	TotalTransactions int64           `json:"total_transactions"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

// ProductSummary is one row of the product performance report.
type ProductSummary struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	CategoryName string          `json:"category_name"`
	TotalSold    int64           `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Service runs report queries against the store.
type Service struct {
	store             *database.Store
	lowStockThreshold int
	logger            *zap.Logger
}

// NewService creates a new Service. Products with stock below
// lowStockThreshold are flagged on the dashboard.
func NewService(store *database.Store, lowStockThreshold int, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = defaultLowStockCap
	}
	return &Service{store: store, lowStockThreshold: lowStockThreshold, logger: logger}
}

// Dashboard aggregates revenue for the day of now and the 30 days before it,
// the catalog size, low stock products, best sellers and the latest sales.
func (s *Service) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	db := s.store.DB(ctx)
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := dayStart.Add(-dashboardWindow)

	out := &Dashboard{
		LowStockProducts: []inventory.Product{},
		BestSelling:      []BestSeller{},
		RecentSales:      []sales.Sale{},
	}

	var err error
	if out.TodaySales, err = s.revenueSince(ctx, dayStart); err != nil {
		return nil, s.fail("dashboard today revenue", err)
	}
	if out.MonthlySales, err = s.revenueSince(ctx, windowStart); err != nil {
		return nil, s.fail("dashboard monthly revenue", err)
	}
	if err = db.Model(&inventory.Product{}).Count(&out.TotalProducts).Error; err != nil {
		return nil, s.fail("dashboard product count", err)
	}

	err = db.Model(&inventory.Product{}).
		Select("products.*, categories.name AS category_name").
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Where("products.stock < ?", s.lowStockThreshold).
		Order("products.stock ASC, products.name").
		Find(&out.LowStockProducts).Error
	if err != nil {
		return nil, s.fail("dashboard low stock", err)
	}

	err = db.Raw(`
		SELECT p.id AS product_id, p.name, p.price,
			SUM(si.quantity) AS total_sold,
			SUM(si.total_price) AS revenue
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		JOIN sales s ON s.id = si.sale_id
		WHERE s.created_at >= ?
		GROUP BY p.id, p.name, p.price
		ORDER BY total_sold DESC, revenue DESC
		LIMIT ?`, windowStart, bestSellerLimit).
		Scan(&out.BestSelling).Error
	if err != nil {
		return nil, s.fail("dashboard best sellers", err)
	}
	for i := range out.BestSelling {
		out.BestSelling[i].Price = money(out.BestSelling[i].Price)
		out.BestSelling[i].Revenue = money(out.BestSelling[i].Revenue)
	}

	err = db.Model(&sales.Sale{}).
		Select("sales.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = sales.user_id").
		Order("sales.created_at DESC, sales.id DESC").
		Limit(recentSalesLimit).
		Find(&out.RecentSales).Error
	if err != nil {
		return nil, s.fail("dashboard recent sales", err)
	}

	return out, nil
}

func (s *Service) revenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := s.store.DB(ctx).
		Raw("SELECT COALESCE(SUM(total_amount), 0) AS total FROM sales WHERE created_at >= ?", since).
		Scan(&row).Error
	return money(row.Total), err
}

// SalesByDay returns the number of sales and revenue per calendar day (UTC),
// newest day first. A zero from or to leaves that side of the range open;
// both bounds are inclusive days.
func (s *Service) SalesByDay(ctx context.Context, from, to time.Time) ([]DaySummary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrInvalidRange)
	}

	q := s.store.DB(ctx).
		Table("sales").
		Select("DATE(created_at) AS date, COUNT(id) AS total_transactions, COALESCE(SUM(total_amount), 0) AS total_revenue")
	if !from.IsZero() {
		q = q.Where("DATE(created_at) >= ?", from.UTC().Format(dateLayout))
	}
	if !to.IsZero() {
		q = q.Where("DATE(created_at) <= ?", to.UTC().Format(dateLayout))
	}

	rows := make([]DaySummary, 0)
	if err := q.Group("DATE(created_at)").Order("date DESC").Scan(&rows).Error; err != nil {
		return nil, s.fail("sales by day", err)
	}
	for i := range rows {
		rows[i].TotalRevenue = money(rows[i].TotalRevenue)
	}
	return rows, nil
}

// ProductPerformance lists every product with its lifetime units sold and
// revenue, best sellers first.
func (s *Service) ProductPerformance(ctx context.Context) ([]ProductSummary, error) {
	rows := make([]ProductSummary, 0)
	err := s.store.DB(ctx).Raw(`
		SELECT p.id, p.name, p.price, p.stock,
			COALESCE(c.name, '') AS category_name,
			COALESCE(SUM(si.quantity), 0) AS total_sold,
			COALESCE(SUM(si.total_price), 0) AS total_revenue
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN sale_items si ON si.product_id = p.id
		GROUP BY p.id, p.name, p.price, p.stock, c.name
		ORDER BY total_sold DESC, p.name`).
		Scan(&rows).Error
	if err != nil {
		return nil, s.fail("product performance", err)
	}
	for i := range rows {
		rows[i].Price = money(rows[i].Price)
		rows[i].TotalRevenue = money(rows[i].TotalRevenue)
	}
	return rows, nil
}

// ParseDate reads a YYYY-MM-DD query value. An empty value yields the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, value)
	}
	return t, nil
}

func (s *Service) fail(op string, err error) error {
	s.logger.Error("report query failed", zap.String("report", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// money normalizes a sum read back from SQLite, where decimals are stored as
// floating point numbers.
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
