package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Kind selects the dataset of an export.
type Kind string

const (
	KindSales    Kind = "sales"
	KindProducts Kind = "products"
)

const (
	sheetName       = "Report"
	timestampLayout = "2006-01-02 15:04:05"
)

// ErrUnknownKind is returned for an export type other than sales or products.
var ErrUnknownKind = errors.New("unknown export type")

// ParseKind defaults an empty value to sales.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case "", KindSales:
		return KindSales, nil
	case KindProducts:
		return KindProducts, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
}

// Filename is the download name of an export, e.g. sales_report.csv.
func (k Kind) Filename(ext string) string {
	return string(k) + "_report." + ext
}

// table is an export rendered independently of its output format. Cells are
// string, int64, float64 or nil.
type table struct {
	header []string
	rows   [][]any
}

type saleExportRow struct {
	ID            uint
	TotalAmount   decimal.Decimal
	PaymentMethod string
	CreatedAt     time.Time
	UserName      string
}

type productExportRow struct {
	ID           uint
	Name         string
	Price        decimal.Decimal
	Stock        int
	CategoryName string
	TotalSold    int64
}

func (s *Service) table(ctx context.Context, kind Kind) (*table, error) {
	db := s.store.DB(ctx)

	switch kind {
	case KindSales:
		var rows []saleExportRow
		err := db.Raw(`
			SELECT s.id, s.total_amount, s.payment_method, s.created_at,
				COALESCE(u.name, '') AS user_name
			FROM sales s
			LEFT JOIN users u ON u.id = s.user_id
			ORDER BY s.created_at DESC, s.id DESC`).
			Scan(&rows).Error
		if err != nil {
			return nil, s.fail("sales export", err)
		}
		t := &table{header: []string{"Sale ID", "Total Amount", "Payment Method", "Date", "User"}}
		for _, r := range rows {
			t.rows = append(t.rows, []any{
				int64(r.ID),
				money(r.TotalAmount).InexactFloat64(),
				r.PaymentMethod,
				r.CreatedAt.UTC().Format(timestampLayout),
				r.UserName,
			})
		}
		return t, nil

	case KindProducts:
		var rows []productExportRow
		err := db.Raw(`
			SELECT p.id, p.name, p.price, p.stock,
				COALESCE(c.name, '') AS category_name,
				COALESCE(SUM(si.quantity), 0) AS total_sold
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			LEFT JOIN sale_items si ON si.product_id = p.id
			GROUP BY p.id, p.name, p.price, p.stock, c.name
			ORDER BY p.name`).
			Scan(&rows).Error
		if err != nil {
			return nil, s.fail("products export", err)
		}
		t := &table{header: []string{"Product ID", "Name", "Price", "Stock", "Category", "Total Sold"}}
		for _, r := range rows {
			t.rows = append(t.rows, []any{
				int64(r.ID),
				r.Name,
				money(r.Price).InexactFloat64(),
				int64(r.Stock),
				r.CategoryName,
				r.TotalSold,
			})
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// WriteCSV streams the export as CSV to w.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, kind Kind) error {
	t, err := s.table(ctx, kind)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	record := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	s.logger.Debug("export written", zap.String("format", "csv"), zap.String("type", string(kind)), zap.Int("rows", len(t.rows)))
	return nil
}

// WriteXLSX streams the export as a single-sheet workbook to w.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer, kind Kind) (err error) {
	t, err := s.table(ctx, kind)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open sheet stream: %w", err)
	}

	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	s.logger.Debug("export written", zap.String("format", "xlsx"), zap.String("type", string(kind)), zap.Int("rows", len(t.rows)))
	return nil
}

func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', 2, 64)
	}
	return fmt.Sprint(v)
}
