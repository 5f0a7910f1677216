package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"api_pos/internal/inventory"
	"api_pos/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 20 * time.Millisecond
)

// Service posts and queries sales on a Storage backend.
type Service struct {
	storage     Storage
	logger      *zap.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records posting outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetry sets how many times a posting is attempted when it loses a write
// race, and the base delay between attempts.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewService creates a new Service.
func NewService(storage Storage, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	s := &Service{
		storage:     storage,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostSale validates the requested lines against current stock and commits
// the sale, its line items and the stock decrements as one unit. Either all
// of it is written or none of it.
func (s *Service) PostSale(ctx context.Context, in PostSaleInput) (*Sale, error) {
	method, err := validatePostSale(in)
	if err != nil {
		s.reject(in, err)
		return nil, err
	}

	var sale *Sale
	for attempt := 1; ; attempt++ {
		sale, err = s.post(ctx, in.UserID, in.Items, method)
		if err == nil || !errors.Is(err, ErrTransactionConflict) || attempt >= s.maxAttempts {
			break
		}

		s.metrics.PostingRetried()
		s.logger.Warn("sale posting conflicted, retrying",
			zap.Uint("user_id", in.UserID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if waitErr := sleep(ctx, s.backoff*time.Duration(attempt)); waitErr != nil {
			err = waitErr
			break
		}
	}
	if err != nil {
		s.reject(in, err)
		return nil, err
	}

	amount, _ := sale.TotalAmount.Float64()
	s.metrics.SalePosted(amount)
	s.logger.Info("sale posted",
		zap.Uint("sale_id", sale.ID),
		zap.Uint("user_id", sale.UserID),
		zap.String("total_amount", sale.TotalAmount.StringFixed(2)),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Int("lines", len(sale.Items)),
	)
	return sale, nil
}

// post runs one attempt: validation and commit share a single transaction,
// so no other stock write can land between the check and the decrement.
func (s *Service) post(ctx context.Context, userID uint, items []LineRequest, method string) (*Sale, error) {
	var sale *Sale
	err := s.storage.InTx(ctx, func(tx Tx) error {
		products := tx.Products()

		seen := make(map[uint]*inventory.Product, len(items))
		requested := make(map[uint]int, len(items))
		order := make([]uint, 0, len(items))
		lines := make([]LineItem, 0, len(items))
		total := decimal.Zero

		for _, item := range items {
			p, ok := seen[item.ProductID]
			if !ok {
				got, err := products.Get(ctx, item.ProductID)
				if errors.Is(err, inventory.ErrProductNotFound) {
					return &LineError{Err: ErrUnknownProduct, ProductID: item.ProductID, Requested: item.Quantity}
				}
				if err != nil {
					return err
				}
				p = got
				seen[item.ProductID] = p
				order = append(order, item.ProductID)
			}

			// Repeated product ids draw from the same stock. requested never
			// exceeds Stock here, so the subtraction cannot overflow.
			if item.Quantity > p.Stock-requested[item.ProductID] {
				return &LineError{
					Err:         ErrInsufficientStock,
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   saturatingAdd(requested[item.ProductID], item.Quantity),
					Available:   p.Stock,
				}
			}
			requested[item.ProductID] += item.Quantity

			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			lines = append(lines, LineItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    item.Quantity,
				UnitPrice:   p.Price,
				TotalPrice:  lineTotal,
			})
			total = total.Add(lineTotal)
		}

		sale = &Sale{
			TotalAmount:   total,
			PaymentMethod: method,
			UserID:        userID,
			Items:         lines,
		}
		if err := tx.Sales().Create(ctx, sale); err != nil {
			return err
		}

		for _, id := range order {
			if err := products.DecrementStock(ctx, id, requested[id]); err != nil {
				if errors.Is(err, inventory.ErrStockConflict) {
					return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return sale, nil
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func (s *Service) reject(in PostSaleInput, err error) {
	s.metrics.SaleFailed(failureReason(err))

	fields := []zap.Field{
		zap.Uint("user_id", in.UserID),
		zap.Int("lines", len(in.Items)),
		zap.Error(err),
	}
	var lineErr *LineError
	if errors.As(err, &lineErr) {
		fields = append(fields,
			zap.Uint("product_id", lineErr.ProductID),
			zap.Int("requested", lineErr.Requested),
			zap.Int("available", lineErr.Available),
		)
	}

	switch {
	case errors.Is(err, ErrStorageFailure):
		s.logger.Error("sale posting failed", fields...)
	case errors.Is(err, ErrTransactionConflict):
		s.logger.Warn("sale posting gave up after conflicts", fields...)
	default:
		s.logger.Info("sale rejected", fields...)
	}
}

func validatePostSale(in PostSaleInput) (string, error) {
	if in.UserID == 0 {
		return "", ErrInvalidUser
	}
	if len(in.Items) == 0 {
		return "", ErrEmptyOrder
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return "", &LineError{Err: ErrInvalidQuantity, ProductID: item.ProductID, Requested: item.Quantity}
		}
	}
	return NormalizePaymentMethod(in.PaymentMethod)
}

// NormalizePaymentMethod lower-cases method and defaults it to cash.
func NormalizePaymentMethod(method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return PaymentCash, nil
	}
	if !paymentMethods[method] {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	return method, nil
}

// GetSale returns a sale with its line items.
func (s *Service) GetSale(ctx context.Context, id uint) (*Sale, error) {
	sale, err := s.storage.Read(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to read sale", zap.Uint("sale_id", id), zap.Error(err))
		}
		return nil, err
	}
	return sale, nil
}

// SearchSales lists sales matching filter, newest first, with a summary of
// the matched set.
func (s *Service) SearchSales(ctx context.Context, filter SaleFilter) ([]Sale, SalesMetadata, error) {
	if filter.PaymentMethod != "" {
		method, err := NormalizePaymentMethod(filter.PaymentMethod)
		if err != nil {
			s.logger.Warn("invalid payment method filter", zap.String("payment_method", filter.PaymentMethod))
			return nil, SalesMetadata{}, err
		}
		filter.PaymentMethod = method
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, SalesMetadata{}, fmt.Errorf("%w: end is before start", ErrInvalidFilter)
	}

	results, err := s.storage.Search(ctx, filter)
	if err != nil {
		s.logger.Error("failed to search sales", zap.Error(err))
		return nil, SalesMetadata{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	metadata := SalesMetadata{
		TotalAmount:     decimal.Zero,
		ByPaymentMethod: map[string]PaymentSummary{},
	}
	for _, sale := range results {
		metadata.Quantity++
		metadata.TotalAmount = metadata.TotalAmount.Add(sale.TotalAmount)

		summary := metadata.ByPaymentMethod[sale.PaymentMethod]
		summary.Count++
		summary.Amount = summary.Amount.Add(sale.TotalAmount)
		metadata.ByPaymentMethod[sale.PaymentMethod] = summary
	}

	s.logger.Debug("sales search completed",
		zap.Uint("user_filter", filter.UserID),
		zap.String("payment_method_filter", filter.PaymentMethod),
		zap.Int("results_count", len(results)),
	)
	return results, metadata, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
