package sales

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/database"
)

var (
	ErrEmptyOrder           = errors.New("order has no items")
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrUnknownProduct       = errors.New("unknown product")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidFilter        = errors.New("invalid sales filter")
	ErrInvalidUser          = errors.New("sale requires an authenticated user")

	// ErrTransactionConflict means a concurrent writer won the race for the
	// same stock. The posting had no effect and is safe to retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrStorageFailure wraps datastore I/O errors of unknown cause.
	ErrStorageFailure = errors.New("storage failure")
)

// LineError reports which requested line rejected a posting.
type LineError struct {
	Err         error
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *LineError) Error() string {
	switch {
	case errors.Is(e.Err, ErrInsufficientStock):
		return fmt.Sprintf("%v for product %d: requested %d, available %d", e.Err, e.ProductID, e.Requested, e.Available)
	default:
		return fmt.Sprintf("%v: product %d", e.Err, e.ProductID)
	}
}

func (e *LineError) Unwrap() error { return e.Err }

// classifyStorageError maps a datastore error onto the sale error taxonomy.
// Errors that already belong to it pass through unchanged.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var lineErr *LineError
	switch {
	case errors.As(err, &lineErr),
		errors.Is(err, ErrTransactionConflict),
		errors.Is(err, ErrStorageFailure),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case database.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "storage"
}
