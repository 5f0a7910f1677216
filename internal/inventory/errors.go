package inventory

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrDuplicateSKU     = errors.New("sku already in use")
	ErrProductInUse     = errors.New("product is referenced by sales")

	// ErrStockConflict is returned by DecrementStock when the row no longer
	// holds enough stock for the requested amount.
	ErrStockConflict = errors.New("stock changed concurrently")
)
