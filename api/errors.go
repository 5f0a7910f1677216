package api

import (
	"context"
	"errors"
	"net/http"

	"api_pos/internal/auth"
	"api_pos/internal/database"
	"api_pos/internal/inventory"
	"api_pos/internal/reports"
	"api_pos/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type lineDetails struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   *int   `json:"available,omitempty"`
}

// statusFor maps a service error onto an HTTP status. Errors outside the
// known taxonomy are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sales.ErrEmptyOrder),
		errors.Is(err, sales.ErrInvalidQuantity),
		errors.Is(err, sales.ErrUnknownProduct),
		errors.Is(err, sales.ErrInsufficientStock),
		errors.Is(err, sales.ErrInvalidPaymentMethod),
		errors.Is(err, sales.ErrInvalidFilter),
		errors.Is(err, sales.ErrInvalidUser),
		errors.Is(err, inventory.ErrInvalidProduct),
		errors.Is(err, inventory.ErrInvalidCategory),
		errors.Is(err, auth.ErrInvalidUser),
		errors.Is(err, reports.ErrInvalidRange),
		errors.Is(err, reports.ErrUnknownKind):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, sales.ErrNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrCategoryNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, sales.ErrTransactionConflict),
		errors.Is(err, inventory.ErrDuplicateSKU),
		errors.Is(err, inventory.ErrProductInUse),
		errors.Is(err, auth.ErrUserExists),
		errors.Is(err, database.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "details"}. Messages of 5xx responses
// are generic.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	switch status {
	case http.StatusInternalServerError:
		body.Error = "internal error"
	case http.StatusServiceUnavailable:
		body.Error = "request canceled"
	}

	var lineErr *sales.LineError
	if errors.As(err, &lineErr) {
		details := lineDetails{
			ProductID:   lineErr.ProductID,
			ProductName: lineErr.ProductName,
			Requested:   lineErr.Requested,
		}
		if errors.Is(lineErr, sales.ErrInsufficientStock) {
			available := lineErr.Available
			details.Available = &available
		}
		body.Details = details
	}

	c.JSON(status, body)
}

// writeBindError reports a malformed body or query with one entry per
// failed field.
func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "request body too large",
			Details: map[string]int64{"limit_bytes": tooLarge.Limit},
		})
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: fields})
}
