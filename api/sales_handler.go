package api

import (
	"net/http"
	"time"

	"api_pos/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

type saleItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Product ids and quantities are checked by the service so that the
// rejection names the offending line.
type createSaleRequest struct {
	Items         []saleItemRequest `json:"items"`
	PaymentMethod string            `json:"payment_method" binding:"omitempty,payment_method"`
}

type searchSalesQuery struct {
	UserID        uint      `form:"user_id"`
	PaymentMethod string    `form:"payment_method"`
	StartDate     time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate       time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
}

// handleCreateSale handles the POST /api/sales endpoint. The sale is
// attributed to the authenticated user.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req createSaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		writeBindError(ctx, err)
		return
	}

	principal, _ := principalFrom(ctx)
	items := make([]sales.LineRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = sales.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	sale, err := h.salesService.PostSale(ctx.Request.Context(), sales.PostSaleInput{
		UserID:        principal.UserID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	sale.UserName = principal.Name

	ctx.JSON(http.StatusCreated, sale)
}

// handleSearchSales handles GET /api/sales. end_date is inclusive.
func (h *salesHandler) handleSearchSales(ctx *gin.Context) {
	var q searchSalesQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		writeBindError(ctx, err)
		return
	}

	filter := sales.SaleFilter{
		UserID:        q.UserID,
		PaymentMethod: q.PaymentMethod,
		From:          q.StartDate,
	}
	if !q.EndDate.IsZero() {
		filter.To = q.EndDate.AddDate(0, 0, 1)
	}

	salesResults, metadata, err := h.salesService.SearchSales(ctx.Request.Context(), filter)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": salesResults, "metadata": metadata})
}

func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	sale, err := h.salesService.GetSale(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}
