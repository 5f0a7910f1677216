package api

import (
	"net/http"
	"strconv"

	"api_pos/internal/inventory"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type catalogHandler struct {
	inventory *inventory.Service
	logger    *zap.Logger
}

func newCatalogHandler(inventory *inventory.Service, logger *zap.Logger) *catalogHandler {
	return &catalogHandler{inventory: inventory, logger: logger}
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type productRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Stock       int              `json:"stock" binding:"min=0"`
	CategoryID  *uint            `json:"category_id"`
	SKU         *string          `json:"sku"`
}

func (r productRequest) input() inventory.ProductInput {
	return inventory.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       *r.Price,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
		SKU:         r.SKU,
	}
}

type productQuery struct {
	Search     string `form:"search"`
	CategoryID *uint  `form:"category_id"`
	LowStock   int    `form:"low_stock" binding:"min=0"`
}

// parseID reads the :id path parameter, answering 400 when it is not a
// positive integer.
func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 0)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *catalogHandler) listCategories(ctx *gin.Context) {
	categories, err := h.inventory.ListCategories(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, categories)
}

func (h *catalogHandler) createCategory(ctx *gin.Context) {
	var req categoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBindError(ctx, err)
		return
	}

	category, err := h.inventory.CreateCategory(ctx.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, category)
}

func (h *catalogHandler) updateCategory(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req categoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBindError(ctx, err)
		return
	}

	category, err := h.inventory.UpdateCategory(ctx.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, category)
}

func (h *catalogHandler) deleteCategory(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := h.inventory.DeleteCategory(ctx.Request.Context(), id); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

// listProducts handles GET /api/products?search=&category_id=&low_stock=.
func (h *catalogHandler) listProducts(ctx *gin.Context) {
	var q productQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		writeBindError(ctx, err)
		return
	}

	products, err := h.inventory.ListProducts(ctx.Request.Context(), inventory.ProductFilter{
		Search:        q.Search,
		CategoryID:    q.CategoryID,
		LowStockBelow: q.LowStock,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, products)
}

func (h *catalogHandler) getProduct(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	product, err := h.inventory.GetProduct(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (h *catalogHandler) createProduct(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBindError(ctx, err)
		return
	}

	product, err := h.inventory.CreateProduct(ctx.Request.Context(), req.input())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

func (h *catalogHandler) updateProduct(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBindError(ctx, err)
		return
	}

	product, err := h.inventory.UpdateProduct(ctx.Request.Context(), id, req.input())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (h *catalogHandler) deleteProduct(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := h.inventory.DeleteProduct(ctx.Request.Context(), id); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}
