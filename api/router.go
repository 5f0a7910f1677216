package api

import (
	"net/http"
	"time"

	"api_pos/internal/auth"
	"api_pos/internal/config"
	"api_pos/internal/database"
	"api_pos/internal/inventory"
	"api_pos/internal/metrics"
	"api_pos/internal/reports"
	"api_pos/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	Store     *database.Store
	Auth      *auth.Service
	Inventory *inventory.Service
	Sales     *sales.Service
	Reports   *reports.Service
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	HTTP    config.HTTPConfig
	Version string
}

// InitRoutes installs the middleware chain and binds every endpoint of the
// POS API on the given Gin engine.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	registerValidators(logger)

	// ClientIP feeds the rate limiter, so forwarding headers are only
	// honoured from configured proxies.
	if err := e.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = e.SetTrustedProxies(nil)
	}

	e.Use(
		requestID(),
		recovery(logger),
		requestLogger(logger),
		observeRequests(deps.Metrics),
		securityHeaders(),
	)
	if policy := corsPolicy(deps.HTTP); policy != nil {
		e.Use(policy)
	}
	if deps.HTTP.MaxBodyBytes > 0 {
		e.Use(limitBody(deps.HTTP.MaxBodyBytes))
	}

	datastoreUp := func(c *gin.Context) bool {
		if deps.Store == nil {
			return true
		}
		if err := deps.Store.Ping(c.Request.Context()); err != nil {
			logger.Error("datastore ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "datastore unavailable"})
			return false
		}
		return true
	}

	e.GET("/ping", func(c *gin.Context) {
		if !datastoreUp(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	e.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	authHandler := newAuthHandler(deps.Auth, logger)
	catalogHandler := newCatalogHandler(deps.Inventory, logger)
	salesHandler := NewSalesHandler(deps.Sales, logger)
	reportsHandler := newReportsHandler(deps.Reports, logger)

	public := e.Group("/api")
	if limiter := rateLimit(deps.HTTP, logger); limiter != nil {
		public.Use(limiter)
	}
	public.GET("/health", func(c *gin.Context) {
		if !datastoreUp(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   deps.Version,
		})
	})
	public.POST("/auth/register", authHandler.register)
	public.POST("/auth/login", authHandler.login)

	private := public.Group("", authenticate(deps.Auth))
	admin := requireRole(auth.RoleAdmin)

	private.GET("/auth/verify", authHandler.verify)
	private.GET("/dashboard/stats", reportsHandler.dashboard)

	private.GET("/categories", catalogHandler.listCategories)
	private.POST("/categories", admin, catalogHandler.createCategory)
	private.PUT("/categories/:id", admin, catalogHandler.updateCategory)
	private.DELETE("/categories/:id", admin, catalogHandler.deleteCategory)

	private.GET("/products", catalogHandler.listProducts)
	private.GET("/products/:id", catalogHandler.getProduct)
	private.POST("/products", admin, catalogHandler.createProduct)
	private.PUT("/products/:id", admin, catalogHandler.updateProduct)
	private.DELETE("/products/:id", admin, catalogHandler.deleteProduct)

	private.POST("/sales", salesHandler.handleCreateSale)
	private.GET("/sales", salesHandler.handleSearchSales)
	private.GET("/sales/:id", salesHandler.handleGetSale)

	private.GET("/reports/sales", reportsHandler.salesByDay)
	private.GET("/reports/products", reportsHandler.products)
	private.GET("/reports/export/csv", reportsHandler.exportCSV)
	private.GET("/reports/export/xlsx", reportsHandler.exportXLSX)
}
