package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sales_billing/internal/backend"
	"sales_billing/internal/config"
	"sales_billing/internal/metrics"
	"sales_billing/internal/sales"
)

// InitRoutes registers the sales billing endpoints on the given Gin engine.
// It initializes the backend client, form storage, service and handler, then
// binds each HTTP method and path to its handler. When an idle timeout is
// configured, idle forms are swept in the background. The returned function
// stops the sweeper and releases the backend client.
func InitRoutes(e *gin.Engine, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) func() {
	client := backend.New(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, logger.Named("backend"))

	salesStorage := sales.NewLocalStorage()
	salesService := sales.NewService(salesStorage, client, client, logger.Named("sales"),
		sales.WithBuildOptions(sales.BuildOptions{
			BlockOnInsufficientStock: cfg.Billing.BlockOnInsufficientStock,
		}),
		sales.WithRecorder(m),
	)
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Forms.IdleTTL > 0 {
		sweeper := sales.NewSweeper(salesStorage, logger.Named("sweeper"), cfg.Forms.IdleTTL, cfg.Forms.SweepInterval)
		go sweeper.RunForever(ctx)
	}

	salesHandler := NewSalesHandler(salesService, client, logger, cfg.Billing.LowStockThreshold)

	e.Use(requestLogger(logger), m.Middleware())

	e.GET("/metrics", gin.WrapH(m.Handler()))
	e.GET("/dashboard", salesHandler.handleDashboard)

	catalog := e.Group("/catalog")
	catalog.GET("/products", salesHandler.handleListProducts)
	catalog.GET("/buyers", salesHandler.handleListBuyers)
	catalog.GET("/towns", salesHandler.handleListTowns)

	e.POST("/bills/quote", salesHandler.handleQuote)
	e.GET("/sales", salesHandler.handleListSales)
	e.POST("/sales/:id/form", salesHandler.handleReopenSale)

	forms := e.Group("/forms")
	forms.POST("", salesHandler.handleOpenForm)
	forms.GET("", salesHandler.handleListForms)
	forms.GET("/:id", salesHandler.handleGetForm)
	forms.PATCH("/:id", salesHandler.handlePatchForm)
	forms.DELETE("/:id", salesHandler.handleDiscardForm)
	forms.POST("/:id/items", salesHandler.handleAddItem)
	forms.PUT("/:id/items/:index", salesHandler.handleUpdateItem)
	forms.DELETE("/:id/items/:index", salesHandler.handleRemoveItem)
	forms.POST("/:id/submit", salesHandler.handleSubmit)
	forms.GET("/:id/invoice", salesHandler.handleInvoice)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	return func() {
		cancel()
		if err := client.Close(); err != nil {
			logger.Warn("failed to close backend client", zap.Error(err))
		}
	}
}
