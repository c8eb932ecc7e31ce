package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sales_billing/api"
	"sales_billing/internal/config"
	"sales_billing/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	// Prices and totals are rendered as JSON numbers, as the shop backend stores them.
	decimal.MarshalJSONWithoutQuotes = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := gin.New()
	r.Use(gin.Recovery())
	cleanup := api.InitRoutes(r, cfg, logger, metrics.New(reg))
	defer cleanup()

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("block_on_insufficient_stock", cfg.Billing.BlockOnInsufficientStock),
	)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("error trying to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
