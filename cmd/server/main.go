package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	purchaseapp "github.com/reseller/backend/internal/application/purchase"
	salesapp "github.com/reseller/backend/internal/application/sales"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/infrastructure/config"
	"github.com/reseller/backend/internal/infrastructure/lock"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"github.com/reseller/backend/internal/interfaces/http/handler"
	"github.com/reseller/backend/internal/interfaces/http/middleware"
	"github.com/reseller/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting reseller backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	lp, err := telemetry.NewLogProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = logger.Tee(log, lp.Core(logger.ParseLevel(cfg.Log.Level)))

	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	ledgerMetrics, err := telemetry.NewLedgerMetrics(mp.Meter())
	if err != nil {
		log.Fatal("Failed to register ledger metrics", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected")

	locker, closeLocker, err := lock.NewProductLocker(cfg.Redis, cfg.Ledger, log)
	if err != nil {
		log.Fatal("Failed to initialize product locks", zap.Error(err))
	}

	// Repositories
	scope := persistence.NewGormTransactionScope(db.DB, persistence.WithIsolation(sql.LevelSerializable))
	lotRepo := persistence.NewGormLotRepository(db.DB)
	purchaseRepo := persistence.NewGormPurchaseRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	saleItemRepo := persistence.NewGormSaleItemRepository(db.DB)
	catalog := persistence.NewGormProductCatalog(db.DB)

	// Application services
	engine := appstock.NewFulfillmentEngine(log, appstock.WithMetrics(ledgerMetrics))
	purchaseService := purchaseapp.NewPurchaseService(scope, purchaseRepo, lotRepo, catalog, log)
	saleService := salesapp.NewSaleService(scope, saleRepo, saleItemRepo, engine, locker, log)
	positionService := appstock.NewPositionService(lotRepo, saleItemRepo, saleRepo)
	reconciliationService := appstock.NewReconciliationService(scope, locker, log, appstock.WithMetrics(ledgerMetrics))

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to configure request validation", zap.Error(err))
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	r.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.Enabled(),
		}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		middleware.SecureWithConfig(middleware.SecurityConfig{
			HSTSEnabled: cfg.IsProduction(),
			HSTSMaxAge:  31536000,
		}),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	router.Mount(r, router.Handlers{
		System:   handler.NewSystemHandler(db, version),
		Purchase: handler.NewPurchaseHandler(purchaseService),
		Sale:     handler.NewSaleHandler(saleService),
		Stock:    handler.NewStockHandler(positionService, reconciliationService),
	}, middleware.AdminKey(cfg.Admin.APIKey, log))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        r,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := closeLocker(); err != nil {
		log.Error("Error closing lock client", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Error flushing traces", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Error flushing metrics", zap.Error(err))
	}
	log.Info("Server exited")
	if err := lp.Shutdown(ctx); err != nil {
		log.Error("Error flushing logs", zap.Error(err))
	}
}
