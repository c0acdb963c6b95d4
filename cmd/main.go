package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"shopease-backend/internal/handler"
	"shopease-backend/internal/hierarchy"
	"shopease-backend/internal/inventory"
	mid "shopease-backend/internal/middleware"
	"shopease-backend/internal/report"
	"shopease-backend/internal/scheduler"
	"shopease-backend/pkg/config"
	"shopease-backend/pkg/database"
	"shopease-backend/pkg/logger"
	"shopease-backend/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration (reads .env when present)
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting shopease-backend",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.Connect(&appConfig.Database, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrated")

	// Application services
	guard := inventory.New(db, log)
	resolver := hierarchy.New(db, log)
	generator := report.NewGenerator(db, appConfig.Reports.OutputDir, log)
	sched := scheduler.New(scheduler.NewGormStore(db), generator, appConfig.Scheduler, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sched.Start(ctx)
	defer sched.Stop()

	handler.Init(guard, resolver, sched)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Order API routes
	e.POST("/api/orders/:id/items", handler.PlaceOrderItem)

	// Employee hierarchy
	e.GET("/api/employees/hierarchy", handler.GetEmployeeHierarchy)

	// Report task API routes
	e.POST("/api/reports", handler.SubmitReport)
	e.GET("/api/reports/:id", handler.GetReportStatus)
	e.DELETE("/api/reports/:id", handler.CancelReport)

	// Reporting views
	e.GET("/api/stats/top-products", handler.GetTopSellingProducts)
	e.GET("/api/stats/store-revenue", handler.GetStoreRevenue)

	// Customer API routes
	e.POST("/api/customers", handler.CreateCustomer)
	e.GET("/api/customers", handler.ListCustomers)

	// Start server, shut down on SIGINT/SIGTERM
	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := e.Shutdown(context.Background()); err != nil {
			log.Error("Server shutdown error", zap.Error(err))
		}
	}()

	if err := e.Start(":" + appConfig.Server.Port); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server error", zap.Error(err))
	}
}
