/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the estate sales back-office server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire ledger services (lifecycle manager, payment recorder)
  4. Wire metrics engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: estate.db)
              Use ":memory:" for an in-memory database
  -currency   Currency symbol used on receipts (default: KSh)
  -plot-cost  Per-plot cost estimate for ROI (default: 500000)
  -retries    Bounded conflict-retry count for payments (default: 3)
  -tx-timeout Deadline for one ledger transaction (default: 5s)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/estate.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port with a different currency
  ./server -port=3000 -currency="USD "

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/plotwise/estate-engine/api"
	"github.com/plotwise/estate-engine/config"
	"github.com/plotwise/estate-engine/ledger"
	"github.com/plotwise/estate-engine/metrics"
	"github.com/plotwise/estate-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "estate.db", "SQLite database path")
	currency := flag.String("currency", "KSh", "currency symbol used on receipts")
	plotCost := flag.String("plot-cost", "500000", "per-plot cost estimate for ROI")
	retries := flag.Int("retries", 3, "bounded conflict-retry count for payments")
	txTimeout := flag.Duration("tx-timeout", 5*time.Second, "deadline for one ledger transaction")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	settings := config.Default()
	settings.CurrencySymbol = *currency
	if *retries > 0 {
		settings.MaxRetries = *retries
	}
	if *txTimeout > 0 {
		settings.TxTimeout = *txTimeout
	}
	if cost, err := decimal.NewFromString(*plotCost); err == nil && cost.IsPositive() {
		settings.PlotCostEstimate = cost
	} else {
		logger.Warn("invalid -plot-cost, using default",
			zap.String("value", *plotCost),
			zap.String("default", settings.PlotCostEstimate.String()),
		)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire ledger services. Notifications go to the log until a real
	// delivery channel is configured.
	notifier := ledger.LogNotifier{Logger: logger}
	lifecycle := ledger.NewLifecycleManager(store, notifier, logger).
		WithTxTimeout(settings.TxTimeout)
	recorder := ledger.NewPaymentRecorder(store, notifier, logger).
		WithMaxRetries(settings.MaxRetries).
		WithTxTimeout(settings.TxTimeout)

	// Metrics engine reads the same store.
	engine := metrics.NewEngine(store, settings, logger)

	// Create router
	handler := api.NewHandler(store, lifecycle, recorder, engine, settings, logger)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
