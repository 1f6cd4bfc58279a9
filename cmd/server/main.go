/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the installment ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Initialize the storage backend (sqlite or memory)
  3. Wire ledger service and reporting engine
  4. Configure HTTP router
  5. Start server with graceful shutdown

ENVIRONMENT:
  PORT              HTTP server port (default: 8080)
  DATA_BACKEND      "sqlite" or "memory" (default: sqlite)
  SQLITE_DB_PATH    Database path; ":memory:" for in-memory
  ALLOWED_ORIGINS   Comma-separated CORS origins
  LOG_LEVEL         debug|info|warn|error
  SHUTDOWN_TIMEOUT  Grace period for in-flight requests

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run against a file database
  SQLITE_DB_PATH=./data/ledger.db ./server

  # Run fully in memory
  DATA_BACKEND=memory ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/installment-ledger/api"
	"github.com/warp/installment-ledger/applog"
	"github.com/warp/installment-ledger/config"
	"github.com/warp/installment-ledger/ledger"
	memstore "github.com/warp/installment-ledger/ledger/store"
	"github.com/warp/installment-ledger/reports"
	"github.com/warp/installment-ledger/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		applog.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := applog.New(applog.Config{Level: applog.ParseLevel(cfg.LogLevel), Component: "server"})

	// Storage backend
	var (
		payments ledger.PaymentStore
		expenses ledger.ExpenseStore
		units    ledger.UnitStore
		audit    ledger.AuditLog
	)
	switch cfg.DataBackend {
	case "sqlite":
		store, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			log.Error("failed to initialize database", "path", cfg.SQLiteDBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		payments, expenses, units, audit = store, store.Expenses(), store.Units(), store
	case "memory":
		payments = memstore.NewMemoryPayments()
		expenses = memstore.NewMemoryExpenses()
		units = memstore.NewMemoryUnits()
		audit = memstore.NewMemoryAudit()
	}

	clock := ledger.SystemClock{}
	svc := ledger.New(payments, expenses, units, audit, clock, log)
	engine := reports.NewEngine(payments, expenses, units, clock)

	handler := api.NewHandler(svc, engine, audit, log)
	router := api.NewRouter(handler, log, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
