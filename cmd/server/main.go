/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shop ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Create API handler with the ledgers
  4. Start the balance auditor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: HTTP_PORT or 8080)
  -db      SQLite database path (default: DATABASE_PATH or shop.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  HTTP_PORT, DATABASE_PATH, JWT_SECRET, LOG_LEVEL, CORS_ORIGINS,
  STOCK_MAX_ATTEMPTS, AUDIT_INTERVAL (see config/config.go)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/shop-ledger/api"
	"github.com/warp/shop-ledger/config"
	"github.com/warp/shop-ledger/logger"
	"github.com/warp/shop-ledger/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags override the environment
	port := flag.Int("port", cfg.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	log := logger.New(cfg.LogLevel)

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, api.Options{
		JWTSecret:   cfg.JWTSecret,
		MaxAttempts: cfg.StockMaxAttempts,
		Logger:      log,
	})

	handler.Auditor.CheckInterval = cfg.AuditInterval
	handler.Auditor.Start()
	defer handler.Auditor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server stopped")
}
