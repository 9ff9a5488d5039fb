/*
main.go - Application entry point

PURPOSE:
  Starts the investor report HTTP service. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file, then REPORT_* environment)
  3. Build the zap logger
  4. Open the investor store
  5. Build the report generator (template, PDF engine, output directory)
  6. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (default: $REPORT_CONFIG)
  -addr    HTTP listen address, overrides server.http_addr
  -db      Database DSN, overrides db.dsn
  -pdf     PDF engine (wkhtmltopdf, chrome, none), overrides pdf.engine

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run against a local SQLite file
  ./server -db="./investors.db"

  # Run without a database (data is lost on exit)
  REPORT_DB_DRIVER=memory ./server

  # Run against PostgreSQL
  REPORT_DB_DRIVER=postgres REPORT_DB_DSN="postgres://..." ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - report/generator.go: Report pipeline
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/report-engine/api"
	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/logger"
	"github.com/warp/report-engine/report"
	"github.com/warp/report-engine/store/memory"
	"github.com/warp/report-engine/store/sqlstore"
)

func main() {
	// Flags
	configPath := flag.String("config", os.Getenv("REPORT_CONFIG"), "YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.http_addr)")
	dsn := flag.String("db", "", "database DSN (overrides db.dsn)")
	engine := flag.String("pdf", "", "PDF engine: wkhtmltopdf, chrome or none (overrides pdf.engine)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *configPath == "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}
	if *dsn != "" {
		cfg.DB.DSN = *dsn
	}
	if *engine != "" {
		cfg.PDF.Engine = *engine
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer closeStore()

	gen, err := report.NewGeneratorFromConfig(ctx, cfg, store, log)
	if err != nil {
		return fmt.Errorf("failed to initialize report generator: %w", err)
	}

	handler := api.NewHandler(store, gen, cfg, log)
	router := api.NewRouter(handler, cfg.Server, log)

	server := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("db_driver", cfg.DB.Driver),
			zap.Bool("pdf", gen.PDFEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// investorStore is what the handlers and the generator need from a store.
type investorStore interface {
	report.Store
	api.InvestorStore
}

// openStore opens the configured store. Driver "memory" keeps everything in
// process and loses it on exit.
func openStore(cfg config.DBConfig) (investorStore, func() error, error) {
	if cfg.Driver == "memory" {
		return memory.New(), func() error { return nil }, nil
	}
	store, err := sqlstore.OpenConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
