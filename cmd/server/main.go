/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the school fee resolution server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env.<env>, prefixed env vars, flags)
  2. Initialize logger (Rollbar when a token is configured)
  3. Initialize SQLite store (runs migrations)
  4. Create fee service and optionally load a demo scenario
  5. Configure HTTP router
  6. Start calendar scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  ENV selects the environment (DEV, TEST, QA, PROD) and the variable
  prefix, e.g. PROD_PORT, PROD_DBPATH, PROD_ROLLBARTOKEN.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/fees.db"

  # Run with in-memory database and demo data
  DEV_LOADSCENARIO=price-history ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
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

	"github.com/Mukisa95/Trinity-Family-school-sub002/api"
	"github.com/Mukisa95/Trinity-Family-school-sub002/config"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/logsvc"
	"github.com/Mukisa95/Trinity-Family-school-sub002/store/sqlite"
)

// StartupActor is recorded for scenarios loaded at boot.
const StartupActor = "startup-loader"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	hostname, _ := os.Hostname()
	logger := logsvc.New(logsvc.NewStdLogger(nil, cfg.Debug), logsvc.RollbarOptions{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		Host:        hostname,
	})
	if rl, ok := logger.(*logsvc.RollbarLogger); ok {
		defer rl.Close()
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	svc := fees.NewService(store, store, logger)

	if cfg.LoadScenario != "" {
		if err := api.LoadScenario(context.Background(), svc, StartupActor, cfg.LoadScenario); err != nil {
			logger.Warn("Failed to load scenario", err, map[string]interface{}{"scenario": cfg.LoadScenario})
		}
	}

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewCalendarScheduler(svc, logger)
	scheduler.Enabled = cfg.SchedulerEnabled
	if cfg.SchedulerInterval > 0 {
		scheduler.CheckInterval = cfg.SchedulerInterval
	}
	scheduler.Start()

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
		logger.Info("Server starting", map[string]interface{}{"addr": server.Addr, "env": cfg.Env})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
		return
	}

	logger.Info("Server stopped")
}
