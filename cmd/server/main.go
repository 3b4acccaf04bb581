/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the ledger and leave service
  4. Configure HTTP router with JWT auth
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take precedence over environment variables:
  -port    / PORT        HTTP server port (default: 8080)
  -db      / DATABASE    SQLite database path (default: leave.db)
                         Use ":memory:" for in-memory database
  -secret  / JWT_SECRET  HMAC secret for bearer tokens (required)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kaacquah2/leave-portal-sub009/api"
	"github.com/kaacquah2/leave-portal-sub009/leave"
	"github.com/kaacquah2/leave-portal-sub009/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE", "leave.db"), "SQLite database path")
	secret := flag.String("secret", envStr("JWT_SECRET", ""), "HMAC secret for bearer tokens")
	flag.Parse()

	if *secret == "" {
		log.Fatal("JWT secret is required (-secret or JWT_SECRET)")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build the engine: standard policies, ledger, service. The store
	// backs every interface including the holiday calendar.
	policies := leave.StandardPolicies()
	ledger := leave.NewLedger(store, policies, store)
	svc := leave.NewService(store, ledger, store, store, store, policies)

	handler := api.NewHandler(svc, store)
	router := api.NewRouter(handler, *secret)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
