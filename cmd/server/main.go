/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cinema loyalty engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the collaborator notification dispatcher
  5. Configure HTTP router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the notification queue
  4. Close database connection
  5. Exit

ENVIRONMENT:
  PORT                   HTTP server port (default: 5000)
  DB_PATH                SQLite database path (default: ./loyalty.db)
                         Use ":memory:" for in-memory database
  USERS_SERVICE          User-profile service base URL, balance mirror
  NOTIFICATIONS_SERVICE  Notifications service base URL, event fan-out

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marquee/loyalty-engine/api"
	"github.com/marquee/loyalty-engine/config"
	"github.com/marquee/loyalty-engine/notify"
	"github.com/marquee/loyalty-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and wire the outbound event dispatcher
	handler := api.NewHandler(store)

	dispatcher := notify.New(cfg.UsersServiceURL, cfg.NotificationsService)
	handler.Engine.SetEventSink(dispatcher)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Loyalty engine listening on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Flush pending collaborator notifications before closing the store.
	dispatcher.Stop()

	log.Println("Server stopped")
}
