/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and manages
core service dependencies like the database and the assistant.
*/
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"foodie/internal/assistant"
	"foodie/internal/database"
	"foodie/internal/tracker"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db provides access to the database service and connection pool.
	db database.Service

	// tracker holds the API handlers with their wired dependencies.
	tracker *tracker.Handler

	// startTime feeds the uptime figure in the system health report.
	startTime time.Time
}

// NewServer initializes a new Server instance and returns a configured
// *http.Server. It reads configuration from environment variables and
// sets production-ready network timeouts.
func NewServer(db database.Service) *http.Server {
	// Attempt to parse port from environment; fallback to 8080 if not set or invalid.
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}

	cfg := assistant.LoadConfigFromEnv()
	chat := assistant.New(cfg)
	if !chat.Available() {
		log.Warn().Msg("OPENROUTER_API_KEY not set; assistant endpoints will report unavailable")
	}

	sessions, err := assistant.NewSessionManager()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat session manager")
	}

	newApp := &Server{
		port:      port,
		db:        db,
		tracker:   tracker.NewHandler(db.Queries(), chat, sessions),
		startTime: time.Now(),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,             // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second,        // Maximum duration for reading the entire request.
		WriteTimeout: 35 * time.Second,        // Must exceed the assistant's provider timeout.
	}

	return server
}
