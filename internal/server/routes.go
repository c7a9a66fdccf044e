package server

import (
	"net/http"

	"foodie/internal/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Platform"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", s.healthHandler)
	e.GET("/health/system", s.systemHealthHandler)

	e.Use(LoggerMiddleware)

	// Protected routes
	protected := e.Group("")
	protected.Use(auth.JwtAuthMiddleware)

	// Profile & goals
	protected.GET("/profile", s.tracker.GetProfileHandler)
	protected.PUT("/profile", s.tracker.UpsertProfileHandler)

	// Daily tracking
	protected.POST("/logs/weight", s.tracker.CreateWeightLogHandler)
	protected.GET("/logs/weight", s.tracker.GetWeightLogsHandler)
	protected.POST("/logs/food", s.tracker.CreateFoodEntryHandler)
	protected.GET("/logs/food", s.tracker.GetFoodEntriesHandler)
	protected.GET("/adaptations", s.tracker.GetAdaptationsHandler)

	// Conversational assistant
	protected.POST("/assistant/chat", s.tracker.ChatHandler)
	protected.GET("/assistant/status", s.tracker.ChatStatusHandler)
	protected.GET("/assistant/greeting", s.tracker.ChatGreetingHandler)
	protected.GET("/assistant/prompts", s.tracker.ChatPromptsHandler)
	protected.POST("/assistant/reset", s.tracker.ChatResetHandler)

	return e
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.db.Health())
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
