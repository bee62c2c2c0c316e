package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailsignal/mailsignal/api/handlers"
	"github.com/mailsignal/mailsignal/api/middleware"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, log logger.Logger, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())

	emailHandler := handlers.NewEmailHandler(s.EmailStore, s.SearchIndex, log)

	// Health check and status endpoints stay open
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.SyncService, s.ConnectionManager, s.Classifier, s.EmailStore))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	{
		emails := api.Group("/emails")
		{
			emails.GET("", emailHandler.List())
			emails.GET("/:id", emailHandler.Get())
			emails.PATCH("/:id", emailHandler.Update())
			emails.DELETE("/:id", emailHandler.Delete())
		}

		api.GET("/analytics", handlers.Analytics(s.EmailStore))
		api.POST("/sync", handlers.TriggerSync(s.SyncService))
	}
}
