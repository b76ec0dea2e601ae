package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ideaforge/ideaforge-backend/internal/handlers"
	"github.com/ideaforge/ideaforge-backend/internal/middleware"
	"github.com/ideaforge/ideaforge-backend/internal/utils"
)

type RouterConfig struct {
	AuthMiddleware       *middleware.AuthMiddleware
	IdeaHandler          *handlers.IdeaHandler
	DocumentHandler      *handlers.DocumentHandler
	FeatureHandler       *handlers.FeatureHandler
	GenerationRunHandler *handlers.GenerationRunHandler
	SSEHandler           *handlers.SSEHandler
	ServiceName          string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.AttachTraceContext())

	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5174", nil), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// SSE
	api.GET("/sse/stream", cfg.SSEHandler.Stream)

	// Ideas
	api.POST("/ideas", cfg.IdeaHandler.Submit)
	api.GET("/ideas", cfg.IdeaHandler.List)
	api.GET("/ideas/:id", cfg.IdeaHandler.Get)
	api.POST("/ideas/:id/clarifications", cfg.IdeaHandler.AnswerClarifications)
	api.POST("/ideas/:id/validate", cfg.IdeaHandler.Validate)
	api.GET("/ideas/:id/validation", cfg.IdeaHandler.GetValidation)
	api.POST("/ideas/:id/validation/regenerate", cfg.IdeaHandler.RegenerateValidationField)
	api.POST("/ideas/:id/blueprint", cfg.IdeaHandler.GenerateBlueprint)
	api.POST("/ideas/:id/convert", cfg.IdeaHandler.Convert)

	// Documents
	api.POST("/ideas/:id/documents/:type/questions", cfg.DocumentHandler.GetQuestions)
	api.POST("/ideas/:id/documents/:type", cfg.DocumentHandler.Generate)
	api.POST("/ideas/:id/documents/:type/chat", cfg.DocumentHandler.Chat)
	api.POST("/ideas/:id/documents/:type/section", cfg.DocumentHandler.RegenerateSection)
	api.GET("/ideas/:id/documents/:type/links", cfg.DocumentHandler.Links)

	// Features
	api.GET("/features/:id", cfg.FeatureHandler.Get)
	api.PATCH("/features/:id", cfg.FeatureHandler.Update)
	api.PATCH("/features/:id/status", cfg.FeatureHandler.UpdateStatus)

	// Generation runs
	api.GET("/generation-runs/:id", cfg.GenerationRunHandler.Get)

	return router
}
