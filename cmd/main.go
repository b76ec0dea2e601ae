package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ideaforge/ideaforge-backend/internal/clients/redis"
	"github.com/ideaforge/ideaforge-backend/internal/db"
	"github.com/ideaforge/ideaforge-backend/internal/handlers"
	"github.com/ideaforge/ideaforge-backend/internal/jobs"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/middleware"
	"github.com/ideaforge/ideaforge-backend/internal/observability"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/server"
	"github.com/ideaforge/ideaforge-backend/internal/services"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/utils"
)

const serviceName = "ideaforge-backend"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	workerConcurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 2, log)

	// Tracing
	ctx := context.Background()
	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownTracing != nil {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Warn("Tracing shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	ideaRepo := repos.NewIdeaRepo(thePG, log)
	reportRepo := repos.NewValidationReportRepo(thePG, log)
	artifactRepo := repos.NewArtifactRepo(thePG, log)
	teamRepo := repos.NewTeamRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	featureRepo := repos.NewFeatureRepo(thePG, log)
	milestoneRepo := repos.NewMilestoneRepo(thePG, log)
	issueRepo := repos.NewIssueRepo(thePG, log)
	runRepo := repos.NewGenerationRunRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	var sseBus redis.SSEBus
	if os.Getenv("REDIS_ADDR") != "" {
		bus, err := redis.NewSSEBus(log)
		if err != nil {
			log.Warn("Could not init Redis SSE bus, using local hub only", "error", err)
		} else {
			sseBus = bus
			if err := sseBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
				log.Warn("Could not start Redis SSE forwarder", "error", err)
			}
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	notifier := services.NewNotifier(log, sseHub, sseBus)
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	aiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	renderService := services.NewRenderService(log)
	allocator := services.NewIdentifierAllocator(log, teamRepo, featureRepo, issueRepo)
	ideaService := services.NewIdeaService(log, thePG, ideaRepo, reportRepo, artifactRepo, aiClient, notifier)
	validationService := services.NewValidationService(log, thePG, ideaService, reportRepo, runRepo, aiClient)
	documentService := services.NewDocumentService(log, thePG, ideaService, artifactRepo, reportRepo, runRepo, aiClient, renderService, bucketService, notifier)
	blueprintService := services.NewBlueprintService(log, thePG, ideaService, reportRepo, artifactRepo, aiClient)
	materializerService := services.NewMaterializerService(log, thePG, ideaService, artifactRepo, teamRepo, projectRepo, featureRepo, milestoneRepo, issueRepo, allocator)
	featureService := services.NewFeatureService(log, thePG, featureRepo)

	// Jobs
	log.Info("Setting up job worker from main...")
	registry := jobs.NewRegistry()
	if err := registry.Register(&jobs.ValidationGenerateHandler{Validation: validationService}); err != nil {
		log.Error("Could not register validation handler", "error", err)
		os.Exit(1)
	}
	if err := registry.Register(&jobs.DocumentGenerateHandler{Documents: documentService}); err != nil {
		log.Error("Could not register document handler", "error", err)
		os.Exit(1)
	}
	worker := jobs.NewWorker(thePG, log, runRepo, registry, notifier, workerConcurrency)
	worker.Start(ctx)

	// Handlers
	log.Info("Setting up handlers from main...")
	ideaHandler := handlers.NewIdeaHandler(ideaService, validationService, blueprintService, materializerService)
	documentHandler := handlers.NewDocumentHandler(documentService)
	featureHandler := handlers.NewFeatureHandler(featureService)
	runHandler := handlers.NewGenerationRunHandler(runRepo)
	sseHandler := handlers.NewSSEHandler(sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:       authMiddleware,
		IdeaHandler:          ideaHandler,
		DocumentHandler:      documentHandler,
		FeatureHandler:       featureHandler,
		GenerationRunHandler: runHandler,
		SSEHandler:           sseHandler,
		ServiceName:          serviceName,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
