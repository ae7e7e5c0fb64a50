// @title           ProductShot Backend API
// @version         1.0.0
// @description     Backend API for AI product photography. Users upload a product photo and a model photo, a generative model composes a photorealistic e-commerce image, and an optional follow-up step animates it into a short showcase video. Generation is billed against a per-user credit balance; published projects appear in a public gallery.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"log"
	"net/http"
	"net/url"

	"productshot-backend/docs"
	"productshot-backend/internal/config"
	"productshot-backend/internal/database"
	"productshot-backend/internal/genai"
	"productshot-backend/internal/handlers"
	"productshot-backend/internal/middleware"
	"productshot-backend/internal/services"
	"productshot-backend/internal/supabase"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Error tracking is optional; CaptureException is a no-op without a DSN
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.Printf("Warning: Sentry initialization failed: %v", err)
		}
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required. Set it to your Supabase PostgreSQL connection string.")
	}

	// Initialize Gemini client
	genaiClient := genai.NewClient(cfg.GeminiAPIBaseURL, cfg.GeminiAPIKey, cfg.GeminiImageModel, cfg.GeminiVideoModel)

	// Initialize Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	// Run migrations
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	defer migrator.Close()
	if err := migrator.Run(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Initialize generation service
	generationService := services.NewGenerationService(
		genaiClient, dbClient, storageClient, realtimeClient,
		cfg.VideoPollInterval, cfg.VideoPollMaxAttempts,
	)

	// Initialize handlers
	projectsHandler := handlers.NewProjectsHandler(generationService, dbClient, storageClient)
	videoHandler := handlers.NewVideoHandler(generationService, dbClient)
	galleryHandler := handlers.NewGalleryHandler(dbClient)
	creditsHandler := handlers.NewCreditsHandler(dbClient)

	// Setup router
	router := gin.Default()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Public gallery (no auth)
	router.GET("/api/v1/projects/published", galleryHandler.ListPublished)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Project routes
	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.POST("/projects/:project_id/publish", projectsHandler.PublishProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	// Video generation
	api.POST("/projects/:project_id/video", videoHandler.GenerateVideo)
	api.GET("/projects/:project_id/status", videoHandler.GetStatus)

	// Credits
	api.GET("/credits", creditsHandler.GetCredits)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
