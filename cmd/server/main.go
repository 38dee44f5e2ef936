package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"advisorjournal/internal/config"
	"advisorjournal/internal/crypto"
	"advisorjournal/internal/database"
	"advisorjournal/internal/handlers"
	"advisorjournal/internal/jobs"
	"advisorjournal/internal/logging"
	"advisorjournal/internal/middleware"
	"advisorjournal/internal/preflight"
	"advisorjournal/internal/repository"
	"advisorjournal/internal/services"
	"advisorjournal/pkg/auth"
)

// stores groups the repositories the services depend on
type stores struct {
	entries    services.EntryRepository
	goals      services.GoalRepository
	deadlines  services.DeadlineRepository
	attributes services.AttributeRepository
	summit     services.SummitRepository
	settings   services.SettingsRepository
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Advisor Journal Server...")

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s, Timezone: %s)", cfg.Port, cfg.Environment, cfg.Timezone)

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// MongoDB (optional in development: falls back to in-memory storage)
	var mongoDB *database.MongoDB
	var repos stores
	if cfg.MongoDBURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		var err error
		mongoDB, err = database.NewMongoDB(cfg.MongoDBURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		if err := mongoDB.Initialize(rootCtx); err != nil {
			log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
		}
		repos = stores{
			entries:    repository.NewEntryRepository(mongoDB),
			goals:      repository.NewGoalRepository(mongoDB),
			deadlines:  repository.NewDeadlineRepository(mongoDB),
			attributes: repository.NewAttributeRepository(mongoDB),
			summit:     repository.NewSummitRepository(mongoDB),
			settings:   repository.NewSettingsRepository(mongoDB),
		}
	} else {
		if cfg.IsProduction() {
			log.Fatal("❌ MONGODB_URI is required in production")
		}
		log.Println("⚠️ MONGODB_URI not set - using in-memory storage (data is lost on restart)")
		mem := repository.NewMemoryStore()
		repos = stores{entries: mem, goals: mem, deadlines: mem, attributes: mem, summit: mem, settings: mem}
	}

	// Redis (optional: cross-instance progress events and reset locks)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		var err error
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (falling back to in-process events and locks)", err)
			redisService = nil
		}
	}

	var notifier services.ProgressNotifier
	var subscriber services.ProgressSubscriber
	var locker jobs.Locker
	if redisService != nil {
		redisNotifier := services.NewRedisProgressNotifier(redisService)
		notifier, subscriber, locker = redisNotifier, redisNotifier, redisService
	} else {
		localNotifier := services.NewLocalProgressNotifier()
		notifier, subscriber, locker = localNotifier, localNotifier, jobs.NewLocalLocker()
	}

	// Pre-flight checks
	deps := []preflight.Dependency{{Name: "MongoDB", Required: cfg.IsProduction()}}
	if mongoDB != nil {
		deps[0].Pinger = mongoDB
	}
	if redisService != nil {
		deps = append(deps, preflight.Dependency{Name: "Redis", Pinger: redisService})
	}
	if results := preflight.NewChecker(cfg, deps...).RunAll(rootCtx); preflight.HasFailures(results) {
		log.Fatal("❌ Pre-flight checks failed, refusing to start")
	}

	// Encryption of stored API keys
	var encryptionService *crypto.EncryptionService
	masterKey := cfg.EncryptionMasterKey
	if masterKey == "" && !cfg.IsProduction() {
		generated, err := crypto.GenerateMasterKey()
		if err != nil {
			log.Fatalf("❌ Failed to generate master key: %v", err)
		}
		masterKey = generated
		log.Println("⚠️ ENCRYPTION_MASTER_KEY not set - using an ephemeral key, stored API keys will not survive a restart")
	}
	if masterKey != "" {
		var err error
		encryptionService, err = crypto.NewEncryptionService(masterKey)
		if err != nil {
			log.Fatalf("❌ Failed to initialize encryption: %v", err)
		}
		log.Println("✅ Encryption service initialized")
	}

	// Advisor roster, hot-reloaded when loaded from a file
	roster := services.DefaultAdvisorRoster()
	if cfg.AdvisorProfilesPath != "" {
		var err error
		roster, err = services.NewAdvisorRoster(cfg.AdvisorProfilesPath)
		if err != nil {
			log.Fatalf("❌ Failed to load advisor roster: %v", err)
		}
		go roster.Watch(rootCtx)
	}
	log.Printf("✅ Advisor roster loaded: %s", strings.Join(roster.IDs(), ", "))

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)

	gateway := services.NewOpenRouterGateway(services.GatewayOptions{
		BaseURL:       cfg.LLMBaseURL,
		Referer:       cfg.AppReferer,
		Title:         cfg.AppTitle,
		Timeout:       cfg.LLMHTTPTimeout,
		RatePerSecond: cfg.LLMRatePerSecond,
		RateBurst:     cfg.LLMRateBurst,
		Metrics:       metrics,
	})
	log.Printf("✅ Model gateway ready (%s)", cfg.LLMBaseURL)

	// Services
	settingsService := services.NewSettingsService(repos.settings, encryptionService, roster, cfg.DefaultPrimaryModel, cfg.DefaultUtilityModel)
	memoryService := services.NewAttributeMemoryService(repos.attributes, gateway, cfg.AttributeCapacity, metrics)
	aggregator := services.NewContextAggregator(repos.deadlines, repos.goals, memoryService, cfg.RelevantAttributeLimit, cfg.Timezone)
	journalService := services.NewJournalService(services.JournalDependencies{
		Entries:         repos.entries,
		Turns:           repos.summit,
		Goals:           repos.goals,
		Feedback:        services.NewAdvisorFeedbackService(gateway, roster, aggregator, metrics),
		Progress:        services.NewGoalProgressService(gateway),
		Extractor:       services.NewAttributeExtractionService(gateway),
		Memory:          memoryService,
		Notifier:        notifier,
		GoalConcurrency: cfg.GoalEvalConcurrency,
		Metrics:         metrics,
	})
	summitService := services.NewSummitService(gateway, roster, repos.entries, repos.summit, metrics)
	plannerService := services.NewPlannerService(repos.goals, repos.deadlines)

	// Background jobs
	weeklyReset := jobs.NewWeeklyGoalResetJob(repos.goals, repos.settings, locker, cfg.Timezone)
	jobScheduler, err := jobs.NewJobScheduler(cfg.Timezone)
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register(jobs.WeeklyGoalResetJobName, cfg.WeeklyResetCron, weeklyReset); err != nil {
		log.Fatalf("❌ Failed to register weekly reset: %v", err)
	}
	jobScheduler.Start()

	// Authentication
	var jwtAuth *auth.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewJWTAuth(cfg.JWTSecret, time.Hour)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT authentication enabled")
	} else {
		log.Printf("⚠️ JWT_SECRET not set - all requests run as %q (development mode only)", middleware.DevUserID)
	}

	app := fiber.New(fiber.Config{
		AppName: "Advisor Journal v1.0",
		// Model calls are never aborted, so a request may wait on a slow model
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  5 * time.Minute,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	fiberMetrics := fiberprometheus.New("advisorjournal")
	fiberMetrics.RegisterAt(app, "/metrics")
	app.Use(fiberMetrics.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/min, Generation=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.GenerationMax,
		rateLimitConfig.WebSocketMax,
	)

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Health check (public)
	pingers := map[string]handlers.Pinger{"mongodb": nil, "redis": nil}
	if mongoDB != nil {
		pingers["mongodb"] = mongoDB
	}
	if redisService != nil {
		pingers["redis"] = redisService
	}
	app.Get("/health", handlers.NewHealthHandler(pingers).Handle)

	journalHandler := handlers.NewJournalHandler(journalService, settingsService)
	summitHandler := handlers.NewSummitHandler(summitService, settingsService)
	attributeHandler := handlers.NewAttributeHandler(memoryService)
	contextHandler := handlers.NewContextHandler(aggregator, settingsService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, roster)
	sessionHandler := handlers.NewSessionHandler(weeklyReset)
	plannerHandler := handlers.NewPlannerHandler(plannerService)
	progressHandler := handlers.NewProgressStreamHandler(subscriber)

	generationLimiter := middleware.GenerationRateLimiter(rateLimitConfig)

	api := app.Group("/api/v1",
		middleware.AuthMiddleware(jwtAuth, cfg.Environment),
		middleware.AuthenticatedRateLimiter(rateLimitConfig),
	)

	// Journal
	api.Post("/entries", generationLimiter, journalHandler.CreateEntry)
	api.Get("/entries", journalHandler.ListEntries)
	api.Get("/entries/:id", journalHandler.GetEntry)
	api.Delete("/entries/:id", journalHandler.DeleteEntry)

	// Summit
	api.Get("/entries/:id/summit", summitHandler.GetTranscript)
	api.Post("/entries/:id/summit", generationLimiter, summitHandler.PostMessage)

	// Attribute memory
	api.Get("/attributes", attributeHandler.List)
	api.Delete("/attributes/:id", attributeHandler.Delete)
	api.Get("/context/preview", contextHandler.Preview)

	// Settings and session
	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings", settingsHandler.Update)
	api.Post("/session/start", sessionHandler.Start)

	// Planner
	api.Post("/goals", plannerHandler.CreateGoal)
	api.Get("/goals", plannerHandler.ListGoals)
	api.Put("/goals/:id", plannerHandler.UpdateGoal)
	api.Delete("/goals/:id", plannerHandler.DeleteGoal)
	api.Put("/goals/:id/completion", plannerHandler.SetCompletion)
	api.Post("/deadlines", plannerHandler.CreateDeadline)
	api.Get("/deadlines", plannerHandler.ListDeadlines)
	api.Put("/deadlines/:id/status", plannerHandler.SetDeadlineStatus)
	api.Delete("/deadlines/:id", plannerHandler.DeleteDeadline)

	// Goal-progress push (WebSocket, token may be passed as ?token=)
	app.Use("/ws", progressHandler.Upgrade)
	app.Use("/ws/goal-progress", middleware.AuthMiddleware(jwtAuth, cfg.Environment))
	app.Use("/ws/goal-progress", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Get("/ws/goal-progress", websocket.New(progressHandler.Handle, websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}))

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🎯 Goal progress stream: ws://localhost:%s/ws/goal-progress", cfg.Port)
	log.Printf("🕐 Background jobs: weekly goal reset (%s, %s)", cfg.WeeklyResetCron, cfg.Timezone)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		// Stop accepting requests first so no new entries start background work
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		log.Println("⏳ Waiting for in-flight entry processing...")
		journalService.Wait()
		stopRoot()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	// Listen returns once Shutdown completes; wait for the drain above
	<-rootCtx.Done()

	if mongoDB != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongoDB.Close(closeCtx); err != nil {
			log.Printf("⚠️ Error closing MongoDB: %v", err)
		}
		cancel()
	}
	if redisService != nil {
		if err := redisService.Close(); err != nil {
			log.Printf("⚠️ Error closing Redis: %v", err)
		}
	}
	log.Println("✅ Server stopped")
}
