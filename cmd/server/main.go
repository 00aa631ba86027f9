package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/internal/capability"
	"github.com/reelforge/api/internal/chain"
	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/consistency"
	"github.com/reelforge/api/internal/handler"
	"github.com/reelforge/api/internal/logging"
	"github.com/reelforge/api/internal/middleware"
	"github.com/reelforge/api/internal/orchestrator"
	"github.com/reelforge/api/internal/render"
	"github.com/reelforge/api/internal/routing"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
	ws "github.com/reelforge/api/internal/websocket"
	"github.com/reelforge/api/internal/worker"
	"github.com/reelforge/api/pkg/response"
)

const mockGenerationDelay = 2 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Capability registry
	registry, err := loadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("capability registry: %w", err)
	}
	log.Info("capability registry loaded",
		"models", len(registry.All()),
		"default", registry.DefaultModel().ID,
		"preview", registry.PreviewModel().ID,
	)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisUp := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisUp = false
		log.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
	}

	// Timeline storage
	timelineStore, pool, err := openStore(ctx, cfg, redisClient, redisUp)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	// Render jobs and the run guard live in Redis when it is reachable so
	// API and worker processes share them
	var jobStore render.JobStore = render.NewMemoryJobStore()
	var guard service.RunGuard = service.NewMemoryRunGuard()
	if redisUp {
		jobStore = store.NewRedisJobStore(redisClient)
		guard = service.NewRedisRunGuard(redisClient, service.RunGuardTTL)
	} else {
		log.Warn("render jobs and run guards are process local")
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	var storageClient client.StorageClient
	var frameStore chain.FrameStore
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			log.Warn("R2 client not initialized", "error", err)
		} else {
			storageClient = r2Client
			frameStore = r2Client
		}
	} else {
		log.Info("R2 storage not configured, frames stay inline")
	}

	// Frame chaining
	var frames orchestrator.FrameExtractor
	extractor := chain.NewFFmpegExtractor(&cfg.Frames)
	if extractor.IsConfigured() {
		frames = chain.NewEngine(extractor, frameStore, log)
	} else {
		log.Warn("ffmpeg not found, frame chaining disabled", "ffmpeg", cfg.Frames.FFmpegPath)
	}

	// Generation backend
	videoClient := client.NewVideoClient(&cfg.Generation, log)
	var generator orchestrator.Generator = videoClient
	if !videoClient.IsConfigured() {
		log.Warn("generation backend not configured, using mock generator")
		generator = client.NewMockGenerator(mockGenerationDelay)
	}

	orch := orchestrator.New(generator, registry, frames, log, orchestrator.Options{
		SegmentTimeout:     cfg.Generation.SegmentTimeout,
		PreviewConcurrency: cfg.Generation.PreviewConcurrency,
	})

	// Composition backend
	mediaClient := client.NewMediaClient(&cfg.Media)
	var composer render.Composer = mediaClient
	mediaLive := mediaClient.IsConfigured()
	if mediaLive && !cfg.IsProduction() {
		if err := mediaClient.HealthCheck(ctx); err != nil {
			log.Warn("media service unreachable", "url", cfg.Media.ServiceURL, "error", err)
			mediaLive = false
		}
	}
	if !mediaLive {
		log.Warn("using mock composer")
		composer = render.NewMockComposer("")
	}
	renderManager := render.NewManager(jobStore, composer, log)

	// Initialize services
	timelineService := service.NewTimelineService(
		timelineStore,
		registry,
		routing.NewEngine(registry, cfg.Registry.QualityTolerance),
		routing.NewSplitter(registry),
		consistency.NewChecker(),
		guard,
		log,
	)
	generationService := service.NewGenerationService(timelineService, asynqClient, guard, log)
	renderService := service.NewRenderService(timelineService, renderManager, asynqClient, log)
	uploadService := service.NewUploadService(storageClient)

	// Authentication: Zitadel JWKS first, legacy HMAC as fallback
	var verifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			log.Warn("JWKS verifier not initialized", "issuer", cfg.Zitadel.Issuer, "error", err)
		} else {
			verifier = jwksVerifier
			defer jwksVerifier.Close()
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, cfg.JWT.Secret)
	apiAuth := authMiddleware.Authenticate()
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Info("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
	}

	var limiterClient *redis.Client
	if redisUp {
		limiterClient = redisClient
	}
	rateLimiter := middleware.NewRateLimiter(limiterClient, log)

	// Health
	healthHandler := handler.NewHealthHandler(map[string]bool{
		"generation": videoClient.IsConfigured(),
		"media":      mediaLive,
		"r2":         r2Client != nil,
		"frames":     frames != nil,
		"auth":       authMiddleware.Configured() || cfg.Gateway.Enabled,
	})
	healthHandler.AddCheck("storage", timelineStore.Ping)
	healthHandler.AddCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	if mediaLive {
		healthHandler.AddCheck("media", mediaClient.HealthCheck)
	}

	validate := validator.New()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Register(app, handler.Handlers{
		Health:     healthHandler,
		Auth:       handler.NewAuthHandler(authMiddleware),
		Models:     handler.NewModelHandler(registry),
		Timelines:  handler.NewTimelineHandler(timelineService, validate),
		Generation: handler.NewGenerationHandler(generationService, validate),
		Render:     handler.NewRenderHandler(renderService),
		Upload:     handler.NewUploadHandler(uploadService, timelineService),
	}, handler.RouteOptions{
		Authenticate: apiAuth,
		Limiter:      rateLimiter,
		Limits:       cfg.RateLimit,
		Hub:          hub,
	})

	// Start Asynq worker server
	workerServer, err := startWorkerServer(cfg, log, timelineService, orch, guard, renderManager, hub)
	if err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "env", cfg.Server.Env, "storage", cfg.Storage.Driver)
	listenErr := app.Listen(addr)

	workerServer.Shutdown()
	return listenErr
}

func loadRegistry(cfg *config.Config) (*capability.Registry, error) {
	if cfg.Registry.File == "" {
		if cfg.Registry.DefaultModel == "" && cfg.Registry.PreviewModel == "" {
			return capability.NewDefault()
		}
		return capability.New(capability.Defaults(), capability.Options{
			DefaultModel: cfg.Registry.DefaultModel,
			PreviewModel: cfg.Registry.PreviewModel,
		})
	}
	return capability.LoadFile(cfg.Registry.File, capability.Options{
		DefaultModel: cfg.Registry.DefaultModel,
		PreviewModel: cfg.Registry.PreviewModel,
	})
}

// openStore returns the configured timeline store. The pool is non-nil only
// for the postgres driver.
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, redisUp bool) (store.TimelineStore, *pgxpool.Pool, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if err := store.RunMigrations(cfg.Storage.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := store.Connect(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(pool), pool, nil
	case config.StorageRedis:
		if !redisUp {
			return nil, nil, errors.New("storage driver redis requires a reachable redis")
		}
		return store.NewRedisStore(redisClient), nil, nil
	default:
		return store.NewMemoryStore(), nil, nil
	}
}

func startWorkerServer(
	cfg *config.Config,
	log *slog.Logger,
	timelines *service.TimelineService,
	orch *orchestrator.Orchestrator,
	guard service.RunGuard,
	renderManager *render.Manager,
	hub *ws.Hub,
) (*asynq.Server, error) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				service.QueueGeneration: 6,
				service.QueueRender:     4,
			},
			Logger:   logging.NewAsynqLogger(log),
			LogLevel: logging.AsynqLevel(cfg.Server.LogLevel),
		},
	)

	generationWorker := worker.NewGenerationWorker(timelines, orch, guard, hub, log)
	renderWorker := worker.NewRenderWorker(renderManager, hub, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerate, generationWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		return nil, err
	}
	return srv, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusUnauthorized:
		errCode = response.CodeUnauthorized
	case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
		errCode = response.CodeValidationError
	}
	return response.Error(c, code, errCode, message, nil)
}
