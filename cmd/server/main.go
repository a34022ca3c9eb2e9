package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/api/handlers"
	"github.com/maheshrc27/reelflow/internal/api/middleware"
	"github.com/maheshrc27/reelflow/internal/graph"
	"github.com/maheshrc27/reelflow/internal/igerror"
	job "github.com/maheshrc27/reelflow/internal/jobs"
	"github.com/maheshrc27/reelflow/internal/queue"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load configuration", err)
	}
	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := repository.Open(ctx, cfg.PostgresURI)
	cancel()
	if err != nil {
		fatal("database is unreachable", err)
	}
	defer closeDB(db)

	if err := repository.Migrate(db); err != nil {
		fatal("failed to apply migrations", err)
	}

	rdb, err := job.NewRedisClient(cfg.RedisURI)
	if err != nil {
		fatal("redis is unreachable", err)
	}
	defer rdb.Close()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		fatal("invalid redis URI for asynq", err)
	}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	policy := cfg.Policy
	retryPolicy := igerror.NewPolicy(policy.BaseDelays, policy.MaxRetryDelay)

	graphClient := graph.NewClient(cfg.GraphAPIBaseURL,
		graph.WithTokenBaseURL(cfg.InstagramAPIBaseURL),
		graph.WithPolling(policy.PollInterval, policy.MaxPollAttempts),
		graph.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		graph.WithLogger(slog.Default().With("component", "graph")),
	)

	r2Service := service.NewR2Service(*cfg)
	assetService := service.NewAssetService(r2Service, &http.Client{Timeout: 15 * time.Second}, policy.PreflightEnabled)
	credentialService := service.NewCredentialService(*cfg, credentialRepo)
	notificationService := service.NewNotificationService(notificationRepo)
	lifecycleService := service.NewLifecycleService(postRepo, videoRepo, notificationService, retryPolicy)

	scheduler := job.NewPublishScheduler(
		videoRepo,
		postRepo,
		credentialService,
		assetService,
		lifecycleService,
		graphClient,
		policy,
		job.NewRedisLocker(rdb),
		slog.Default().With("component", "scheduler"),
	)
	refreshTokenJob := job.NewTokenRefreshJob(
		credentialService,
		notificationService,
		graphClient,
		policy,
		slog.Default().With("component", "token-refresh"),
	)

	//queue
	queueW := queue.NewQueue(client, inspector, scheduler, slog.Default().With("component", "queue"))
	postService := service.NewPostService(postRepo, videoRepo, credentialService, queueW)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	cronRoutes := api.Group("/cron", authMiddleware.CronAuth())
	cronH := handlers.NewCronHandler(scheduler)
	cronRoutes.Get("/publish-scheduled", cronH.PublishScheduled)
	cronRoutes.Get("/retry-failed", cronH.RetryFailed)

	instagram := api.Group("/instagram", authMiddleware.AuthMiddleware())
	post := handlers.NewPostHandler(postService)
	instagram.Get("/posts", post.ListPosts)
	instagram.Get("/posts/:id", post.GetPost)
	instagram.Post("/publish", post.Publish)

	c := cron.New()
	mustAddFunc(c, policy.PublishSchedule, scheduler.PublishScheduledPosts)
	mustAddFunc(c, policy.RetrySchedule, scheduler.RetryFailedPosts)
	mustAddFunc(c, policy.TokenRefreshSchedule, refreshTokenJob.RefreshTokens)
	c.Start()
	defer c.Stop()

	// one task at a time so manual publishes never run alongside each other
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
	})
	mux := asynq.NewServeMux()
	queueW.Register(mux)

	go func() {
		slog.Info("starting the asynq server")
		if err := server.Run(mux); err != nil {
			fatal("could not start asynq server", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			fatal("failed to start server", err)
		}
	}()
	slog.Info("server is running", "addr", cfg.ListenAddr)

	gracefulShutdown(app, server)
}

func setupLogger(level string) {
	lvl := slog.LevelInfo
	if level == "debug" {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
	})))
}

func mustAddFunc(c *cron.Cron, spec string, fn func()) {
	if err := c.AddFunc(spec, fn); err != nil {
		fatal("invalid cron schedule "+spec, err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func closeDB(db *sqlx.DB) {
	slog.Info("closing database connection")
	if err := db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	server.Shutdown()

	slog.Info("server shutdown complete")
}
