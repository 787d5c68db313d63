package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/scrimhub/config"
	"github.com/Dosada05/scrimhub/db"
	"github.com/Dosada05/scrimhub/gateway"
	"github.com/Dosada05/scrimhub/grouping"
	"github.com/Dosada05/scrimhub/handlers"
	"github.com/Dosada05/scrimhub/middleware"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
	api "github.com/Dosada05/scrimhub/routes"
	"github.com/Dosada05/scrimhub/services"
	"github.com/Dosada05/scrimhub/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

// @title scrimhub API
// @version 1.0
// @description Турниры, группы, комнаты и оплата взносов.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(rootCtx, dbConn); err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Redis (необязателен)
	var (
		locker  storage.Locker
		counter middleware.Counter
	)
	if cfg.RedisURL != "" {
		redisClient, err := storage.NewRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = storage.NewRedisLocker(redisClient)
		counter = middleware.NewRedisCounter(redisClient)
		logger.Info("redis connected")
	} else {
		locker = storage.NewLocalLocker()
		counter = middleware.NewMemoryCounter()
		logger.Warn("REDIS_URL not set, using in-process rate limits and locks")
	}

	// Архив комнат в Cloudflare R2 (необязателен)
	var archiver storage.RoomArchiver
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(rootCtx, r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewRoomArchiver(uploader, "")
		logger.Info("Cloudflare R2 room archive enabled")
	} else {
		logger.Warn("R2 not configured, deleted rooms are not archived")
	}

	// Платёжный шлюз (необязателен)
	var paymentGateway gateway.Gateway
	razorpayConfig := gateway.RazorpayConfig{KeyID: cfg.RazorpayKeyID, KeySecret: cfg.RazorpayKeySecret}
	if razorpayConfig.Enabled() {
		paymentGateway, err = gateway.NewRazorpayGateway(razorpayConfig)
		if err != nil {
			logger.Error("failed to initialize payment gateway", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("payment gateway enabled")
	} else {
		logger.Warn("RAZORPAY credentials not set, payments disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub(logger)
	go wsHub.Run(rootCtx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	roomRepo := repositories.NewPostgresRoomRepository(dbConn)
	messageRepo := repositories.NewPostgresMessageRepository(dbConn)
	paymentRepo := repositories.NewPostgresPaymentRepository(dbConn)
	transactor := repositories.NewPostgresTransactor(dbConn, logger)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(tournamentRepo, participantRepo, groupRepo, cfg.DefaultGroupSize, logger)
	participantService := services.NewParticipantService(participantRepo, tournamentRepo, groupRepo, transactor, wsHub, logger)
	groupService := services.NewGroupService(
		groupRepo,
		roomRepo,
		messageRepo,
		participantRepo,
		tournamentRepo,
		transactor,
		grouping.NewSequential(),
		archiver,
		wsHub,
		logger,
	)
	roomService := services.NewRoomService(roomRepo, messageRepo, groupRepo, tournamentRepo, archiver, wsHub, logger)
	paymentService := services.NewPaymentService(paymentRepo, participantRepo, tournamentRepo, transactor, paymentGateway, locker, logger)
	logger.Info("Services initialized")

	// Сверка зависших платежей
	if paymentGateway != nil {
		go runReconciler(rootCtx, paymentService, cfg.ReconcileInterval, logger)
	}

	// Инициализация обработчиков HTTP
	h := api.Handlers{
		Tournament:  handlers.NewTournamentHandler(tournamentService),
		Participant: handlers.NewParticipantHandler(participantService),
		Group:       handlers.NewGroupHandler(groupService, roomService),
		Room:        handlers.NewRoomHandler(roomService),
		Payment:     handlers.NewPaymentHandler(paymentService, cfg.RazorpayKeyID),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, roomService, tournamentService, logger),
	}
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, h, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Auth:           middleware.NewAuthenticator(cfg.JWTSecretKey, logger),
		MessageLimiter: middleware.NewRateLimiter(counter, cfg.MessageRateLimit, cfg.MessageRateWindow, "scrimhub:ratelimit:messages", logger),
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	// останавливает hub и планировщик
	cancelRoot()
	logger.Info("application exited")
}

func runReconciler(ctx context.Context, payments services.PaymentService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("payment reconciler started", slog.Duration("interval", interval))

	run := func() {
		result, err := payments.Reconcile(ctx)
		if err != nil {
			logger.Error("reconciler: run failed", slog.Any("error", err))
			return
		}
		if result.Skipped {
			logger.Debug("reconciler: another instance holds the lock")
			return
		}
		logger.Info("reconciler: run finished",
			slog.Int("checked", result.Checked),
			slog.Int("completed", result.Completed),
			slog.Int("failed", result.Failed),
			slog.Int("unchanged", result.Unchanged),
			slog.Int("errors", result.Errors))
	}

	// Run once immediately at startup, then on ticker
	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
