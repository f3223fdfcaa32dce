package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"council-server/internal/config"
	delivery "council-server/internal/delivery/http"
	ws "council-server/internal/delivery/websocket"
	"council-server/internal/game"
	"council-server/internal/repository"
	"council-server/internal/service"
	"council-server/pkg/ai"
	"council-server/pkg/database"
	"council-server/pkg/logger"
	"council-server/pkg/migration"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// В production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Хранилище: postgres для production, memory для dev и тестов.
	store, closeStore, err := initStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to init storage", zap.Error(err))
	}
	defer closeStore()

	// Клиент генерации сценариев
	aiClient, err := ai.New(ai.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		ModelName:  cfg.AI.Model,
		Timeout:    cfg.AI.AITimeout(),
		MaxRetries: cfg.AI.MaxAttempts,
	})
	if err != nil {
		log.Fatal("failed to init AI client", zap.Error(err))
	}

	// Ядро: реестр сессий
	registry := game.NewRegistry(store, log)

	// Realtime-слой
	hub := ws.NewHub(log)
	hub.Start()
	timerCoordinator := ws.NewTimerCoordinator(log)

	// Сервисы
	incentiveService := service.NewIncentiveService(registry, store, aiClient, log)
	gameService := service.NewGameService(registry, aiClient, hub, timerCoordinator, incentiveService, log)
	outcomeService := service.NewOutcomeService(registry, aiClient, hub, log)

	// Разрыв циклов инициализации: hub -> service и timer -> service
	hub.SetHandler(gameService)
	timerCoordinator.SetOnExpire(func(sessionID string) {
		gameService.ForceAdvance(context.Background(), sessionID)
	})

	// HTTP-слой
	httpHandler := delivery.NewHandler(gameService, outcomeService, incentiveService, log)
	wsHandler := ws.NewHandler(hub, log)
	router := delivery.NewRouter(httpHandler, wsHandler, cfg.CORS.Origins())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info("starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	gracefulShutdown(server, log)
}

// initStore выбирает и инициализирует бэкенд хранения. Для postgres
// дополнительно применяются встроенные миграции схемы.
func initStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	if cfg.Storage.Backend == "memory" {
		log.Info("using in-memory storage")
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.GetDSN(),
		MaxConns: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, nil, err
	}

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: repository.MigrationsPath,
		MigrationsFS:   repository.MigrationsFS(),
	}, db.Pool)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	log.Info("using postgres storage")
	return repository.NewPgStore(db.Pool, log), db.Close, nil
}

// gracefulShutdown ожидает сигнал завершения и останавливает сервер.
func gracefulShutdown(server *http.Server, log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
