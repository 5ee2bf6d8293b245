// Package app wires the generation pipeline, storage and services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"quiztube/internal/adapter"
	"quiztube/internal/adapter/media"
	"quiztube/internal/adapter/quizgen"
	"quiztube/internal/adapter/transcriber"
	"quiztube/internal/cache"
	"quiztube/internal/config"
	"quiztube/internal/database"
	"quiztube/internal/logger"
	"quiztube/internal/repository"
	"quiztube/internal/service"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the long-lived components. Close releases them in reverse order.
type App struct {
	Config     *config.Config
	DB         *sqlx.DB
	Redis      *redis.Client
	Dispatcher *service.GenerationDispatcher
	Quizzes    service.QuizService
	Sessions   service.SessionService
}

// New connects to the database and Redis, runs migrations and starts the generation workers.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	if removed, err := media.SweepScratch(cfg.Media.ScratchDir, cfg.Media.SweepAge); err != nil {
		log.Warn("Failed to sweep scratch directory", zap.String("dir", cfg.Media.ScratchDir), zap.Error(err))
	} else if removed > 0 {
		log.Info("Removed stale scratch files", zap.Int("removed", removed))
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	llmClient, err := quizgen.NewClient(ctx, cfg.LLM)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	log.Info("LLM client initialized", zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))

	quizRepo := repository.NewQuizDatabaseAdapter(db)
	responseRepo := repository.NewResponseDatabaseAdapter(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	pipeline := service.NewGenerationPipeline(
		media.NewYouTubeFetcher(cfg.Media),
		transcriber.NewCachedTranscriber(transcriber.Shared(cfg.Transcription), cacheAdapter, cfg.CacheTTLs.Transcript, cfg.Pipeline.TranscribeTimeout),
		quizgen.NewSynthesizer(llmClient, cfg.LLM.MaxAttempts).WithNetworkRetries(cfg.LLM.NetworkRetries, cfg.LLM.RetryBackoff),
		quizRepo,
		txManager,
		cfg.Pipeline,
		log.Named("pipeline"),
	)
	dispatcher := service.NewGenerationDispatcher(pipeline, cacheAdapter, cfg, log.Named("dispatcher"))

	return &App{
		Config:     cfg,
		DB:         db,
		Redis:      redisClient,
		Dispatcher: dispatcher,
		Quizzes:    service.NewQuizService(quizRepo, dispatcher, cacheAdapter, cfg.CacheTTLs.QuizView),
		Sessions:   service.NewSessionService(quizRepo, responseRepo, txManager, cfg.Session, log.Named("session")),
	}, nil
}

// Close drains running generation jobs until ctx expires, then closes Redis and the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
	}
	if err := a.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}
