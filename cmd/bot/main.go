package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"quiztube/internal/app"
	"quiztube/internal/bot"
	"quiztube/internal/config"
	"quiztube/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	if cfg.Telegram.BotToken == "" {
		appLogger.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		appLogger.Fatal("Failed to create bot API", zap.Error(err))
	}
	api.Debug = cfg.Telegram.Debug
	appLogger.Info("Authorised on account", zap.String("username", api.Self.UserName))

	bot.New(api, components.Quizzes, components.Sessions, cfg.Pipeline.OverallTimeout).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := components.Close(shutdownCtx); err != nil {
		appLogger.Error("Failed to release resources", zap.Error(err))
	}
	appLogger.Info("Bot stopped")
}
