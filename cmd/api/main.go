package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truefeedback/feedback-system/internal/api"
	"github.com/truefeedback/feedback-system/internal/core/service"
	"github.com/truefeedback/feedback-system/internal/infrastructure/config"
	mongodb "github.com/truefeedback/feedback-system/internal/infrastructure/db/mongo"
	redisdb "github.com/truefeedback/feedback-system/internal/infrastructure/db/redis"
	"github.com/truefeedback/feedback-system/internal/infrastructure/email"
	"github.com/truefeedback/feedback-system/internal/infrastructure/queue"
	"github.com/truefeedback/feedback-system/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	userRepo := mongodb.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}

	sender := email.NewSMTPSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	resendMarker := redisdb.NewResendMarker(rdb)

	dispatcher := queue.NewDispatcher(cfg.Verify.Workers, sender, resendMarker, logger.WithComponent("resend-dispatcher"))
	dispatcher.Start(ctx)

	registrar := service.NewRegistrarService(
		userRepo, sender, dispatcher,
		cfg.JWTSecret, cfg.Verify.TokenTTL, cfg.Verify.CodeTTL,
		logger.WithComponent("registrar"),
	)
	messaging := service.NewMessagingService(userRepo, service.ContentPolicy{
		MinLength: cfg.Message.MinLength,
		MaxLength: cfg.Message.MaxLength,
	}, logger.WithComponent("messaging"))

	e := api.NewRouter(db, rdb, registrar, messaging, cfg.JWTSecret, log)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("server stopped cleanly")
}
