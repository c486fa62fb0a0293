package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ouralink/internal/config"
	"ouralink/internal/coordinator"
	"ouralink/internal/db"
	"ouralink/internal/handler"
	"ouralink/internal/history"
	"ouralink/internal/mqtt"
	"ouralink/internal/ouraapi"
	"ouralink/internal/router"
	"ouralink/internal/scheduler"
	"ouralink/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		sugar.Fatalw("open database", "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		sugar.Fatalw("run migrations", "error", err)
	}

	client := ouraapi.NewClient(ouraapi.Config{
		Token:   cfg.OuraToken,
		BaseURL: cfg.OuraBaseURL,
		Logger:  sugar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup connection check; a bad token should fail fast, not silently
	// poll forever.
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := client.PersonalInfo(checkCtx); err != nil {
		cancel()
		if ouraapi.IsAuthError(err) {
			sugar.Fatalw("oura token rejected", "error", err)
		}
		sugar.Warnw("oura connection check failed, continuing", "error", err)
	} else {
		cancel()
	}

	coord := coordinator.New(client, sugar, coordinator.Options{
		EnableInsights:    cfg.EnableInsights,
		EnablePredictions: cfg.EnablePredictions,
	})

	repo := history.NewRepository(database)

	sched := scheduler.New(coord, cfg.ScanInterval(), sugar)
	sched.SetArchiver(repo)

	var bridge *mqtt.Bridge
	if cfg.EnableMQTT {
		bridge, err = mqtt.NewBridge(mqtt.Config{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, sugar)
		if err != nil {
			sugar.Fatalw("connect mqtt", "error", err)
		}
		defer bridge.Close()
		sched.AddPublisher(bridge)
	}

	authService := service.NewAuthService(cfg.APIKey, cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handler.NewAuthHandler(authService)
	wellnessHandler := handler.NewWellnessHandler(coord)
	adminHandler := handler.NewAdminHandler(coord, client, repo)

	var webhookHandler *handler.WebhookHandler
	if cfg.EnableWebhooks {
		webhookHandler = handler.NewWebhookHandler(cfg.WebhookSecret, cfg.OuraUserID, sched, sugar)
	}

	sched.Start(ctx)
	defer sched.Stop()

	engine := router.New(authService, coord, authHandler, wellnessHandler, adminHandler, webhookHandler, cfg.CORSOrigins)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		sugar.Infow("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("run server", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server shutdown", "error", err)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
