package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"mindpal/internal/api"
	"mindpal/internal/app"
	"mindpal/internal/catalog"
	"mindpal/internal/chat"
	"mindpal/internal/config"
	"mindpal/internal/db"
	"mindpal/internal/logging"
	"mindpal/internal/mqtt"
)

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Error("load .env failed", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		bootLogger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		bootLogger.Error("init logger failed", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("connect db failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate db failed", "error", err)
		os.Exit(1)
	}

	if cfg.CatalogFile != "" {
		c, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			logger.Error("load catalog failed", "file", cfg.CatalogFile, "error", err)
			os.Exit(1)
		}
		if err := store.SeedCatalog(ctx, c); err != nil {
			logger.Error("seed catalog failed", "error", err)
			os.Exit(1)
		}
		logger.Info("catalog seeded", "emotions", len(c.Emotions), "strategies", len(c.Strategies))
		if err := app.ClearStrategyCache(ctx, cfg.RedisURL, logger); err != nil {
			logger.Warn("strategy cache may be stale until its ttl expires", "error", err)
		}
	}

	var publisher chat.EventPublisher
	if cfg.MQTTBrokerURL != "" {
		pub := mqtt.NewPublisher(mqtt.Config{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err := pub.Start(ctx); err != nil {
			logger.Error("start mqtt publisher failed", "error", err)
			os.Exit(1)
		}
		publisher = pub
		logger.Info("emotion events enabled", "broker", cfg.MQTTBrokerURL, "topic", mqtt.TopicEmotions(cfg.MQTTTopicPrefix))
	}

	chatSvc, cleanup, err := app.NewChatService(ctx, cfg, store, publisher, logger)
	if err != nil {
		logger.Error("init chat service failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(api.CORS(cfg.CORSOrigins))
	api.NewHandler(chatSvc, store, store, store, logger).RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("mindpal server started",
			"addr", cfg.HTTPAddr,
			"llm_provider", cfg.LLMProvider,
			"llm_model", cfg.LLMModel,
			"emotion_backend", cfg.EmotionBackend,
			"emotion_mode", cfg.EmotionMode,
			"emotion_input", cfg.EmotionInput,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
