// Package app assembles the chat pipeline from a ServerConfig. It is shared
// by mindpal-server and the chat command of mindpal-cli.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"mindpal/internal/chat"
	"mindpal/internal/config"
	"mindpal/internal/conversation"
	"mindpal/internal/db"
	"mindpal/internal/emotion"
	"mindpal/internal/llm"
	"mindpal/internal/pipeline"
	"mindpal/internal/reply"
	"mindpal/internal/slang"
	"mindpal/internal/strategy"
)

// NewClassifier returns the configured emotion backend wrapped in the
// configured output mode.
func NewClassifier(cfg config.ServerConfig) (emotion.Classifier, error) {
	var base emotion.Classifier
	switch cfg.EmotionBackend {
	case "lexical", "":
		base = emotion.NewLexicalClassifier()
	case "http":
		base = emotion.NewClient(cfg.EmotionServiceURL, cfg.EmotionTimeout)
	case "huggingface":
		base = emotion.NewHuggingFaceClient("", cfg.EmotionModel, cfg.HuggingFaceToken, cfg.EmotionTimeout)
	default:
		return nil, fmt.Errorf("unsupported emotion backend %q", cfg.EmotionBackend)
	}
	return emotion.WithMode(base, cfg.EmotionMode), nil
}

// NewSlangLoader returns nil when slang resolution is disabled.
func NewSlangLoader(cfg config.ServerConfig) slang.Loader {
	switch cfg.SlangSource {
	case "file":
		return slang.FileLoader{Path: cfg.SlangFile}
	case "huggingface":
		return slang.HuggingFaceLoader{Dataset: cfg.SlangHFDataset, Token: cfg.HuggingFaceToken}
	default:
		return nil
	}
}

// NewSelector puts the Redis cache in front of the store when REDIS_URL is
// set. An unreachable Redis is logged and the store is used directly.
func NewSelector(ctx context.Context, cfg config.ServerConfig, repo db.Repository, logger *slog.Logger) (strategy.Selector, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	store := strategy.NewStoreSelector(repo)
	if cfg.RedisURL == "" {
		return store, func() {}
	}
	client, err := strategy.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("strategy cache disabled", "error", err)
		return store, func() {}
	}
	logger.Info("strategy cache enabled", "ttl", cfg.StrategyCacheTTL)
	return strategy.NewCachedSelector(store, strategy.NewRedisCache(client), cfg.StrategyCacheTTL, logger), func() { _ = client.Close() }
}

// ClearStrategyCache drops cached strategy lists after a catalog seed. It is a
// no-op without a Redis URL.
func ClearStrategyCache(ctx context.Context, redisURL string, logger *slog.Logger) error {
	if redisURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := strategy.DialRedis(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("connect strategy cache: %w", err)
	}
	defer client.Close()

	n, err := strategy.Invalidate(ctx, strategy.NewRedisCache(client))
	if err != nil {
		return fmt.Errorf("clear strategy cache: %w", err)
	}
	logger.Info("strategy cache cleared", "keys", n)
	return nil
}

// BuildPipeline loads the slang lexicon and connects every pipeline stage.
// The returned cleanup releases the cache connection.
func BuildPipeline(ctx context.Context, cfg config.ServerConfig, repo db.Repository, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:         cfg.LLMProvider,
		GoogleAPIKey:     cfg.GoogleAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		Timeout:          cfg.LLMTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init llm provider: %w", err)
	}

	var resolver pipeline.SlangResolver
	if loader := NewSlangLoader(cfg); loader != nil {
		resolver = slang.NewResolver(slang.LoadOrEmpty(ctx, loader, logger))
	}

	selector, cleanup := NewSelector(ctx, cfg, repo, logger)

	temperature := cfg.LLMTemperature
	generator := reply.NewGenerator(provider, reply.GeneratorConfig{
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: &temperature,
		TopP:        cfg.LLMTopP,
	}, logger)

	p := pipeline.New(pipeline.Config{
		DetectOn: cfg.EmotionInput,
		Context: conversation.Window{
			MaxMessages: cfg.ChatHistoryLimit,
			MaxChars:    cfg.ContextMaxChars,
			Marker:      conversation.DefaultMarker,
		},
		UserWindow: conversation.Window{
			MaxMessages: cfg.EmotionWindowSize,
			MaxChars:    cfg.ContextMaxChars,
			Marker:      conversation.DefaultMarker,
		},
	}, pipeline.Deps{
		Slang:      resolver,
		Classifier: classifier,
		Strategies: selector,
		Composer:   reply.NewComposer(""),
		Generator:  generator,
	}, logger)
	return p, cleanup, nil
}

// NewChatService builds the pipeline and the calling layer around repo.
// publisher may be nil.
func NewChatService(ctx context.Context, cfg config.ServerConfig, repo db.Repository, publisher chat.EventPublisher, logger *slog.Logger) (*chat.Service, func(), error) {
	p, cleanup, err := BuildPipeline(ctx, cfg, repo, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := chat.New(chat.Config{
		HistoryLimit:      cfg.ChatHistoryLimit,
		UserWindowLimit:   cfg.EmotionWindowSize,
		AutoCreateSession: cfg.AutoCreateSession,
	}, repo, p, publisher, logger)
	return svc, cleanup, nil
}
