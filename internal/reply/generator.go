package reply

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mindpal/internal/domain"
	"mindpal/internal/llm"
)

const (
	DefaultFallback    = "I'm having trouble generating a response right now, please try again later."
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.3
	DefaultTopP        = 0.9

	thinkDelimiter = "</think>"
)

type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeFallback  Outcome = "fallback"
)

// Reply is the generator result. A fallback reply carries the configured
// fallback text, never an empty string.
type Reply struct {
	Text    string
	Outcome Outcome
}

func (r Reply) IsFallback() bool {
	return r.Outcome == OutcomeFallback
}

var errEmptyCompletion = errors.New("model returned an empty reply")

type GeneratorConfig struct {
	Model       string
	MaxTokens   int
	// Temperature defaults to DefaultTemperature when nil.
	Temperature *float64
	TopP        float64
	Fallback    string
}

type Generator struct {
	provider llm.Provider
	cfg      GeneratorConfig
	logger   *slog.Logger
}

func NewGenerator(provider llm.Provider, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	if cfg.TopP <= 0 {
		cfg.TopP = DefaultTopP
	}
	if strings.TrimSpace(cfg.Fallback) == "" {
		cfg.Fallback = DefaultFallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, cfg: cfg, logger: logger}
}

func (g *Generator) Fallback() string {
	return g.cfg.Fallback
}

// Generate makes exactly one provider call. Any failure is logged and turned
// into the fallback reply.
func (g *Generator) Generate(ctx context.Context, prompt string) Reply {
	start := time.Now()
	resp, err := g.provider.Complete(ctx, domain.LLMRequest{
		Model:       g.cfg.Model,
		Messages:    []domain.Message{{Role: "user", Content: prompt}},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	})
	if err == nil {
		if text := ExtractReply(resp.Content); text != "" {
			return Reply{Text: text, Outcome: OutcomeGenerated}
		}
		err = errEmptyCompletion
	}
	g.logger.Error("reply generation failed, using fallback",
		"model", g.cfg.Model,
		"error", err,
		"ms", time.Since(start).Milliseconds(),
	)
	return Reply{Text: g.cfg.Fallback, Outcome: OutcomeFallback}
}

// ExtractReply trims raw model output and drops everything up to the last
// reasoning delimiter.
func ExtractReply(raw string) string {
	if i := strings.LastIndex(raw, thinkDelimiter); i >= 0 {
		raw = raw[i+len(thinkDelimiter):]
	}
	return strings.TrimSpace(raw)
}
