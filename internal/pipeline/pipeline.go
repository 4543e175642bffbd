// Package pipeline turns one chat message into a reply: normalize, resolve
// slang, classify emotion, look up strategies, compose the prompt, generate.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mindpal/internal/conversation"
	"mindpal/internal/domain"
	"mindpal/internal/emotion"
	"mindpal/internal/reply"
	"mindpal/internal/textnorm"
)

type SlangResolver interface {
	Resolve(text string) string
}

// StrategySource looks up coping strategies for a top emotion label.
type StrategySource interface {
	ForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error)
}

type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) reply.Reply
}

type Config struct {
	DetectOn   EmotionInput
	Context    conversation.Window
	UserWindow conversation.Window
}

type Deps struct {
	Slang      SlangResolver
	Classifier emotion.Classifier
	Strategies StrategySource
	Composer   *reply.Composer
	Generator  ReplyGenerator
}

// Input is one turn. History is chronological and already bounded by the
// caller; UserTexts holds the caller's recent user-only texts, oldest first.
type Input struct {
	Message   string
	History   []domain.Utterance
	UserTexts []string
}

type Result struct {
	Reply          reply.Reply
	Prediction     domain.EmotionPrediction
	TopEmotion     string
	Strategies     []domain.CopingStrategy
	NormalizedText string
	ResolvedText   string
	Prompt         string
}

// Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Pipeline {
	if cfg.DetectOn == "" {
		cfg.DetectOn = InputMessage
	}
	if cfg.Context == (conversation.Window{}) {
		cfg.Context = conversation.DefaultWindow()
	}
	if cfg.UserWindow == (conversation.Window{}) {
		cfg.UserWindow = conversation.DefaultUserWindow()
	}
	if deps.Composer == nil {
		deps.Composer = reply.NewComposer("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger}
}

// Chat runs every stage in order. Classification and strategy lookup errors
// abort the turn with a *StageError; generation errors yield the fallback
// reply instead.
func (p *Pipeline) Chat(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(in.Message) == "" {
		return Result{}, &StageError{Stage: StageReceived, Err: ErrEmptyMessage}
	}
	var res Result

	t := time.Now()
	res.NormalizedText = textnorm.Normalize(in.Message)
	res.ResolvedText = res.NormalizedText
	if p.deps.Slang != nil {
		res.ResolvedText = p.deps.Slang.Resolve(res.NormalizedText)
	}
	textDur := time.Since(t)

	t = time.Now()
	emotionText := res.ResolvedText
	if p.cfg.DetectOn == InputWindow {
		if window := p.cfg.UserWindow.UserWindow(in.UserTexts); window != "" {
			emotionText = window
		}
	}
	pred, err := p.deps.Classifier.Classify(ctx, emotionText)
	if err != nil {
		return Result{}, &StageError{Stage: StageEmotionDetected, Err: err}
	}
	top, ok := pred.Top()
	if !ok {
		return Result{}, &StageError{Stage: StageEmotionDetected, Err: emotion.ErrNoLabels}
	}
	res.Prediction = pred
	res.TopEmotion = top.Label
	emotionDur := time.Since(t)

	t = time.Now()
	strategies, err := p.deps.Strategies.ForEmotion(ctx, res.TopEmotion)
	if err != nil {
		return Result{}, &StageError{Stage: StageStrategiesResolved, Err: err}
	}
	res.Strategies = strategies
	strategyDur := time.Since(t)

	res.Prompt = p.deps.Composer.Compose(reply.Request{
		Message:    res.ResolvedText,
		Emotions:   pred.Ranked,
		Context:    p.cfg.Context.Context(in.History),
		Strategies: strategies,
	})

	t = time.Now()
	res.Reply = p.deps.Generator.Generate(ctx, res.Prompt)
	generateDur := time.Since(t)

	p.logger.Info("pipeline timing",
		"emotion", res.TopEmotion,
		"strategies", len(res.Strategies),
		"outcome", string(res.Reply.Outcome),
		"text_ms", textDur.Milliseconds(),
		"emotion_ms", emotionDur.Milliseconds(),
		"strategy_ms", strategyDur.Milliseconds(),
		"generate_ms", generateDur.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
