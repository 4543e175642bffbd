// Package chat is the calling layer around the pipeline: it persists each
// turn and feeds the pipeline the recent history of the session.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindpal/internal/domain"
	"mindpal/internal/pipeline"
)

const (
	defaultHistoryLimit    = 20
	defaultUserWindowLimit = 3
)

// Store is the slice of db.Repository the service needs.
type Store interface {
	EnsureSession(ctx context.Context, sessionID string, create bool) error
	SaveMessage(ctx context.Context, sessionID string, u domain.Utterance) (string, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Utterance, error)
	RecentChildMessages(ctx context.Context, sessionID string, limit int) ([]string, error)
}

type Runner interface {
	Chat(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

type EventPublisher interface {
	PublishEmotion(ctx context.Context, ev domain.EmotionEvent) error
}

type Config struct {
	HistoryLimit    int
	UserWindowLimit int
	// AutoCreateSession inserts unknown session ids instead of failing with
	// db.ErrSessionNotFound.
	AutoCreateSession bool
}

type Service struct {
	cfg       Config
	store     Store
	runner    Runner
	publisher EventPublisher
	logger    *slog.Logger
}

// New builds the service. publisher may be nil.
func New(cfg Config, store Store, runner Runner, publisher EventPublisher, logger *slog.Logger) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.UserWindowLimit <= 0 {
		cfg.UserWindowLimit = defaultUserWindowLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) HandleChat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	chatStart := time.Now()
	text := strings.TrimSpace(req.MessageText)
	if text == "" {
		return domain.ChatResponse{}, pipeline.ErrEmptyMessage
	}

	if err := s.store.EnsureSession(ctx, req.SessionID, s.cfg.AutoCreateSession); err != nil {
		return domain.ChatResponse{}, err
	}
	if _, err := s.store.SaveMessage(ctx, req.SessionID, domain.Utterance{
		Role:      domain.RoleChild,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return domain.ChatResponse{}, err
	}

	dbStart := time.Now()
	history, err := s.store.RecentMessages(ctx, req.SessionID, s.cfg.HistoryLimit)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	userTexts, err := s.store.RecentChildMessages(ctx, req.SessionID, s.cfg.UserWindowLimit)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	historyDur := time.Since(dbStart)

	pipelineStart := time.Now()
	res, err := s.runner.Chat(ctx, pipeline.Input{
		Message:   text,
		History:   history,
		UserTexts: userTexts,
	})
	pipelineDur := time.Since(pipelineStart)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	if _, err := s.store.SaveMessage(ctx, req.SessionID, domain.Utterance{
		Role:      domain.RoleAssistant,
		Text:      res.Reply.Text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return domain.ChatResponse{}, err
	}

	s.publish(ctx, req.SessionID, res)

	s.logger.Info("chat timing",
		"session_id", req.SessionID,
		"emotion", res.TopEmotion,
		"fallback", res.Reply.IsFallback(),
		"history_ms", historyDur.Milliseconds(),
		"pipeline_ms", pipelineDur.Milliseconds(),
		"total_ms", time.Since(chatStart).Milliseconds(),
	)

	return domain.ChatResponse{
		ReplyText: res.Reply.Text,
		Emotion:   res.TopEmotion,
		Fallback:  res.Reply.IsFallback(),
	}, nil
}

func (s *Service) publish(ctx context.Context, sessionID string, res pipeline.Result) {
	if s.publisher == nil {
		return
	}
	names := make([]string, 0, len(res.Strategies))
	for _, st := range res.Strategies {
		names = append(names, st.Name)
	}
	ev := domain.EmotionEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		Emotion:    res.TopEmotion,
		Scores:     res.Prediction.Ranked,
		Strategies: names,
		Fallback:   res.Reply.IsFallback(),
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.publisher.PublishEmotion(ctx, ev); err != nil {
		s.logger.Warn("publish emotion event failed", "session_id", sessionID, "error", err)
	}
}
