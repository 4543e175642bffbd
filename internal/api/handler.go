// Package api exposes the chat endpoint and the strategy catalog over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mindpal/internal/db"
	"mindpal/internal/domain"
	"mindpal/internal/pipeline"
)

const (
	SessionHeader   = "X-Session-Id"
	maxChatBodySize = 64 << 10

	defaultMessagePage = 50
	maxMessagePage     = 200
)

type ChatService interface {
	HandleChat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
}

type StrategyReader interface {
	ListStrategies(ctx context.Context) ([]domain.CopingStrategy, error)
	StrategiesForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error)
}

// MessageReader serves a session's stored history.
type MessageReader interface {
	EnsureSession(ctx context.Context, sessionID string, create bool) error
	ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]domain.StoredMessage, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	chat       ChatService
	strategies StrategyReader
	messages   MessageReader
	health     Pinger
	logger     *slog.Logger
}

// NewHandler wires the handlers. health may be nil.
func NewHandler(chat ChatService, strategies StrategyReader, messages MessageReader, health Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chat, strategies: strategies, messages: messages, health: health, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/chat", h.handleChat)
	r.Get("/api/sessions/{sessionID}/messages", h.handleListMessages)
	r.Get("/strategy", h.handleListStrategies)
	r.Get("/strategy/emotions/{label}", h.handleStrategiesForEmotion)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	rawSession := strings.TrimSpace(r.Header.Get(SessionHeader))
	if rawSession == "" {
		writeError(w, http.StatusUnauthorized, "missing "+SessionHeader+" header")
		return
	}
	sessionID, err := uuid.Parse(rawSession)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.SessionID = sessionID.String()

	resp, err := h.chat.HandleChat(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, pipeline.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message cannot be empty.")
	case errors.Is(err, db.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.logger.Error("chat failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleListMessages pages history newest first. Clients pass the oldest
// message_ts they hold as before_ts to fetch the previous page.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	q := r.URL.Query()
	limit := defaultMessagePage
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMessagePage {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxMessagePage))
			return
		}
		limit = n
	}
	var before time.Time
	if raw := q.Get("before_ts"); raw != "" {
		if before, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			writeError(w, http.StatusBadRequest, "before_ts must be an RFC 3339 timestamp")
			return
		}
	}

	id := sessionID.String()
	if err := h.messages.EnsureSession(r.Context(), id, false); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("lookup session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out, err := h.messages.ListMessages(r.Context(), id, limit, before)
	if err != nil {
		h.logger.Error("list messages failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	out, err := h.strategies.ListStrategies(r.Context())
	if err != nil {
		h.logger.Error("list strategies failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStrategiesForEmotion(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(chi.URLParam(r, "label"))
	if label == "" {
		writeError(w, http.StatusBadRequest, "emotion label is required")
		return
	}
	out, err := h.strategies.StrategiesForEmotion(r.Context(), label)
	if err != nil {
		h.logger.Error("strategies for emotion failed", "emotion", label, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
