package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"mindpal/internal/config"
	"mindpal/internal/domain"
	"mindpal/internal/emotion"
	"mindpal/internal/logging"
)

type classifyRequest struct {
	Text string `json:"text"`
}

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Error("load .env failed", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadEmotionServerConfig()
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		bootLogger.Error("init logger failed", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(emotion.NewAnalyzer(), cfg.ReadBodyMaxByte),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("emotion server started", "addr", cfg.HTTPAddr, "engine", emotion.Engine)
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

func newRouter(analyzer *emotion.Analyzer, maxBody int64) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"engine": emotion.Engine,
			"labels": domain.EmotionTaxonomy,
		})
	})
	r.Post("/v1/emotion/classify", func(w http.ResponseWriter, req *http.Request) {
		var in classifyRequest
		if err := decodeJSONBody(req, maxBody, &in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		in.Text = strings.TrimSpace(in.Text)
		if in.Text == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text is required"})
			return
		}

		start := time.Now()
		out := analyzer.Analyze(in.Text)
		writeJSON(w, http.StatusOK, emotion.ClassifyResponse{
			Emotion:     out.Emotion,
			FineEmotion: out.Fine,
			Scores:      out.Scores,
			Engine:      emotion.Engine,
			LatencyMS:   roundMillis(time.Since(start)),
		})
	})
	return r
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid json: multiple JSON values")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func roundMillis(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return math.Round(ms*1000) / 1000
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
