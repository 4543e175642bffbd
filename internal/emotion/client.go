package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mindpal/internal/domain"
)

// Client calls a running emotion-server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// ClassifyResponse is the JSON body of POST /v1/emotion/classify.
type ClassifyResponse struct {
	Emotion     string                `json:"emotion"`
	FineEmotion string                `json:"fine_emotion,omitempty"`
	Scores      []domain.EmotionScore `json:"scores"`
	Engine      string                `json:"engine,omitempty"`
	LatencyMS   float64               `json:"latency_ms"`
}

func (c *Client) Classify(ctx context.Context, text string) (domain.EmotionPrediction, error) {
	if !c.Enabled() {
		return domain.EmotionPrediction{}, fmt.Errorf("emotion service is not configured")
	}
	payload := map[string]string{"text": strings.TrimSpace(text)}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/emotion/classify", bytes.NewReader(body))
	if err != nil {
		return domain.EmotionPrediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.EmotionPrediction{}, fmt.Errorf("emotion service request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return domain.EmotionPrediction{}, fmt.Errorf("emotion service status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out ClassifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.EmotionPrediction{}, fmt.Errorf("decode emotion response: %w", err)
	}
	scores := out.Scores
	if len(scores) == 0 && out.Emotion != "" {
		scores = []domain.EmotionScore{{Label: out.Emotion, Score: 1}}
	}
	return domain.EmotionPrediction{Ranked: Rank(scores)}, nil
}
