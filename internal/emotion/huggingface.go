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

const (
	DefaultHFInferenceURL = "https://router.huggingface.co/hf-inference"
	DefaultHFModel        = "j-hartmann/emotion-english-distilroberta-base"
)

// HuggingFaceClient classifies text with a hosted text-classification model.
type HuggingFaceClient struct {
	baseURL string
	model   string
	token   string
	http    *http.Client
}

func NewHuggingFaceClient(baseURL, model, token string, timeout time.Duration) *HuggingFaceClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultHFInferenceURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultHFModel
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HuggingFaceClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   strings.TrimSpace(model),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		TopK int `json:"top_k"`
	} `json:"parameters"`
}

func (c *HuggingFaceClient) Classify(ctx context.Context, text string) (domain.EmotionPrediction, error) {
	payload := hfRequest{Inputs: text}
	payload.Parameters.TopK = len(domain.EmotionTaxonomy)
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(body))
	if err != nil {
		return domain.EmotionPrediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.EmotionPrediction{}, fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return domain.EmotionPrediction{}, fmt.Errorf("huggingface status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	scores, err := decodeHFScores(respBody)
	if err != nil {
		return domain.EmotionPrediction{}, err
	}
	return domain.EmotionPrediction{Ranked: Rank(scores)}, nil
}

// decodeHFScores accepts the nested [[{label,score}]] shape returned for a
// single input as well as a flat [{label,score}] list.
func decodeHFScores(body []byte) ([]domain.EmotionScore, error) {
	var nested [][]domain.EmotionScore
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, ErrNoLabels
		}
		return nested[0], nil
	}
	var flat []domain.EmotionScore
	if err := json.Unmarshal(body, &flat); err != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("huggingface error: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("decode huggingface response: %w", err)
	}
	return flat, nil
}
