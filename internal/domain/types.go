package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleChild     Role = "child"
	RoleAssistant Role = "assistant"
)

// Utterance is one persisted message turn of a chat session.
type Utterance struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// StoredMessage is a history row as served by the session messages endpoint.
type StoredMessage struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"message_ts"`
	Role      Role      `json:"message_role"`
	Text      string    `json:"message_text"`
}

// EmotionTaxonomy is the closed label set of the classifier. The order is
// also the tie-break order when two labels share a score.
var EmotionTaxonomy = []string{
	"anger", "disgust", "fear", "joy", "neutral", "sadness", "surprise",
}

// TaxonomyIndex returns the tie-break position of label, or len(EmotionTaxonomy)
// for labels outside the taxonomy so they sort last.
func TaxonomyIndex(label string) int {
	key := strings.ToLower(strings.TrimSpace(label))
	for i, l := range EmotionTaxonomy {
		if l == key {
			return i
		}
	}
	return len(EmotionTaxonomy)
}

type EmotionScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EmotionPrediction holds classifier output ordered by descending score.
type EmotionPrediction struct {
	Ranked []EmotionScore `json:"ranked"`
}

func (p EmotionPrediction) Top() (EmotionScore, bool) {
	if len(p.Ranked) == 0 {
		return EmotionScore{}, false
	}
	return p.Ranked[0], true
}

func (p EmotionPrediction) TopLabel() string {
	top, _ := p.Top()
	return top.Label
}

type EmotionLabel struct {
	ID       int    `json:"emotion_id" yaml:"id"`
	Emoji    string `json:"emoji" yaml:"emoji"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
}

// CopingStrategy is a catalog record. Requirements and Source are free-form
// JSON objects and stay nil when the catalog has none.
type CopingStrategy struct {
	ID           string         `json:"strategy_id" yaml:"id"`
	Name         string         `json:"strategy_name" yaml:"name"`
	Description  string         `json:"strategy_desc" yaml:"description"`
	Instruction  string         `json:"strategy_instruction" yaml:"instruction"`
	Duration     string         `json:"strategy_duration,omitempty" yaml:"duration"`
	Requirements map[string]any `json:"strategy_requirements,omitempty" yaml:"requirements"`
	Source       map[string]any `json:"strategy_source,omitempty" yaml:"source"`
	Category     string         `json:"strategy_category,omitempty" yaml:"category"`
}

// Message is a provider-neutral chat message sent to a language model.
type Message struct {
	Role    string
	Content string
}

type LLMRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	// Temperature is nil for the provider default. Zero is a valid setting.
	Temperature *float64
	TopP        float64
}

type LLMResponse struct {
	Content string
}

type ChatRequest struct {
	SessionID   string `json:"-"`
	MessageText string `json:"message_text"`
}

type ChatResponse struct {
	ReplyText string `json:"reply_text"`
	Emotion   string `json:"emotion,omitempty"`
	Fallback  bool   `json:"fallback"`
}

// EmotionEvent is published for analytics consumers after every chat turn.
type EmotionEvent struct {
	EventID    string         `json:"event_id"`
	SessionID  string         `json:"session_id"`
	Emotion    string         `json:"emotion"`
	Scores     []EmotionScore `json:"scores"`
	Strategies []string       `json:"strategies,omitempty"`
	Fallback   bool           `json:"fallback"`
	TS         string         `json:"ts"`
}
