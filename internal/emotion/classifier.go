package emotion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"mindpal/internal/domain"
)

// Classifier maps a text span to emotion labels with confidence scores.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.EmotionPrediction, error)
}

type Mode string

const (
	ModeTop    Mode = "top"
	ModeRanked Mode = "ranked"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTop:
		return ModeTop, nil
	case ModeRanked, "":
		return ModeRanked, nil
	default:
		return "", fmt.Errorf("invalid emotion mode %q (want top or ranked)", s)
	}
}

var ErrNoLabels = errors.New("classifier returned no labels")

// Rank orders scores by descending confidence. Equal scores fall back to
// taxonomy order, then to the label itself, so the top label is stable.
// Labels are lower-cased; the input slice is not modified.
func Rank(scores []domain.EmotionScore) []domain.EmotionScore {
	out := make([]domain.EmotionScore, 0, len(scores))
	for _, s := range scores {
		label := strings.ToLower(strings.TrimSpace(s.Label))
		if label == "" {
			continue
		}
		out = append(out, domain.EmotionScore{Label: label, Score: s.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ti, tj := domain.TaxonomyIndex(out[i].Label), domain.TaxonomyIndex(out[j].Label)
		if ti != tj {
			return ti < tj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

type modeClassifier struct {
	next Classifier
	mode Mode
}

// WithMode ranks the backend output and, in top mode, keeps only the first
// label. A backend answer without labels is an error.
func WithMode(c Classifier, mode Mode) Classifier {
	return &modeClassifier{next: c, mode: mode}
}

func (m *modeClassifier) Classify(ctx context.Context, text string) (domain.EmotionPrediction, error) {
	pred, err := m.next.Classify(ctx, text)
	if err != nil {
		return domain.EmotionPrediction{}, err
	}
	ranked := Rank(pred.Ranked)
	if len(ranked) == 0 {
		return domain.EmotionPrediction{}, ErrNoLabels
	}
	if m.mode == ModeTop {
		ranked = ranked[:1]
	}
	return domain.EmotionPrediction{Ranked: ranked}, nil
}

// LexicalClassifier runs the in-process Analyzer. It never fails.
type LexicalClassifier struct {
	analyzer *Analyzer
}

func NewLexicalClassifier() *LexicalClassifier {
	return &LexicalClassifier{analyzer: NewAnalyzer()}
}

func (c *LexicalClassifier) Classify(ctx context.Context, text string) (domain.EmotionPrediction, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmotionPrediction{}, err
	}
	return domain.EmotionPrediction{Ranked: c.analyzer.Analyze(text).Scores}, nil
}
