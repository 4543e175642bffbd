package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/domain"
	"mindpal/internal/emotion"
	"mindpal/internal/reply"
	"mindpal/internal/slang"
)

type fixtureClassifier struct {
	label string
	err   error
	seen  []string
}

func (f *fixtureClassifier) Classify(_ context.Context, text string) (domain.EmotionPrediction, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return domain.EmotionPrediction{}, f.err
	}
	return domain.EmotionPrediction{Ranked: []domain.EmotionScore{{Label: f.label, Score: 0.87}}}, nil
}

type fixtureStrategies struct {
	byLabel map[string][]domain.CopingStrategy
	err     error
	asked   []string
}

func (f *fixtureStrategies) ForEmotion(_ context.Context, label string) ([]domain.CopingStrategy, error) {
	f.asked = append(f.asked, label)
	if f.err != nil {
		return nil, f.err
	}
	return f.byLabel[label], nil
}

type scriptedProvider struct {
	content string
	err     error
	prompts []string
}

func (s *scriptedProvider) Complete(_ context.Context, req domain.LLMRequest) (domain.LLMResponse, error) {
	for _, m := range req.Messages {
		s.prompts = append(s.prompts, m.Content)
	}
	if s.err != nil {
		return domain.LLMResponse{}, s.err
	}
	return domain.LLMResponse{Content: s.content}, nil
}

var boxBreathing = domain.CopingStrategy{
	ID:          "s-1",
	Name:        "box-breathing",
	Description: "Square breathing to calm the body",
	Instruction: "Breathe in for 4, hold 4, out 4, hold 4.",
}

type harness struct {
	classifier *fixtureClassifier
	strategies *fixtureStrategies
	provider   *scriptedProvider
	pipeline   *Pipeline
}

func newHarness(cfg Config, resolver SlangResolver) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		classifier: &fixtureClassifier{label: "fear"},
		strategies: &fixtureStrategies{byLabel: map[string][]domain.CopingStrategy{"fear": {boxBreathing}}},
		provider:   &scriptedProvider{content: "  Exams can feel huge 😣 want to try box-breathing together?  "},
	}
	h.pipeline = New(cfg, Deps{
		Slang:      resolver,
		Classifier: h.classifier,
		Strategies: h.strategies,
		Generator:  reply.NewGenerator(h.provider, reply.GeneratorConfig{Model: "test"}, logger),
	}, logger)
	return h
}

func TestChatStressedAboutExams(t *testing.T) {
	h := newHarness(Config{}, slang.NewResolver(slang.NewLexicon(nil)))

	res, err := h.pipeline.Chat(context.Background(), Input{Message: "  I'm SO stressed about exams!!  "})
	require.NoError(t, err)

	assert.Equal(t, "i am so stressed about exams", res.NormalizedText)
	assert.Equal(t, res.NormalizedText, res.ResolvedText)
	assert.Equal(t, []string{"i am so stressed about exams"}, h.classifier.seen)
	assert.Equal(t, "fear", res.TopEmotion)
	assert.Equal(t, []string{"fear"}, h.strategies.asked)
	require.Len(t, h.provider.prompts, 1)
	assert.Contains(t, h.provider.prompts[0], "box-breathing")
	assert.Equal(t, "Exams can feel huge 😣 want to try box-breathing together?", res.Reply.Text)
	assert.Equal(t, reply.OutcomeGenerated, res.Reply.Outcome)
}

func TestChatProviderErrorReturnsFallback(t *testing.T) {
	h := newHarness(Config{}, nil)
	h.provider.err = errors.New("connection reset")

	res, err := h.pipeline.Chat(context.Background(), Input{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, reply.DefaultFallback, res.Reply.Text)
	assert.True(t, res.Reply.IsFallback())
}

func TestChatClassificationFailureIsFatal(t *testing.T) {
	h := newHarness(Config{}, nil)
	boom := errors.New("classifier down")
	h.classifier.err = boom

	_, err := h.pipeline.Chat(context.Background(), Input{Message: "hello"})
	require.Error(t, err)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageEmotionDetected, se.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, h.strategies.asked)
	assert.Empty(t, h.provider.prompts)
}

func TestChatEmptyPredictionIsFatal(t *testing.T) {
	h := newHarness(Config{}, nil)
	h.pipeline.deps.Classifier = emotion.WithMode(&fixtureClassifier{label: ""}, emotion.ModeTop)

	_, err := h.pipeline.Chat(context.Background(), Input{Message: "hello"})
	assert.ErrorIs(t, err, emotion.ErrNoLabels)
}

func TestChatStrategyFailureIsFatal(t *testing.T) {
	h := newHarness(Config{}, nil)
	h.strategies.err = errors.New("db gone")

	_, err := h.pipeline.Chat(context.Background(), Input{Message: "hello"})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageStrategiesResolved, se.Stage)
	assert.Empty(t, h.provider.prompts)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := newHarness(Config{}, nil)
	_, err := h.pipeline.Chat(context.Background(), Input{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, h.classifier.seen)
}

func TestChatWindowInput(t *testing.T) {
	h := newHarness(Config{DetectOn: InputWindow}, nil)

	_, err := h.pipeline.Chat(context.Background(), Input{
		Message:   "still bad",
		UserTexts: []string{"one", "two", "three", "still bad"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"two\nthree\nstill bad"}, h.classifier.seen)

	_, err = h.pipeline.Chat(context.Background(), Input{Message: "Still BAD"})
	require.NoError(t, err)
	assert.Equal(t, "still bad", h.classifier.seen[1])
}

func TestChatResolvesSlangAndRendersHistory(t *testing.T) {
	resolver := slang.NewResolver(slang.NewLexicon([]slang.Entry{{Token: "fire", Meanings: []string{"amazing"}}}))
	h := newHarness(Config{}, resolver)

	res, err := h.pipeline.Chat(context.Background(), Input{
		Message: "That fit is FIRE",
		History: []domain.Utterance{
			{Role: domain.RoleChild, Text: "hey"},
			{Role: domain.RoleAssistant, Text: "hi! how are you?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "that fit is fire (amazing)", res.ResolvedText)
	assert.Contains(t, res.Prompt, "child: hey\nassistant: hi! how are you?")
	assert.Contains(t, res.Prompt, "Child's current message: that fit is fire (amazing)")
}

func TestParseEmotionInput(t *testing.T) {
	in, err := ParseEmotionInput("Window")
	require.NoError(t, err)
	assert.Equal(t, InputWindow, in)
	_, err = ParseEmotionInput("both")
	assert.Error(t, err)
}
