package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/domain"
	"mindpal/internal/pipeline"
	"mindpal/internal/reply"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]bool
	messages map[string][]domain.Utterance
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]bool{}, messages: map[string][]domain.Utterance{}}
}

func (m *memStore) EnsureSession(_ context.Context, id string, create bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sessions[id] {
		if !create {
			return errors.New("chat session not found")
		}
		m.sessions[id] = true
	}
	return nil
}

func (m *memStore) SaveMessage(_ context.Context, id string, u domain.Utterance) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.messages[id] = append(m.messages[id], u)
	return "msg", nil
}

func (m *memStore) RecentMessages(_ context.Context, id string, limit int) ([]domain.Utterance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[id]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.Utterance(nil), all...), nil
}

func (m *memStore) RecentChildMessages(_ context.Context, id string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, u := range m.messages[id] {
		if u.Role == domain.RoleChild {
			out = append(out, u.Text)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeRunner struct {
	calls  int
	last   pipeline.Input
	result pipeline.Result
	err    error
}

func (f *fakeRunner) Chat(_ context.Context, in pipeline.Input) (pipeline.Result, error) {
	f.calls++
	f.last = in
	return f.result, f.err
}

type fakePublisher struct {
	events []domain.EmotionEvent
	err    error
}

func (f *fakePublisher) PublishEmotion(_ context.Context, ev domain.EmotionEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func stressedResult(outcome reply.Outcome) pipeline.Result {
	return pipeline.Result{
		Reply:      reply.Reply{Text: "Try box breathing with me.", Outcome: outcome},
		Prediction: domain.EmotionPrediction{Ranked: []domain.EmotionScore{{Label: "fear", Score: 0.8}, {Label: "sadness", Score: 0.2}}},
		TopEmotion: "fear",
		Strategies: []domain.CopingStrategy{{ID: "s-box", Name: "box-breathing"}},
	}
}

func TestHandleChatPersistsTurn(t *testing.T) {
	store := newMemStore()
	runner := &fakeRunner{result: stressedResult(reply.OutcomeGenerated)}
	pub := &fakePublisher{}
	svc := New(Config{AutoCreateSession: true}, store, runner, pub, nil)

	resp, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "  I'm SO stressed about exams!!  "})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatResponse{ReplyText: "Try box breathing with me.", Emotion: "fear"}, resp)

	require.Equal(t, 1, runner.calls)
	assert.Equal(t, "I'm SO stressed about exams!!", runner.last.Message)
	require.Len(t, runner.last.History, 1)
	assert.Equal(t, domain.RoleChild, runner.last.History[0].Role)
	assert.Equal(t, []string{"I'm SO stressed about exams!!"}, runner.last.UserTexts)

	saved := store.messages["s1"]
	require.Len(t, saved, 2)
	assert.Equal(t, domain.RoleAssistant, saved[1].Role)
	assert.Equal(t, "Try box breathing with me.", saved[1].Text)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, "fear", ev.Emotion)
	assert.Equal(t, []string{"box-breathing"}, ev.Strategies)
	assert.NotEmpty(t, ev.EventID)
	assert.False(t, ev.Fallback)
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	store := newMemStore()
	runner := &fakeRunner{}
	svc := New(Config{AutoCreateSession: true}, store, runner, nil, nil)

	_, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "   \n\t"})
	assert.ErrorIs(t, err, pipeline.ErrEmptyMessage)
	assert.Zero(t, runner.calls)
	assert.Empty(t, store.sessions)
	assert.Empty(t, store.messages)
}

func TestHandleChatPersistsFallbackReply(t *testing.T) {
	store := newMemStore()
	runner := &fakeRunner{result: stressedResult(reply.OutcomeFallback)}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := New(Config{AutoCreateSession: true}, store, runner, pub, nil)

	resp, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Len(t, store.messages["s1"], 2)
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Fallback)
}

func TestHandleChatPropagatesErrors(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		runner := &fakeRunner{}
		svc := New(Config{}, newMemStore(), runner, nil, nil)
		_, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "hi"})
		assert.Error(t, err)
		assert.Zero(t, runner.calls)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		store := newMemStore()
		stageErr := &pipeline.StageError{Stage: pipeline.StageEmotionDetected, Err: errors.New("model offline")}
		svc := New(Config{AutoCreateSession: true}, store, &fakeRunner{err: stageErr}, nil, nil)
		_, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "hi"})
		var se *pipeline.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, pipeline.StageEmotionDetected, se.Stage)
		assert.Len(t, store.messages["s1"], 1)
	})

	t.Run("save failure", func(t *testing.T) {
		store := newMemStore()
		store.saveErr = errors.New("disk full")
		runner := &fakeRunner{}
		svc := New(Config{AutoCreateSession: true}, store, runner, nil, nil)
		_, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: "hi"})
		assert.EqualError(t, err, "disk full")
		assert.Zero(t, runner.calls)
	})
}

func TestHandleChatWindowLimits(t *testing.T) {
	store := newMemStore()
	runner := &fakeRunner{result: stressedResult(reply.OutcomeGenerated)}
	svc := New(Config{AutoCreateSession: true, HistoryLimit: 4, UserWindowLimit: 2}, store, runner, nil, nil)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := svc.HandleChat(context.Background(), domain.ChatRequest{SessionID: "s1", MessageText: msg})
		require.NoError(t, err)
	}
	assert.Len(t, runner.last.History, 4)
	assert.Equal(t, "three", runner.last.History[3].Text)
	assert.Equal(t, []string{"two", "three"}, runner.last.UserTexts)
}
