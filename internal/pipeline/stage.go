package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names one step of a chat turn. Stages run strictly in declaration order.
type Stage string

const (
	StageReceived           Stage = "received"
	StageNormalized         Stage = "normalized"
	StageSlangResolved      Stage = "slang_resolved"
	StageEmotionDetected    Stage = "emotion_detected"
	StageStrategiesResolved Stage = "strategies_resolved"
	StagePromptComposed     Stage = "prompt_composed"
	StageReplyGenerated     Stage = "reply_generated"
	StageDone               Stage = "done"
)

var ErrEmptyMessage = errors.New("message cannot be empty")

// StageError reports the stage at which a turn was aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// EmotionInput selects the text the classifier sees.
type EmotionInput string

const (
	// InputMessage classifies the normalized, slang-resolved current message.
	InputMessage EmotionInput = "message"
	// InputWindow classifies the newline-joined recent user texts.
	InputWindow EmotionInput = "window"
)

func ParseEmotionInput(s string) (EmotionInput, error) {
	switch EmotionInput(strings.ToLower(strings.TrimSpace(s))) {
	case InputMessage, "":
		return InputMessage, nil
	case InputWindow:
		return InputWindow, nil
	default:
		return "", fmt.Errorf("invalid emotion input %q (want message or window)", s)
	}
}
