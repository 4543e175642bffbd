// Package conversation turns fetched history into bounded prompt text.
package conversation

import (
	"strings"

	"mindpal/internal/domain"
)

const (
	DefaultMaxMessages     = 20
	DefaultUserMaxMessages = 3
	DefaultMaxChars        = 800
	DefaultMarker          = " ..."
)

// Window bounds how much history reaches a prompt. Zero fields take the
// defaults; a negative MaxChars disables truncation.
type Window struct {
	MaxMessages int
	MaxChars    int
	Marker      string
}

func DefaultWindow() Window {
	return Window{MaxMessages: DefaultMaxMessages, MaxChars: DefaultMaxChars, Marker: DefaultMarker}
}

func DefaultUserWindow() Window {
	return Window{MaxMessages: DefaultUserMaxMessages, MaxChars: DefaultMaxChars, Marker: DefaultMarker}
}

func (w Window) withDefaults(maxMessages int) Window {
	if w.MaxMessages <= 0 {
		w.MaxMessages = maxMessages
	}
	if w.MaxChars == 0 {
		w.MaxChars = DefaultMaxChars
	}
	if w.Marker == "" {
		w.Marker = DefaultMarker
	}
	return w
}

// Context renders chronological utterances as "role: text" lines. Only the
// last MaxMessages are kept.
func (w Window) Context(utts []domain.Utterance) string {
	w = w.withDefaults(DefaultMaxMessages)
	utts = tail(utts, w.MaxMessages)
	lines := make([]string, 0, len(utts))
	for _, u := range utts {
		lines = append(lines, string(u.Role)+": "+w.Truncate(u.Text))
	}
	return strings.Join(lines, "\n")
}

// UserWindow joins the last MaxMessages user texts with newlines, without
// role prefixes. Empty texts are skipped.
func (w Window) UserWindow(texts []string) string {
	w = w.withDefaults(DefaultUserMaxMessages)
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	kept = tail(kept, w.MaxMessages)
	lines := make([]string, 0, len(kept))
	for _, t := range kept {
		lines = append(lines, w.Truncate(t))
	}
	return strings.Join(lines, "\n")
}

// Truncate trims text and cuts it to MaxChars runes plus the marker.
func (w Window) Truncate(text string) string {
	text = strings.TrimSpace(text)
	if w.MaxChars < 0 {
		return text
	}
	max := w.MaxChars
	if max == 0 {
		max = DefaultMaxChars
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	marker := w.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	return strings.TrimRight(string(runes[:max]), " ") + marker
}

// Chronological reverses a most-recent-first fetch into a new slice.
func Chronological[T any](desc []T) []T {
	out := make([]T, len(desc))
	for i, v := range desc {
		out[len(desc)-1-i] = v
	}
	return out
}

func tail[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
