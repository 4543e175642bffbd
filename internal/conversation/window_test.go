package conversation

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/domain"
)

func utterances(n int) []domain.Utterance {
	out := make([]domain.Utterance, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleChild
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Utterance{Role: role, Text: fmt.Sprintf("msg %d", i)})
	}
	return out
}

func TestContextKeepsLastMessagesInOrder(t *testing.T) {
	got := DefaultWindow().Context(utterances(25))
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 20)
	assert.Equal(t, "assistant: msg 5", lines[0])
	assert.Equal(t, "child: msg 24", lines[19])
}

func TestContextCapsBodies(t *testing.T) {
	long := strings.Repeat("é", 900)
	w := Window{MaxMessages: 5, MaxChars: 800}
	got := w.Context([]domain.Utterance{{Role: domain.RoleChild, Text: "  " + long + "  "}})
	body := strings.TrimPrefix(got, "child: ")
	assert.True(t, strings.HasSuffix(body, " ..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(body), 800+len(" ..."))
	assert.Equal(t, 800, utf8.RuneCountInString(strings.TrimSuffix(body, " ...")))
}

func TestContextCapProperty(t *testing.T) {
	for _, n := range []int{0, 1, 3, 20, 21, 100} {
		for _, size := range []int{0, 10, 799, 800, 801, 5000} {
			utts := make([]domain.Utterance, n)
			for i := range utts {
				utts[i] = domain.Utterance{Role: domain.RoleChild, Text: strings.Repeat("a", size)}
			}
			got := DefaultWindow().Context(utts)
			if n == 0 {
				assert.Empty(t, got)
				continue
			}
			lines := strings.Split(got, "\n")
			assert.LessOrEqual(t, len(lines), 20)
			for _, l := range lines {
				assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimPrefix(l, "child: ")), 800+len(DefaultMarker))
			}
		}
	}
}

func TestUserWindow(t *testing.T) {
	got := DefaultUserWindow().UserWindow([]string{"first", "", "second", "third", "  fourth  "})
	assert.Equal(t, "second\nthird\nfourth", got)
	assert.Empty(t, DefaultUserWindow().UserWindow(nil))
}

func TestTruncateShortTextUnchanged(t *testing.T) {
	w := DefaultWindow()
	assert.Equal(t, "hello", w.Truncate(" hello "))
	assert.Equal(t, strings.Repeat("b", 800), w.Truncate(strings.Repeat("b", 800)))
	assert.Equal(t, strings.Repeat("b", 800)+" ...", w.Truncate(strings.Repeat("b", 801)))
}

func TestChronological(t *testing.T) {
	desc := []int{3, 2, 1}
	assert.Equal(t, []int{1, 2, 3}, Chronological(desc))
	assert.Equal(t, []int{3, 2, 1}, desc)
	assert.Empty(t, Chronological([]int{}))
}
