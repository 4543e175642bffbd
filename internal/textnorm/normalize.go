// Package textnorm canonicalizes raw chat text before slang resolution and
// emotion classification.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// contractions maps lower-case contracted words to their expansion. Only
// forms with an apostrophe are listed; "cant" or "wont" are real words.
var contractions = map[string]string{
	"ain't":     "am not",
	"aren't":    "are not",
	"can't":     "can not",
	"couldn't":  "could not",
	"didn't":    "did not",
	"doesn't":   "does not",
	"don't":     "do not",
	"hadn't":    "had not",
	"hasn't":    "has not",
	"haven't":   "have not",
	"isn't":     "is not",
	"mightn't":  "might not",
	"mustn't":   "must not",
	"needn't":   "need not",
	"shan't":    "shall not",
	"shouldn't": "should not",
	"wasn't":    "was not",
	"weren't":   "were not",
	"won't":     "will not",
	"wouldn't":  "would not",
	"i'm":       "i am",
	"let's":     "let us",
	"y'all":     "you all",
	"it's":      "it is",
	"that's":    "that is",
	"what's":    "what is",
	"there's":   "there is",
	"here's":    "here is",
	"who's":     "who is",
	"where's":   "where is",
	"how's":     "how is",
	"he's":      "he is",
	"she's":     "she is",
}

// suffixes expands the regular contraction endings for words not listed above.
var suffixes = []struct {
	suffix string
	repl   string
}{
	{"n't", " not"},
	{"'re", " are"},
	{"'ve", " have"},
	{"'ll", " will"},
	{"'d", " would"},
}

// Normalize collapses whitespace, case-folds, expands contractions and strips
// punctuation. The result is stable under a second call.
func Normalize(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return ""
	}
	t = canonical(t)
	t = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'").Replace(t)

	words := strings.Fields(t)
	for i, w := range words {
		words[i] = expand(w)
	}
	// dropping punctuation can bring a base letter next to its combining mark
	t = canonical(stripPunct(strings.Join(words, " ")))
	return strings.Join(strings.Fields(t), " ")
}

// canonical applies NFKC then case folding until neither changes the text.
// NFKC can produce upper-case letters (ℌ -> H), so folding must come last.
func canonical(t string) string {
	fold := cases.Fold()
	for i := 0; i < 4; i++ {
		next := fold.String(norm.NFKC.String(t))
		if next == t {
			break
		}
		t = next
	}
	return t
}

func expand(word string) string {
	head, core, tail := splitPunct(word)
	if repl, ok := contractions[core]; ok {
		return head + repl + tail
	}
	for _, s := range suffixes {
		if len(core) > len(s.suffix) && strings.HasSuffix(core, s.suffix) {
			return head + strings.TrimSuffix(core, s.suffix) + s.repl + tail
		}
	}
	return word
}

// splitPunct separates `("can't!!` into `("`, `can't` and `!!` so the
// contraction table can match words wrapped in quotes or punctuation.
func splitPunct(word string) (string, string, string) {
	start, end := 0, len(word)
	for start < end && isEdgePunct(word[start]) {
		start++
	}
	for end > start && isEdgePunct(word[end-1]) {
		end--
	}
	return word[:start], word[start:end], word[end:]
}

func isEdgePunct(b byte) bool {
	if b >= 0x80 || b == '\'' {
		return false
	}
	r := rune(b)
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func stripPunct(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsPunct(r) || isASCIISymbol(r) {
			continue
		}
		if unicode.IsSpace(r) {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// isASCIISymbol covers the symbols of Python's string.punctuation that are
// not Unicode punctuation ($+<=>^`|~). Emoji are symbols too and are kept.
func isASCIISymbol(r rune) bool {
	return r < 0x80 && unicode.IsSymbol(r)
}
