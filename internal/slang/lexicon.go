// Package slang annotates informal vocabulary with its plain-language meaning.
package slang

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Entry maps one lower-case slang token to its meanings.
type Entry struct {
	Token    string   `json:"token" yaml:"token"`
	Meanings []string `json:"meanings" yaml:"meanings"`
}

// Lexicon is an immutable, insertion-ordered set of entries. The zero value
// and a nil *Lexicon are both empty.
type Lexicon struct {
	entries []Entry
	index   map[string]int
}

// NewLexicon builds a lexicon from entries. Tokens are lower-cased and
// trimmed; a repeated token keeps its first position and gains the meanings
// of later duplicates.
func NewLexicon(entries []Entry) *Lexicon {
	lex := &Lexicon{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		token := strings.ToLower(strings.TrimSpace(e.Token))
		if token == "" {
			continue
		}
		meanings := make([]string, 0, len(e.Meanings))
		for _, m := range e.Meanings {
			if m = strings.TrimSpace(m); m != "" {
				meanings = append(meanings, m)
			}
		}
		if i, ok := lex.index[token]; ok {
			lex.entries[i].Meanings = append(lex.entries[i].Meanings, meanings...)
			continue
		}
		lex.index[token] = len(lex.entries)
		lex.entries = append(lex.entries, Entry{Token: token, Meanings: meanings})
	}
	return lex
}

func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Lexicon) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Lexicon) Lookup(token string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	i, ok := l.index[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Match is one accepted slang occurrence in the original text.
type Match struct {
	Token   string
	Meaning string
	Start   int
	End     int
}

type rule struct {
	token   string
	meaning string
	re      *regexp.Regexp
}

// Resolver rewrites slang occurrences as "<token> (<meaning>)". It is safe for
// concurrent use once built.
type Resolver struct {
	rules []rule
}

// NewResolver compiles one case-insensitive pattern per entry that has a
// meaning. Entries without any meaning never rewrite text.
func NewResolver(lex *Lexicon) *Resolver {
	r := &Resolver{}
	for _, e := range lex.Entries() {
		if len(e.Meanings) == 0 {
			continue
		}
		r.rules = append(r.rules, rule{
			token:   e.Token,
			meaning: e.Meanings[0],
			re:      regexp.MustCompile(`(?i)` + regexp.QuoteMeta(e.Token)),
		})
	}
	return r
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Detect returns the whole-word occurrences found in text, ordered by position.
// Tokens are tried in lexicon order and an occurrence overlapping one already
// accepted is skipped, so earlier tokens win.
func (r *Resolver) Detect(text string) []Match {
	if r == nil || len(r.rules) == 0 || text == "" {
		return nil
	}
	var matches []Match
	for _, ru := range r.rules {
		for offset := 0; offset < len(text); {
			loc := ru.re.FindStringIndex(text[offset:])
			if loc == nil {
				break
			}
			start, end := offset+loc[0], offset+loc[1]
			if !wholeWord(text, start, end) || overlaps(matches, start, end) {
				// a valid occurrence may begin inside the rejected one
				_, size := utf8.DecodeRuneInString(text[start:])
				offset = start + size
				continue
			}
			matches = append(matches, Match{Token: ru.token, Meaning: ru.meaning, Start: start, End: end})
			offset = end
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// Resolve annotates every detected occurrence in a single pass over the
// original text. The matched text keeps its own spelling.
func (r *Resolver) Resolve(text string) string {
	matches := r.Detect(text)
	if len(matches) == 0 {
		return text
	}
	var sb strings.Builder
	prev := 0
	for _, m := range matches {
		sb.WriteString(text[prev:m.End])
		sb.WriteString(" (")
		sb.WriteString(m.Meaning)
		sb.WriteString(")")
		prev = m.End
	}
	sb.WriteString(text[prev:])
	return sb.String()
}

func overlaps(matches []Match, start, end int) bool {
	for _, m := range matches {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

// wholeWord reports whether text[start:end] is not glued to a neighbouring
// word character. Token edges that are not word characters need no boundary.
func wholeWord(text string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(text[start:end])
	if isWordRune(first) && start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(before) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(text[start:end])
	if isWordRune(last) && end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(after) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
