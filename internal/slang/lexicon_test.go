package slang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *Resolver {
	return NewResolver(NewLexicon([]Entry{
		{Token: "fire", Meanings: []string{"amazing"}},
		{Token: "no cap", Meanings: []string{"no lie"}},
		{Token: "cap", Meanings: []string{"lie"}},
		{Token: "sus", Meanings: []string{"", "suspicious"}},
		{Token: "mid", Meanings: nil},
	}))
}

func TestResolveStandaloneToken(t *testing.T) {
	r := testResolver()
	assert.Equal(t, "that fit is fire (amazing)", r.Resolve("that fit is fire"))
}

func TestResolveIgnoresEmbeddedToken(t *testing.T) {
	r := testResolver()
	for _, in := range []string{"the firewall is down", "campfire stories", "capital city"} {
		assert.Equal(t, in, r.Resolve(in), in)
	}
}

func TestResolveEveryOccurrence(t *testing.T) {
	r := testResolver()
	got := r.Resolve("fire fit fire")
	assert.Equal(t, "fire (amazing) fit fire (amazing)", got)
}

func TestResolveFindsOccurrenceInsideRejectedCandidate(t *testing.T) {
	r := NewResolver(NewLexicon([]Entry{{Token: "ha ha", Meanings: []string{"laughing"}}}))
	assert.Equal(t, "aha ha ha (laughing)", r.Resolve("aha ha ha"))

	matches := r.Detect("aha ha ha")
	require.Len(t, matches, 1)
	assert.Equal(t, 4, matches[0].Start)
	assert.Equal(t, 9, matches[0].End)

	r = NewResolver(NewLexicon([]Entry{{Token: "lol", Meanings: []string{"laughing out loud"}}}))
	assert.Equal(t, "lolol lol (laughing out loud)", r.Resolve("lolol lol"))
}

func TestResolveCaseInsensitiveKeepsSpelling(t *testing.T) {
	r := testResolver()
	assert.Equal(t, "That is FIRE (amazing)", r.Resolve("That is FIRE"))
}

func TestResolveEarlierTokenWinsOverlap(t *testing.T) {
	r := testResolver()
	got := r.Resolve("no cap that is fire")
	assert.Equal(t, "no cap (no lie) that is fire (amazing)", got)

	got = r.Resolve("total cap")
	assert.Equal(t, "total cap (lie)", got)
}

func TestResolveDoesNotRescanInsertedMeanings(t *testing.T) {
	r := NewResolver(NewLexicon([]Entry{
		{Token: "goat", Meanings: []string{"greatest of all time"}},
		{Token: "time", Meanings: []string{"a clock thing"}},
	}))
	assert.Equal(t, "he is the goat (greatest of all time)", r.Resolve("he is the goat"))
}

func TestResolveMeaningSelection(t *testing.T) {
	r := testResolver()
	assert.Equal(t, "kinda sus (suspicious)", r.Resolve("kinda sus"))
	assert.Equal(t, "that movie was mid", r.Resolve("that movie was mid"))
}

func TestDetectOrderedByPosition(t *testing.T) {
	r := testResolver()
	matches := r.Detect("fire and no cap")
	require.Len(t, matches, 2)
	assert.Equal(t, "fire", matches[0].Token)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, "no cap", matches[1].Token)
	assert.Equal(t, "no lie", matches[1].Meaning)
}

func TestEmptyResolverIsNoop(t *testing.T) {
	var nilResolver *Resolver
	assert.Equal(t, "that fit is fire", nilResolver.Resolve("that fit is fire"))

	r := NewResolver(NewLexicon(nil))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "that fit is fire", r.Resolve("that fit is fire"))
	assert.Nil(t, r.Detect("that fit is fire"))
}

func TestNewLexiconMergesDuplicates(t *testing.T) {
	lex := NewLexicon([]Entry{
		{Token: " Rizz ", Meanings: []string{"charm"}},
		{Token: "bet", Meanings: []string{"okay"}},
		{Token: "rizz", Meanings: []string{"charisma", " "}},
		{Token: "", Meanings: []string{"ignored"}},
	})
	require.Equal(t, 2, lex.Len())
	e, ok := lex.Lookup("RIZZ")
	require.True(t, ok)
	assert.Equal(t, []string{"charm", "charisma"}, e.Meanings)
	assert.Equal(t, "rizz", lex.Entries()[0].Token)
}
