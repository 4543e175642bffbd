package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/domain"
)

const sample = `
emotions:
  - id: 1
    name: Fear
    emoji: "😨"
    category: negative
  - name: joy
    emoji: "😊"
strategies:
  - id: box-breathing
    name: box-breathing
    description: Square breathing
    instruction: Breathe in for 4, hold 4, out 4, hold 4.
    duration: 2 minutes
    requirements:
      quiet_space: true
    source:
      url: https://example.org/box
    emotions: [FEAR]
`

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, c.Emotions, 2)
	assert.Equal(t, "fear", c.Emotions[0].Name)
	assert.Equal(t, 2, c.Emotions[1].ID)

	require.Len(t, c.Strategies, 1)
	s := c.Strategies[0]
	assert.Equal(t, "box-breathing", s.Name)
	assert.Equal(t, "2 minutes", s.Duration)
	assert.Equal(t, true, s.Requirements["quiet_space"])
	assert.Equal(t, "https://example.org/box", s.Source["url"])
	assert.Equal(t, []string{"fear"}, s.Emotions)
}

func TestDecodeRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"unknown emotion":    "emotions: [{name: joy}]\nstrategies: [{id: a, name: a, emotions: [fear]}]\n",
		"duplicate emotion":  "emotions: [{name: joy}, {name: JOY}]\n",
		"strategy needs id":  "strategies: [{name: a}]\n",
		"duplicate strategy": "strategies: [{id: a, name: a}, {id: a, name: b}]\n",
		"not yaml":           "emotions: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestExampleCatalogCoversTaxonomy(t *testing.T) {
	c, err := LoadFile("../../catalog.example.yaml")
	require.NoError(t, err)

	covered := map[string]bool{}
	for _, s := range c.Strategies {
		for _, e := range s.Emotions {
			covered[e] = true
		}
	}
	for _, label := range domain.EmotionTaxonomy {
		assert.True(t, covered[label], "no strategy for %s", label)
	}
}
