package emotion

import (
	"math"
	"strings"
	"unicode"

	"mindpal/internal/domain"
)

const Engine = "go-lexical-v2"

// Result is the lexical engine output. Emotion is a taxonomy label; Fine is
// the more specific cue that won, e.g. "anxiety" for fear.
type Result struct {
	Emotion   string                `json:"emotion"`
	Fine      string                `json:"fine_emotion,omitempty"`
	Intensity float64               `json:"intensity"`
	Scores    []domain.EmotionScore `json:"scores"`
}

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// neutralPrior keeps text without any cue on neutral and damps single weak cues.
const neutralPrior = 0.35

// Hints are matched as whole words or whole phrases on lower-cased text.
// Earlier groups win the Fine label when several match.
var emotionHints = []struct {
	emotion string
	hints   []string
}{
	{emotion: "anxiety", hints: []string{"stressed", "stress", "stressing", "anxious", "anxiety", "worried", "worry", "nervous", "panic", "panicking", "overwhelmed", "freaking out", "on edge", "cant sleep", "can not sleep"}},
	{emotion: "fear", hints: []string{"scared", "afraid", "terrified", "frightened", "fear", "creepy", "unsafe", "threatened"}},
	{emotion: "disgust", hints: []string{"gross", "disgusting", "disgusted", "ew", "eww", "yuck", "nasty", "revolting"}},
	{emotion: "frustration", hints: []string{"frustrated", "annoyed", "annoying", "irritated", "sick of", "fed up", "over it", "unfair"}},
	{emotion: "anger", hints: []string{"angry", "mad", "furious", "hate", "pissed", "rage", "livid"}},
	{emotion: "loneliness", hints: []string{"lonely", "alone", "left out", "no friends", "nobody cares", "ignored"}},
	{emotion: "disappointment", hints: []string{"disappointed", "let down", "failed", "fail", "rejected"}},
	{emotion: "guilt", hints: []string{"guilty", "my fault", "ashamed", "regret"}},
	{emotion: "embarrassment", hints: []string{"embarrassed", "embarrassing", "awkward", "cringe", "humiliated"}},
	{emotion: "sadness", hints: []string{"sad", "upset", "crying", "cry", "cried", "depressed", "miserable", "hurt", "heartbroken", "down", "unhappy", "empty", "hopeless"}},
	{emotion: "surprise", hints: []string{"surprised", "shocked", "omg", "wow", "unexpected", "cant believe", "can not believe", "no way"}},
	{emotion: "excitement", hints: []string{"excited", "hyped", "pumped", "stoked", "cant wait", "can not wait"}},
	{emotion: "gratitude", hints: []string{"thanks", "thank you", "grateful", "thankful", "appreciate"}},
	{emotion: "relief", hints: []string{"relieved", "relief", "finally"}},
	{emotion: "pride", hints: []string{"proud", "nailed it", "won"}},
	{emotion: "hope", hints: []string{"hope", "hopeful", "looking forward"}},
	{emotion: "joy", hints: []string{"happy", "glad", "great", "awesome", "amazing", "love", "loved", "fun", "yay", "good"}},
	{emotion: "boredom", hints: []string{"bored", "boring", "meh"}},
	{emotion: "confusion", hints: []string{"confused", "confusing", "idk", "do not get it", "dont get it"}},
	{emotion: "calm", hints: []string{"calm", "chill", "okay", "ok", "fine", "alright", "relaxed"}},
}

var negators = map[string]bool{
	"not": true, "never": true, "no": true, "dont": true, "isnt": true, "wasnt": true, "aint": true,
}

func coarseOf(emotion string) string {
	switch emotion {
	case "calm", "boredom", "confusion":
		return "neutral"
	case "relief", "gratitude", "excitement", "hope", "pride":
		return "joy"
	case "anxiety":
		return "fear"
	case "frustration":
		return "anger"
	case "disappointment", "guilt", "embarrassment", "loneliness":
		return "sadness"
	default:
		return emotion
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	})
}

// findPhrase returns the word index of every occurrence of the hint phrase.
func findPhrase(words, phrase []string) []int {
	var hits []int
	for i := 0; i+len(phrase) <= len(words); i++ {
		ok := true
		for j, p := range phrase {
			if strings.ReplaceAll(words[i+j], "'", "") != p {
				ok = false
				break
			}
		}
		if ok {
			hits = append(hits, i)
		}
	}
	return hits
}

func negated(words []string, at int) bool {
	for i := at - 1; i >= 0 && i >= at-2; i-- {
		if negators[strings.ReplaceAll(words[i], "'", "")] {
			return true
		}
	}
	return false
}

// fineScores accumulates cue weights per fine emotion. A negated positive or
// calm cue counts toward sadness instead; a negated negative cue counts half.
func fineScores(text string) (map[string]float64, string) {
	words := tokenize(text)
	scores := make(map[string]float64)
	first := ""
	for _, item := range emotionHints {
		for _, h := range item.hints {
			phrase := strings.Fields(h)
			weight := 1.0 + math.Min(float64(len(h))/10.0, 1.0)
			for _, at := range findPhrase(words, phrase) {
				target, w := item.emotion, weight
				if negated(words, at) {
					switch coarseOf(item.emotion) {
					case "joy", "neutral":
						target = "sadness"
					default:
						w = weight / 2
					}
				}
				scores[target] += w
				if first == "" {
					first = target
				}
			}
		}
	}

	if strings.ContainsAny(text, "!！") {
		scores["excitement"] += 0.3
		scores["anger"] += 0.2
		scores["surprise"] += 0.2
	}
	if strings.ContainsAny(text, "?？") {
		scores["confusion"] += 0.3
		scores["surprise"] += 0.2
		scores["anxiety"] += 0.2
	}
	return scores, first
}

func coarseScoresFromFine(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(domain.EmotionTaxonomy))
	for _, label := range domain.EmotionTaxonomy {
		out[label] = 0
	}
	for emo, s := range scores {
		out[coarseOf(emo)] += s
	}
	return out
}

// distribution turns raw coarse scores into probabilities over the taxonomy.
func distribution(coarse map[string]float64) []domain.EmotionScore {
	coarse["neutral"] += neutralPrior
	total := 0.0
	for _, v := range coarse {
		total += v
	}
	out := make([]domain.EmotionScore, 0, len(domain.EmotionTaxonomy))
	for _, label := range domain.EmotionTaxonomy {
		out = append(out, domain.EmotionScore{Label: label, Score: round(coarse[label]/total, 6)})
	}
	return Rank(out)
}

// Analyze scores text over the taxonomy. Empty text is neutral.
func (a *Analyzer) Analyze(text string) Result {
	scores, first := fineScores(strings.TrimSpace(text))
	ranked := distribution(coarseScoresFromFine(scores))
	top := ranked[0]

	fine := top.Label
	if first != "" && coarseOf(first) == top.Label {
		fine = first
	}
	return Result{
		Emotion:   top.Label,
		Fine:      fine,
		Intensity: top.Score,
		Scores:    ranked,
	}
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
