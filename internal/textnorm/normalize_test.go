package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "only spaces", in: "  \t\n ", want: ""},
		{name: "stress message", in: "  I'm SO stressed about exams!!  ", want: "i am so stressed about exams"},
		{name: "contraction", in: "I can't sleep", want: "i can not sleep"},
		{name: "curly apostrophe", in: "I’m fine, they’re not", want: "i am fine they are not"},
		{name: "wrapped contraction", in: `she said "don't"`, want: "she said do not"},
		{name: "regular suffix", in: "We'll see, you'd know", want: "we will see you would know"},
		{name: "symbols dropped", in: "a+b=c $5 ~ok~", want: "abc 5 ok"},
		{name: "emoji kept", in: "so happy 😊!", want: "so happy 😊"},
		{name: "hyphen joins", in: "well-being", want: "wellbeing"},
		{name: "compatibility capital", in: "ℌello", want: "hello"},
		{name: "double-struck capital", in: "ℝeal", want: "real"},
		{name: "mark rejoins base", in: "e.\u0301", want: "\u00e9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  I'm SO stressed about exams!!  ",
		"That fit is FIRE, no cap",
		"I won't go... can't make me!",
		"Ｆｕｌｌｗｉｄｔｈ text",
		"so happy 😊",
		"ℌello",
		"ℝeal",
		"e.\u0301",
		"ＡＢＣ ﬁne Ⅻ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
