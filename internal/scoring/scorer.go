package scoring

import (
	"math"
	"strings"
)

// Category weights; each category approaches but never reaches its maximum.
const (
	PerfectMax      = 75.0
	GoodMax         = 5.0
	LOLBASMax       = 10.0
	IntelligenceMax = 10.0
	NegativeMax     = 10.0

	ScoreCap = 99.9
)

// Result is the hunt score with the keywords that produced it.
type Result struct {
	Score        float64
	Perfect      []string
	Good         []string
	LOLBAS       []string
	Intelligence []string
	Negative     []string
}

// Score rates title, summary and content for threat-hunting relevance.
func Score(title, summary, content string) Result {
	res := Result{
		Perfect:      []string{},
		Good:         []string{},
		LOLBAS:       []string{},
		Intelligence: []string{},
		Negative:     []string{},
	}
	if content == "" && summary == "" {
		return res
	}

	text := strings.ToLower(title) + " " + strings.ToLower(summary) + " " + strings.ToLower(content)
	t := tables()

	res.Perfect = collect(t.perfect, text)
	res.Good = collect(t.good, text)
	res.LOLBAS = collect(t.lolbas, text)
	res.Intelligence = collect(t.intelligence, text)
	res.Negative = collect(t.negative, text)

	total := geometric(len(res.Perfect), PerfectMax) +
		geometric(len(res.Good), GoodMax) +
		geometric(len(res.LOLBAS), LOLBASMax) +
		geometric(len(res.Intelligence), IntelligenceMax) -
		geometric(len(res.Negative), NegativeMax)

	total = math.Max(0, math.Min(ScoreCap, total))
	res.Score = math.RoundToEven(total*10) / 10
	return res
}

// Matches reports whether keyword matches text under its matching mode.
func Matches(keyword, text string) bool {
	return compileKeyword(keyword).MatchString(text)
}

func collect(matchers []matcher, text string) []string {
	out := []string{}
	for _, m := range matchers {
		if m.match(text) {
			out = append(out, m.keyword)
		}
	}
	return out
}

func geometric(n int, limit float64) float64 {
	if n == 0 {
		return 0
	}
	return limit * (1 - math.Pow(0.5, float64(n)))
}
