package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var tokenExpr = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vectorizer is a fitted TF-IDF transform exported as JSON.
type Vectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	Lowercase   *bool          `json:"lowercase,omitempty"`
	NgramRange  [2]int         `json:"ngram_range"`
	SublinearTF bool           `json:"sublinear_tf"`
	Norm        string         `json:"norm"`

	names []string
}

func (v *Vectorizer) prepare() error {
	if len(v.Vocabulary) == 0 {
		return fmt.Errorf("vectorizer: empty vocabulary")
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("vectorizer: idf has %d entries for %d terms", len(v.IDF), len(v.Vocabulary))
	}
	if v.NgramRange[0] <= 0 {
		v.NgramRange[0] = 1
	}
	if v.NgramRange[1] < v.NgramRange[0] {
		v.NgramRange[1] = v.NgramRange[0]
	}
	if v.Norm == "" {
		v.Norm = "l2"
	}

	v.names = make([]string, len(v.Vocabulary))
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.names) {
			return fmt.Errorf("vectorizer: term %q has index %d out of range", term, idx)
		}
		v.names[idx] = term
	}
	return nil
}

// Features returns the number of columns produced by Transform.
func (v *Vectorizer) Features() int {
	return len(v.IDF)
}

// Name returns the vocabulary term for a column.
func (v *Vectorizer) Name(idx int) string {
	if idx < 0 || idx >= len(v.names) {
		return ""
	}
	return v.names[idx]
}

// Transform maps text to a sparse, normalized TF-IDF vector.
func (v *Vectorizer) Transform(text string) map[int]float64 {
	if v.Lowercase == nil || *v.Lowercase {
		text = strings.ToLower(text)
	}

	counts := map[int]float64{}
	for _, term := range v.ngrams(tokenExpr.FindAllString(text, -1)) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	var norm float64
	for idx, tf := range counts {
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.IDF[idx]
		counts[idx] = w
		switch v.Norm {
		case "l2":
			norm += w * w
		case "l1":
			norm += math.Abs(w)
		}
	}

	switch v.Norm {
	case "l2":
		norm = math.Sqrt(norm)
	case "l1":
	default:
		return counts
	}
	if norm == 0 {
		return counts
	}
	for idx := range counts {
		counts[idx] /= norm
	}
	return counts
}

func (v *Vectorizer) ngrams(tokens []string) []string {
	lo, hi := v.NgramRange[0], v.NgramRange[1]
	var out []string
	if lo == 1 {
		out = append(out, tokens...)
		lo = 2
	}
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
