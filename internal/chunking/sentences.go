package chunking

import (
	"strings"
	"unicode"
)

// splitSentences breaks text after '.', '!' or '?' when the following
// whitespace run either precedes an uppercase ASCII letter or contains a
// newline.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		begin int
	)

	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[begin:end])); s != "" {
			out = append(out, s)
		}
	}

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		newline := false
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newline = true
			}
			j++
		}
		if j == i+1 {
			continue
		}
		upperNext := j < len(runes) && runes[j] >= 'A' && runes[j] <= 'Z'
		if !upperNext && !newline {
			continue
		}
		emit(i + 1)
		begin = j
		i = j - 1
	}
	emit(len(runes))
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
