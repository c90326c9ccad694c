package scoring

import (
	"regexp"
	"strings"
	"sync"
)

type matcher struct {
	keyword string
	re      *regexp.Regexp
}

func (m matcher) match(text string) bool {
	return m.re.MatchString(text)
}

type categories struct {
	perfect      []matcher
	good         []matcher
	lolbas       []matcher
	intelligence []matcher
	negative     []matcher
}

var (
	compileOnce sync.Once
	compiled    categories
)

func tables() *categories {
	compileOnce.Do(func() {
		compiled = categories{
			perfect:      compileAll(perfectDiscriminators),
			good:         compileAll(goodDiscriminators),
			lolbas:       compileAll(lolbasExecutables),
			intelligence: compileAll(intelligenceIndicators),
			negative:     compileAll(negativeIndicators),
		}
	})
	return &compiled
}

// compileAll drops repeated keywords so every match counts once.
func compileAll(keywords []string) []matcher {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]matcher, 0, len(keywords))
	for _, kw := range keywords {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, matcher{keyword: kw, re: compileKeyword(kw)})
	}
	return out
}

func compileKeyword(keyword string) *regexp.Regexp {
	if _, ok := rawPatterns[keyword]; ok {
		return regexp.MustCompile("(?i)" + keyword)
	}
	return regexp.MustCompile("(?i)" + keywordPattern(keyword))
}

// keywordPattern maps a literal keyword to its matching mode.
func keywordPattern(keyword string) string {
	escaped := regexp.QuoteMeta(keyword)
	lower := strings.ToLower(keyword)

	if _, ok := partialKeywords[lower]; ok {
		return escaped
	}
	if _, ok := wildcardKeywords[lower]; ok {
		return escaped + `\w*`
	}
	if _, ok := symbolKeywords[keyword]; ok {
		return escaped
	}
	if strings.HasPrefix(keyword, "-") || strings.HasSuffix(keyword, "-") {
		return `(?:^|[^a-zA-Z])` + escaped + `(?:[^a-zA-Z]|$)`
	}
	if strings.HasSuffix(keyword, ".exe") {
		return extensionPattern(keyword[:len(keyword)-4], "exe", false)
	}
	if strings.HasSuffix(keyword, ".dll") {
		return extensionPattern(keyword[:len(keyword)-4], "dll", true)
	}
	return `\b` + escaped + `\b`
}

// extensionPattern lets short names match bare when not followed by an
// alphanumeric. Longer .exe names need the extension; longer .dll names may
// omit it.
func extensionPattern(base, ext string, optionalForLong bool) string {
	if base == "" {
		return `\.` + ext + `\b`
	}
	quoted := regexp.QuoteMeta(base)
	if len(base) <= 3 {
		return `\b` + quoted + `(?:\.` + ext + `\b|[^a-zA-Z0-9]|$)`
	}
	if optionalForLong {
		return `\b` + quoted + `(?:\.` + ext + `)?\b`
	}
	return `\b` + quoted + `\.` + ext + `\b`
}
