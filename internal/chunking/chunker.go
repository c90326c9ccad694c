// Package chunking splits article text into overlapping segments for classification.
package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"CTIScraper/internal/domain"
)

const (
	DefaultMinWords         = 150
	DefaultTargetWords      = 300
	DefaultMaxWords         = 500
	DefaultOverlapSentences = 1
)

var (
	codeBlockExpr   = regexp.MustCompile("```[\\s\\S]*?```|`[^`]+`")
	manyNewlineExpr = regexp.MustCompile(`\n{3,}`)
	manySpaceExpr   = regexp.MustCompile(` {2,}`)
)

// Chunker builds paragraph-based and sliding-window chunks.
type Chunker struct {
	minWords         int
	targetWords      int
	maxWords         int
	overlapSentences int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMinWords sets the smallest chunk closed on reaching the target size.
func WithMinWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.minWords = n
		}
	}
}

// WithTargetWords sets the word count at which a chunk is closed.
func WithTargetWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.targetWords = n
		}
	}
}

// WithMaxWords sets the word count a chunk may not exceed by adding a paragraph.
func WithMaxWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxWords = n
		}
	}
}

// WithOverlapSentences sets how many trailing sentences seed the next chunk.
func WithOverlapSentences(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapSentences = n
		}
	}
}

// New creates a Chunker with defaults 150/300/500 words and one sentence of overlap.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		minWords:         DefaultMinWords,
		targetWords:      DefaultTargetWords,
		maxWords:         DefaultMaxWords,
		overlapSentences: DefaultOverlapSentences,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkArticle splits content on paragraph boundaries. The title, when set,
// opens the first chunk. Code blocks are never split.
func (c *Chunker) ChunkArticle(content, title string) []domain.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	content = normalize(content)

	var blocks []string
	masked := codeBlockExpr.ReplaceAllStringFunc(content, func(block string) string {
		blocks = append(blocks, block)
		return placeholder(len(blocks) - 1)
	})

	chunks := c.build(splitParagraphs(masked), title)

	for i := range chunks {
		for j, block := range blocks {
			chunks[i].Text = strings.ReplaceAll(chunks[i].Text, placeholder(j), block)
		}
		tag(&chunks[i])
	}
	return chunks
}

func (c *Chunker) build(paragraphs []string, title string) []domain.Chunk {
	var (
		chunks  []domain.Chunk
		current string
		start   int
		pos     int
	)

	if title != "" {
		current = title + "\n\n"
		pos = runeLen(current)
	}

	for _, para := range paragraphs {
		paraWords := countWords(para)

		if countWords(current)+paraWords > c.maxWords && current != "" {
			chunks = append(chunks, newChunk(len(chunks), current, start))
			overlap := c.overlap(current)
			current = overlap + para + "\n\n"
			start = pos - runeLen(overlap)
		} else {
			current += para + "\n\n"
		}

		pos += runeLen(para) + 2

		words := countWords(current)
		if words >= c.targetWords && words >= c.minWords {
			chunks = append(chunks, newChunk(len(chunks), current, start))
			overlap := c.overlap(current)
			current = overlap
			start = pos - runeLen(overlap)
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, newChunk(len(chunks), current, start))
	}
	return chunks
}

// overlap returns the last N sentences followed by a space, or nothing when
// the text has no more than N sentences.
func (c *Chunker) overlap(text string) string {
	if c.overlapSentences <= 0 {
		return ""
	}
	sentences := splitSentences(text)
	if len(sentences) <= c.overlapSentences {
		return ""
	}
	return strings.Join(sentences[len(sentences)-c.overlapSentences:], " ") + " "
}

func newChunk(index int, text string, start int) domain.Chunk {
	text = strings.TrimSpace(text)
	return domain.Chunk{
		Index:         index,
		Text:          text,
		Start:         start,
		End:           start + runeLen(text),
		WordCount:     countWords(text),
		SentenceCount: len(splitSentences(text)),
	}
}

func normalize(text string) string {
	text = manyNewlineExpr.ReplaceAllString(text, "\n\n")
	text = manySpaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func placeholder(i int) string {
	return fmt.Sprintf("[[CODE_BLOCK_%d]]", i)
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
