package chunking

import (
	"strings"

	"CTIScraper/internal/domain"
)

const (
	DefaultWindowSize = 500
	DefaultWindowStep = 250
)

// ChunkForAnnotation slides a fixed character window over content. Each
// window is cut back to its last space so chunks end on word boundaries.
// Non-positive sizes fall back to the defaults.
func (c *Chunker) ChunkForAnnotation(content string, size, step int) []domain.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultWindowSize
	}
	if step <= 0 {
		step = DefaultWindowStep
	}

	runes := []rune(normalize(content))
	var chunks []domain.Chunk

	for pos := 0; pos < len(runes); pos += step {
		end := min(pos+size, len(runes))
		if end < len(runes) {
			if space := lastSpace(runes, pos, end); space > pos {
				end = space
			}
		}

		text := strings.TrimSpace(string(runes[pos:end]))
		if text == "" {
			continue
		}
		chunk := domain.Chunk{
			Index:         len(chunks),
			Text:          text,
			Start:         pos,
			End:           end,
			WordCount:     countWords(text),
			SentenceCount: len(splitSentences(text)),
		}
		tag(&chunk)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
