package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentExtractorFullContent(t *testing.T) {
	t.Parallel()

	first := strings.Repeat("The actor staged payloads with certutil and rundll32 before moving laterally. ", 8)
	second := strings.Repeat("Defenders should hunt for scheduled tasks created from temp directories. ", 8)
	html := `<html><head><title>Report</title></head><body>
	<nav><a href="/">Home</a></nav>
	<article><h1>Report</h1><p>` + first + `</p><p>` + second + `</p></article>
	<footer>copyright</footer>
	</body></html>`

	server := serve(html, "text/html; charset=utf-8")
	defer server.Close()

	text, err := NewContentExtractor(newTestFetcher(t, server), nil).FullContent(context.Background(), server.URL+"/report")
	require.NoError(t, err)
	assert.Contains(t, text, strings.TrimSpace(first))
	assert.Contains(t, text, strings.TrimSpace(second))
	assert.NotContains(t, text, "copyright")
}

func TestContainerTextFallsBackThroughContainers(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
	<div class="page-content"><p>One.</p><p>  </p><p>Two   words.</p></div>
	<script>var x = 1;</script>
	</body></html>`)

	assert.Equal(t, "One.\n\nTwo words.", containerText(doc.Selection))
}

func TestContainerTextEmpty(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><div>no paragraphs</div></body></html>`)
	assert.Empty(t, containerText(doc.Selection))
}
