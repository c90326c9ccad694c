package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
)

func scrape(t *testing.T, p *Prometheus) string {
	t.Helper()
	server := httptest.NewServer(p.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusCounters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.SourcePolled(domain.MethodFeed, true, 120*time.Millisecond)
	p.SourcePolled(domain.MethodFeed, false, time.Second)
	p.SourcePolled(domain.MethodPage, false, time.Second)
	p.ArticlesSaved(3)
	p.ArticlesSaved(0)
	p.DuplicatesSkipped(2)
	p.ChunksClassified(domain.LabelHuntable, 4)

	body := scrape(t, p)
	assert.Contains(t, body, `cti_scraper_source_polls_total{method="feed",result="success"} 1`)
	assert.Contains(t, body, `cti_scraper_source_polls_total{method="feed",result="failure"} 1`)
	assert.Contains(t, body, `cti_scraper_source_polls_total{method="page",result="failure"} 1`)
	assert.Contains(t, body, `cti_scraper_source_poll_duration_seconds_count{method="feed"} 2`)
	assert.Contains(t, body, "cti_scraper_articles_saved_total 3")
	assert.Contains(t, body, "cti_scraper_duplicates_skipped_total 2")
	assert.Contains(t, body, `cti_scraper_chunks_classified_total{label="huntable"} 4`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var m Noop
	m.SourcePolled(domain.MethodFeed, true, time.Second)
	m.ArticlesSaved(1)
	m.DuplicatesSkipped(1)
	m.ChunksClassified("x", 1)
}
