package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/dedup"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/scanner"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestPageScannerConfiguredSelectors(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div class="post">
	  <span class="headline">Cobalt Strike beacons</span>
	  <a class="more" href="/posts/cobalt">read</a>
	  <span class="when" datetime="2024-02-10T12:00:00Z">Feb 10</span>
	  <div class="teaser">Beacon configs  extracted.</div>
	</div>
	<div class="post">
	  <span class="headline"></span>
	  <a class="more" href="/posts/empty">read</a>
	</div>
	</body></html>`

	server := serve(html, "text/html; charset=utf-8")
	defer server.Close()

	ps := NewPageScanner(newTestFetcher(t, server), nil)
	assert.Equal(t, "page", ps.Name())

	items, err := ps.Scan(context.Background(), scanner.Request{
		Source: "vendor",
		URL:    server.URL + "/blog/",
		Selectors: domain.Selectors{
			Article: "div.post",
			Title:   ".headline",
			Link:    "a.more",
			Date:    ".when",
			Summary: ".teaser",
		},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, server.URL+"/posts/cobalt", item.URL)
	assert.Equal(t, "Cobalt Strike beacons", item.Title)
	assert.Equal(t, "Beacon configs extracted.", item.Summary)
	assert.Equal(t, item.Summary, item.Content)
	require.NotNil(t, item.PublishedAt)
	assert.True(t, item.PublishedAt.Equal(time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, dedup.Fingerprint(item.Title, item.URL, item.Summary), item.Fingerprint)
}

func TestPageScannerFallsBackWhenSelectorsMatchNothing(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<article><h2><a href="/p/1">Real post</a></h2></article>
	</body></html>`

	server := serve(html, "text/html; charset=utf-8")
	defer server.Close()

	ps := NewPageScanner(newTestFetcher(t, server), nil)
	items, err := ps.Scan(context.Background(), scanner.Request{
		Source:    "vendor",
		URL:       server.URL + "/blog/",
		Selectors: domain.Selectors{Article: ".post-card-redesigned"},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Real post", items[0].Title)
	assert.Equal(t, server.URL+"/p/1", items[0].URL)
}

func TestExtractGenericArticles(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<article>
	  <h2><a href="/a/one">First report</a></h2>
	  <span class="post-date">2024-01-15</span>
	  <p>Intro paragraph.</p>
	  <div class="entry-summary">The proper summary.</div>
	</article>
	<article>
	  <h3>Second report</h3>
	  <a href="https://other.example.com/two">link</a>
	  <time datetime="2024-01-14">yesterday</time>
	  <p>Second intro.</p>
	</article>
	<article><p>No heading here</p></article>
	</body></html>`

	items := extractGeneric(mustDoc(t, html), mustURL(t, "https://vendor.example.com/blog/"))
	require.Len(t, items, 2)

	assert.Equal(t, "https://vendor.example.com/a/one", items[0].URL)
	assert.Equal(t, "First report", items[0].Title)
	assert.Equal(t, "The proper summary.", items[0].Summary)
	require.NotNil(t, items[0].PublishedAt)
	assert.True(t, items[0].PublishedAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "https://other.example.com/two", items[1].URL)
	assert.Equal(t, "Second intro.", items[1].Summary)
	require.NotNil(t, items[1].PublishedAt)
	assert.True(t, items[1].PublishedAt.Equal(time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)))
}

func TestExtractGenericHeadingFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div><h2 class="post-title"><a href="posts/alpha">Alpha</a></h2><p>Alpha teaser</p></div>
	<div><h2 class="post-title">No anchor</h2></div>
	<div><h3>Sidebar <a href="/ignored">x</a></h3></div>
	</body></html>`

	items := extractGeneric(mustDoc(t, html), mustURL(t, "https://vendor.example.com/blog/"))
	require.Len(t, items, 1)
	assert.Equal(t, "https://vendor.example.com/blog/posts/alpha", items[0].URL)
	assert.Equal(t, "Alpha", items[0].Title)
	assert.Equal(t, "Alpha teaser", items[0].Summary)
	assert.Nil(t, items[0].PublishedAt)
}

func TestExtractGenericCapsEntries(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range 30 {
		fmt.Fprintf(&b, `<article><h2><a href="/p/%d">Post %d</a></h2></article>`, i, i)
	}
	b.WriteString("</body></html>")

	items := extractGeneric(mustDoc(t, b.String()), mustURL(t, "https://vendor.example.com/"))
	assert.Len(t, items, maxPageEntries)
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	base := mustURL(t, "https://vendor.example.com/research/index.html")

	cases := map[string]string{
		"/abs/path":               "https://vendor.example.com/abs/path",
		"rel/path":                "https://vendor.example.com/research/rel/path",
		"https://x.example.com/y": "https://x.example.com/y",
		"#top":                    "",
		"javascript:void(0)":      "",
	}
	for href, want := range cases {
		got, err := resolveLink(base, href)
		require.NoError(t, err, href)
		assert.Equal(t, want, got, href)
	}
}
