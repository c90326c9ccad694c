package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"CTIScraper/internal/ports"
)

// Containers probed in order when readability finds no main content.
var contentContainers = []string{"article", "[class*=content]", "main", "body"}

// ContentExtractor retrieves the readable body of an article page.
type ContentExtractor struct {
	fetcher Fetcher
	logger  *slog.Logger
}

var _ ports.ContentFetcher = (*ContentExtractor)(nil)

// NewContentExtractor wires a fetcher; nil logger discards output.
func NewContentExtractor(fetcher Fetcher, logger *slog.Logger) *ContentExtractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContentExtractor{fetcher: fetcher, logger: logger.With("component", "content_extractor")}
}

// FullContent downloads pageURL and returns its paragraphs joined by blank lines.
func (c *ContentExtractor) FullContent(ctx context.Context, pageURL string) (string, error) {
	resp, err := c.fetcher.GetHTML(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", pageURL, err)
	}

	base := resp.URL
	if base == nil {
		if base, err = url.Parse(pageURL); err != nil {
			return "", fmt.Errorf("invalid article url %s: %w", pageURL, err)
		}
	}

	if text := readableText(resp.Body, base); text != "" {
		return text, nil
	}
	c.logger.Debug("readability found no content", "url", pageURL)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	return containerText(doc.Selection), nil
}

func readableText(body []byte, base *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	doc.Find("figure, aside, script, style").Remove()
	return paragraphs(doc.Selection)
}

func containerText(root *goquery.Selection) string {
	root.Find("script, style, nav, footer").Remove()
	for _, sel := range contentContainers {
		node := root.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := paragraphs(node); text != "" {
			return text
		}
	}
	return ""
}

func paragraphs(root *goquery.Selection) string {
	var parts []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := cleanText(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
