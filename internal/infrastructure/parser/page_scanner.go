package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CTIScraper/internal/dedup"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/scanner"
)

const maxPageEntries = 20

// Default selectors applied when a source configures none of its own.
var defaultSelectors = domain.Selectors{
	Article: "article",
	Title:   "h2",
	Link:    "a",
	Date:    "time",
	Summary: "p",
}

var whitespaceExpr = regexp.MustCompile(`\s+`)

// PageScanner extracts candidates from listing pages using CSS selectors.
type PageScanner struct {
	fetcher Fetcher
	logger  *slog.Logger
}

var _ scanner.Scanner = (*PageScanner)(nil)

// NewPageScanner wires a fetcher; nil logger discards output.
func NewPageScanner(fetcher Fetcher, logger *slog.Logger) *PageScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PageScanner{fetcher: fetcher, logger: logger.With("component", "page_scanner")}
}

// Name identifies the strategy inside the registry.
func (p *PageScanner) Name() string {
	return string(domain.MethodPage)
}

// Scan downloads the listing page and extracts up to maxPageEntries candidates.
func (p *PageScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	doc, base, err := p.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Candidate
	if req.Selectors.Empty() {
		candidates = extractGeneric(doc, base)
	} else {
		candidates = extractConfigured(doc, base, withDefaults(req.Selectors))
		if len(candidates) == 0 {
			p.logger.Debug("configured selectors matched nothing", "source", req.Source)
			candidates = extractGeneric(doc, base)
		}
	}

	p.logger.Debug("page parsed", "source", req.Source, "candidates", len(candidates))
	return candidates, nil
}

func (p *PageScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	resp, err := p.fetcher.GetHTML(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w: %w", domain.ErrParse, err)
	}

	base := resp.URL
	if base == nil {
		if base, err = url.Parse(pageURL); err != nil {
			return nil, nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
		}
	}
	return doc, base, nil
}

func withDefaults(sel domain.Selectors) domain.Selectors {
	if sel.Article == "" {
		sel.Article = defaultSelectors.Article
	}
	if sel.Title == "" {
		sel.Title = defaultSelectors.Title
	}
	if sel.Link == "" {
		sel.Link = defaultSelectors.Link
	}
	if sel.Date == "" {
		sel.Date = defaultSelectors.Date
	}
	if sel.Summary == "" {
		sel.Summary = defaultSelectors.Summary
	}
	return sel
}

func extractConfigured(doc *goquery.Document, base *url.URL, sel domain.Selectors) []domain.Candidate {
	var collected []domain.Candidate
	doc.Find(sel.Article).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		title := cleanText(node.Find(sel.Title).First().Text())
		href, ok := node.Find(sel.Link).First().Attr("href")
		if !ok || title == "" {
			return true
		}

		dateNode := node.Find(sel.Date).First()
		summary := cleanText(node.Find(sel.Summary).First().Text())

		if c, ok := newPageCandidate(base, href, title, summary, dateValue(dateNode)); ok {
			collected = append(collected, c)
		}
		return len(collected) < maxPageEntries
	})
	return collected
}

// extractGeneric scans <article> blocks and falls back to bare headings.
func extractGeneric(doc *goquery.Document, base *url.URL) []domain.Candidate {
	var collected []domain.Candidate
	doc.Find("article").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if c, ok := articleBlock(node, base); ok {
			collected = append(collected, c)
		}
		return len(collected) < maxPageEntries
	})
	if len(collected) > 0 {
		return collected
	}

	headings := doc.Find("h2, h3").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return strings.Contains(strings.ToLower(class), "post")
	})
	if headings.Length() == 0 {
		headings = doc.Find("h2, h3")
	}

	headings.EachWithBreak(func(i int, heading *goquery.Selection) bool {
		if i >= maxPageEntries {
			return false
		}
		href, ok := heading.Find("a").First().Attr("href")
		title := cleanText(heading.Text())
		if !ok || title == "" {
			return true
		}

		parent := heading.Parent()
		summary := cleanText(parent.Find("p").First().Text())
		if c, ok := newPageCandidate(base, href, title, summary, dateValue(parent.Find("time").First())); ok {
			collected = append(collected, c)
		}
		return true
	})
	return collected
}

func articleBlock(node *goquery.Selection, base *url.URL) (domain.Candidate, bool) {
	heading := node.Find("h1, h2, h3").First()
	title := cleanText(heading.Text())
	if title == "" {
		return domain.Candidate{}, false
	}

	href, ok := heading.Find("a").First().Attr("href")
	if !ok {
		href, ok = node.Find("a").First().Attr("href")
	}
	if !ok {
		return domain.Candidate{}, false
	}

	dateNode := node.Find("time").First()
	if dateNode.Length() == 0 {
		dateNode = firstWithClass(node, "date", "time", "published")
	}

	summaryNode := firstWithClass(node, "summary", "excerpt", "description")
	if summaryNode.Length() == 0 {
		summaryNode = node.Find("p").First()
	}

	return newPageCandidate(base, href, title, cleanText(summaryNode.Text()), dateValue(dateNode))
}

func firstWithClass(node *goquery.Selection, needles ...string) *goquery.Selection {
	return node.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		class = strings.ToLower(class)
		for _, needle := range needles {
			if strings.Contains(class, needle) {
				return true
			}
		}
		return false
	}).First()
}

func newPageCandidate(base *url.URL, href, title, summary string, published *time.Time) (domain.Candidate, bool) {
	link, err := resolveLink(base, href)
	if err != nil || link == "" {
		return domain.Candidate{}, false
	}

	c := domain.Candidate{
		URL:         link,
		Title:       title,
		Summary:     summary,
		Content:     summary,
		PublishedAt: published,
	}
	c.Fingerprint = dedup.Fingerprint(c.Title, c.URL, c.Content)
	return c, true
}

func resolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %s: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func dateValue(node *goquery.Selection) *time.Time {
	if node == nil || node.Length() == 0 {
		return nil
	}
	raw, ok := node.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = node.Text()
	}
	at, err := parseDate(raw)
	if err != nil {
		return nil
	}
	return &at
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}
