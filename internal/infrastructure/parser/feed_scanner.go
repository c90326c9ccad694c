package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"CTIScraper/internal/dedup"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/scanner"
)

// FeedScanner extracts candidates from RSS, Atom and JSON feeds.
type FeedScanner struct {
	fetcher Fetcher
	logger  *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires a fetcher; nil logger discards output.
func NewFeedScanner(fetcher Fetcher, logger *slog.Logger) *FeedScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FeedScanner{fetcher: fetcher, logger: logger.With("component", "feed_scanner")}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return string(domain.MethodFeed)
}

// Scan downloads and parses the feed at req.URL. Entries without a link or a
// title are skipped with a warning.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	resp, err := f.fetcher.Get(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", req.URL, err)
	}
	return f.Parse(resp.Body, req.Source)
}

// Parse converts a raw feed document into candidates.
func (f *FeedScanner) Parse(body []byte, source string) ([]domain.Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %w", domain.ErrParse, err)
	}

	candidates := make([]domain.Candidate, 0, len(feed.Items))
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		candidate, err := feedCandidate(item)
		if err != nil {
			f.logger.Warn("skip feed entry", "source", source, "index", i, "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}

	f.logger.Debug("feed parsed", "source", source, "entries", len(feed.Items), "candidates", len(candidates))
	return candidates, nil
}

func feedCandidate(item *gofeed.Item) (domain.Candidate, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return domain.Candidate{}, fmt.Errorf("entry url: %w", domain.ErrMissingField)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.Candidate{}, fmt.Errorf("entry %s title: %w", link, domain.ErrMissingField)
	}

	summary := strings.TrimSpace(item.Description)
	content := strings.TrimSpace(item.Content)
	if content == "" {
		content = summary
	}

	candidate := domain.Candidate{
		URL:         link,
		Title:       title,
		Summary:     summary,
		Content:     content,
		PublishedAt: entryDate(item),
		Authors:     entryAuthors(item),
	}
	candidate.Fingerprint = dedup.Fingerprint(candidate.Title, candidate.URL, candidate.Content)
	return candidate, nil
}

func entryDate(item *gofeed.Item) *time.Time {
	for _, parsed := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if parsed != nil {
			at := parsed.UTC()
			return &at
		}
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if at, err := parseDate(raw); err == nil {
			return &at
		}
	}
	return nil
}

var errEmptyDate = errors.New("empty date")

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errEmptyDate
	}
	at, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, err
	}
	return at.UTC(), nil
}

func entryAuthors(item *gofeed.Item) []string {
	var authors []string
	seen := map[string]struct{}{}
	add := func(p *gofeed.Person) {
		if p == nil {
			return
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = strings.TrimSpace(p.Email)
		}
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		authors = append(authors, name)
	}

	add(item.Author) //nolint:staticcheck // older feeds only populate Author
	for _, p := range item.Authors {
		add(p)
	}
	return authors
}
