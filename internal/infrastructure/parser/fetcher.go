package parser

import (
	"context"

	"CTIScraper/internal/infrastructure/httpfetch"
)

// Fetcher downloads documents; *httpfetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*httpfetch.Response, error)
	GetHTML(ctx context.Context, rawURL string) (*httpfetch.Response, error)
}

var _ Fetcher = (*httpfetch.Client)(nil)
