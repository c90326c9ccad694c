// Package httpfetch performs identified GET requests with bounded retries.
package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"
)

const (
	DefaultUserAgent = "CTI-Scraper/1.0 (Threat Intelligence Aggregator)"
	DefaultTimeout   = 30 * time.Second
	DefaultAttempts  = 3
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = 10 * time.Second

	maxBodyBytes = 16 << 20
)

// Config tunes identification, timeouts and the retry budget.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(DefaultMaxDelay, c.BaseDelay)
	}
	return c
}

// Response is a fully read HTTP body.
type Response struct {
	URL         *url.URL
	ContentType string
	Body        []byte
}

// Client fetches documents for the feed and page parsers.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// New wires an HTTP client; nil client and zero config values get defaults.
func New(client *http.Client, cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: client, cfg: cfg, logger: logger}
}

// Get downloads rawURL, retrying transient failures with exponential backoff.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	var resp *Response
	attempt := 0

	op := func() error {
		attempt++
		r, err := c.once(ctx, rawURL)
		if err != nil {
			if IsTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("fetch retry", "url", rawURL, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, c.policy(ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetHTML downloads rawURL and decodes the body to UTF-8 using the declared
// or sniffed charset.
func (c *Client) GetHTML(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	decoded, err := decode(resp.Body, resp.ContentType)
	if err == nil {
		resp.Body = decoded
	}
	return resp, nil
}

// Attempts returns the configured attempt budget.
func (c *Client) Attempts() int {
	return c.cfg.Attempts
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseDelay
	exp.MaxInterval = c.cfg.MaxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.Attempts-1)), ctx)
}

func (c *Client) once(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(rawURL, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransientError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		URL:         resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func decode(body []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}
