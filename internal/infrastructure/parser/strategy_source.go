package parser

import (
	"context"
	"fmt"
	"log/slog"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
	"CTIScraper/internal/scanner"
)

// StrategySource dispatches a source to the scanner matching its check method.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires a scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// NewDefaultRegistry registers the feed and page strategies on one fetcher.
func NewDefaultRegistry(fetcher Fetcher, log *slog.Logger) *scanner.Registry {
	reg := scanner.NewRegistry()
	reg.Register(NewFeedScanner(fetcher, log))
	reg.Register(NewPageScanner(fetcher, log))
	return reg
}

// Fetch runs the scanner for src and returns its candidates.
func (s *StrategySource) Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	method := src.Method()
	strategy, err := s.registry.Resolve(string(method))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Identifier, err)
	}

	req := scanner.Request{
		Source:    src.Identifier,
		URL:       src.URL,
		Selectors: src.Selectors,
	}
	if method == domain.MethodFeed {
		req.URL = src.FeedURL
	}

	s.debug("scan source", "source", src.Identifier, "scanner", strategy.Name(), "url", req.URL)
	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", src.Identifier, err)
	}
	s.debug("source produced candidates", "source", src.Identifier, "count", len(results))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
