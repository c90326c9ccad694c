package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"CTIScraper/internal/dedup"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
	"CTIScraper/internal/scoring"
)

const (
	defaultConcurrency  = 5
	defaultPollTimeout  = 30 * time.Second
	defaultLockTTL      = 10 * time.Minute
	maxEvidencePerGroup = 10
)

// IngestionDeps wires the driven adapters of the polling workflow.
type IngestionDeps struct {
	// Sources is the configured roster, upserted before polling. When empty
	// the stored sources are polled as they are.
	Sources    []domain.Source
	Repository IngestionRepository
	Fetcher    ports.CandidateSource
	Content    ports.ContentFetcher
	Locker     ports.SourceLocker
	Metrics    ports.Metrics
	Clock      ports.Clock
	Logger     *slog.Logger

	Concurrency int
	PollTimeout time.Duration
	LockTTL     time.Duration
}

// Ingestion polls sources, deduplicates their candidates and persists new articles.
type Ingestion struct {
	sources     []domain.Source
	repo        IngestionRepository
	fetcher     ports.CandidateSource
	content     ports.ContentFetcher
	locker      ports.SourceLocker
	metrics     ports.Metrics
	clock       ports.Clock
	logger      *slog.Logger
	dedup       *dedup.Deduplicator
	concurrency int
	pollTimeout time.Duration
	lockTTL     time.Duration
}

// IngestionRepository is the storage the ingestion workflow needs.
type IngestionRepository interface {
	ports.SourceRepository
	ports.ArticleRepository
}

// SourceError attributes a failure to one source.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// PollSummary aggregates one pass over every active source.
type PollSummary struct {
	RunID             string        `json:"run_id"`
	FeedSources       int           `json:"rss_sources"`
	PageSources       int           `json:"web_sources"`
	NotDue            int           `json:"not_due"`
	TotalFound        int           `json:"total_found"`
	NewSaved          int           `json:"new_saved"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	Errors            []SourceError `json:"errors"`
	Duration          time.Duration `json:"-"`
	DurationSeconds   float64       `json:"duration_seconds"`
}

// PollResult describes one source poll.
type PollResult struct {
	Source     string             `json:"source"`
	Method     domain.CheckMethod `json:"method"`
	Success    bool               `json:"success"`
	Found      int                `json:"found"`
	NewSaved   int                `json:"new_articles_saved"`
	Duplicates int                `json:"duplicates"`
	Error      string             `json:"error,omitempty"`
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewIngestion constructs the orchestrator; nil adapters get inert defaults.
func NewIngestion(deps IngestionDeps) *Ingestion {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	pollTimeout := deps.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &Ingestion{
		sources:     deps.Sources,
		repo:        deps.Repository,
		fetcher:     deps.Fetcher,
		content:     deps.Content,
		locker:      deps.Locker,
		metrics:     metrics,
		clock:       clock,
		logger:      logger.With("component", "ingestion"),
		dedup:       dedup.New(deps.Repository),
		concurrency: concurrency,
		pollTimeout: pollTimeout,
		lockTTL:     lockTTL,
	}
}

// PollAll polls every due active source, feed sources first, then page sources.
func (i *Ingestion) PollAll(ctx context.Context) (PollSummary, error) {
	if i.repo == nil || i.fetcher == nil {
		return PollSummary{}, errors.New("ingestion is not configured")
	}

	started := i.clock.Now()
	summary := PollSummary{RunID: uuid.NewString(), Errors: []SourceError{}}
	log := i.logger.With("run_id", summary.RunID)

	sources, syncErrs := i.activeSources(ctx)
	summary.Errors = append(summary.Errors, syncErrs...)

	var feeds, pages []domain.Source
	for _, src := range sources {
		if src.Method() == domain.MethodFeed {
			feeds = append(feeds, src)
		} else {
			pages = append(pages, src)
		}
	}
	summary.FeedSources = len(feeds)
	summary.PageSources = len(pages)
	log.Info("poll started", "feed_sources", len(feeds), "page_sources", len(pages))

	var mu sync.Mutex
	collect := func(src domain.Source, res PollResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.TotalFound += res.Found
		summary.NewSaved += res.NewSaved
		summary.DuplicatesSkipped += res.Duplicates
		switch {
		case err != nil:
			summary.Errors = append(summary.Errors, SourceError{Source: src.Identifier, Error: err.Error()})
		case !res.Success:
			summary.Errors = append(summary.Errors, SourceError{Source: src.Identifier, Error: res.Error})
		}
	}

	finish := func() {
		summary.Duration = i.clock.Now().Sub(started)
		summary.DurationSeconds = summary.Duration.Seconds()
	}

	for _, group := range [][]domain.Source{feeds, pages} {
		if err := ctx.Err(); err != nil {
			finish()
			return summary, err
		}
		var due []domain.Source
		now := i.clock.Now()
		for _, src := range group {
			if src.Due(now) {
				due = append(due, src)
			} else {
				summary.NotDue++
			}
		}
		if err := i.pollGroup(ctx, log, due, collect); err != nil {
			finish()
			return summary, err
		}
	}

	finish()
	log.Info("poll finished",
		"total_found", summary.TotalFound,
		"new_saved", summary.NewSaved,
		"duplicates", summary.DuplicatesSkipped,
		"errors", len(summary.Errors),
		"not_due", summary.NotDue,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (i *Ingestion) pollGroup(ctx context.Context, log *slog.Logger, group []domain.Source, collect func(domain.Source, PollResult, error)) error {
	if len(group) == 0 {
		return nil
	}
	pool, err := ants.NewPool(min(i.concurrency, len(group)))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, src := range group {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			res, err := i.poll(ctx, log, src)
			collect(src, res, err)
		})
		if err != nil {
			wg.Done()
			collect(src, PollResult{Source: src.Identifier}, fmt.Errorf("submit poll: %w", err))
		}
	}
	wg.Wait()
	return nil
}

// PollSource polls one source regardless of its schedule.
func (i *Ingestion) PollSource(ctx context.Context, identifier string) (PollResult, error) {
	if i.repo == nil || i.fetcher == nil {
		return PollResult{}, errors.New("ingestion is not configured")
	}

	src, err := i.resolveSource(ctx, identifier)
	if err != nil {
		return PollResult{Source: identifier}, err
	}
	if !src.Active {
		return PollResult{Source: identifier}, fmt.Errorf("source %s: %w", identifier, domain.ErrSourceInactive)
	}
	return i.poll(ctx, i.logger, src)
}

func (i *Ingestion) activeSources(ctx context.Context) ([]domain.Source, []SourceError) {
	var errs []SourceError
	if len(i.sources) == 0 {
		stored, err := i.repo.ListSources(ctx, true)
		if err != nil {
			return nil, []SourceError{{Source: "*", Error: fmt.Sprintf("list sources: %v", err)}}
		}
		return stored, nil
	}

	var active []domain.Source
	for _, cfg := range i.sources {
		src, err := i.repo.UpsertSource(ctx, cfg)
		if err != nil {
			errs = append(errs, SourceError{Source: cfg.Identifier, Error: fmt.Sprintf("sync source: %v", err)})
			continue
		}
		if src.Active {
			active = append(active, src)
		}
	}
	return active, errs
}

func (i *Ingestion) resolveSource(ctx context.Context, identifier string) (domain.Source, error) {
	for _, cfg := range i.sources {
		if cfg.Identifier == identifier {
			src, err := i.repo.UpsertSource(ctx, cfg)
			if err != nil {
				return domain.Source{}, fmt.Errorf("sync source %s: %w", identifier, err)
			}
			return src, nil
		}
	}
	return i.repo.GetSource(ctx, identifier)
}

func (i *Ingestion) poll(ctx context.Context, log *slog.Logger, src domain.Source) (PollResult, error) {
	method := src.Method()
	res := PollResult{Source: src.Identifier, Method: method}
	log = log.With("source", src.Identifier, "method", method)

	if i.locker != nil {
		release, ok, err := i.locker.TryLock(ctx, "source:"+src.Identifier, i.lockTTL)
		if err != nil {
			return res, fmt.Errorf("lock source %s: %w", src.Identifier, err)
		}
		if !ok {
			return res, fmt.Errorf("source %s: %w", src.Identifier, domain.ErrSourceBusy)
		}
		defer release()
	}

	pollCtx, cancel := context.WithTimeout(ctx, i.pollTimeout)
	defer cancel()

	started := i.clock.Now()
	candidates, err := i.fetcher.Fetch(pollCtx, src)
	if err != nil {
		res.Error = err.Error()
		log.Warn("poll failed", "error", err)
		return res, i.record(ctx, src, res, started)
	}
	res.Found = len(candidates)

	for idx := range candidates {
		if err := pollCtx.Err(); err != nil {
			res.Error = fmt.Sprintf("aborted after %d of %d candidates: %v", idx, len(candidates), err)
			log.Warn("poll aborted", "saved", res.NewSaved, "error", err)
			return res, i.record(ctx, src, res, started)
		}
		saved, err := i.admit(pollCtx, log, src, &candidates[idx])
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			res.Duplicates++
		case err != nil:
			log.Error("save article", "url", candidates[idx].URL, "error", err)
		case saved:
			res.NewSaved++
		}
	}

	res.Success = true
	log.Info("poll succeeded", "found", res.Found, "saved", res.NewSaved, "duplicates", res.Duplicates)
	return res, i.record(ctx, src, res, started)
}

// admit returns domain.ErrDuplicate for candidates already stored.
func (i *Ingestion) admit(ctx context.Context, log *slog.Logger, src domain.Source, c *domain.Candidate) (bool, error) {
	fresh, err := i.dedup.Admit(ctx, c)
	if err != nil {
		return false, err
	}
	if !fresh {
		log.Debug("duplicate candidate", "url", c.URL)
		return false, domain.ErrDuplicate
	}

	content := c.Content
	if src.FetchFullContent && src.Method() == domain.MethodPage && i.content != nil {
		full, err := i.content.FullContent(ctx, c.URL)
		switch {
		case err != nil:
			log.Warn("full content unavailable", "url", c.URL, "error", err)
		case strings.TrimSpace(full) != "":
			content = full
		}
	}

	score := scoring.Score(c.Title, c.Summary, content)
	article := domain.Article{
		SourceID:     src.ID,
		URL:          c.URL,
		Title:        c.Title,
		Summary:      c.Summary,
		Content:      content,
		PublishedAt:  c.PublishedAt,
		Authors:      c.Authors,
		Fingerprint:  c.Fingerprint,
		Metadata:     articleMetadata(src, score),
		WordCount:    len(strings.Fields(content)),
		Status:       domain.StatusScraped,
		DiscoveredAt: i.clock.Now(),
	}

	saved, err := i.repo.SaveArticle(ctx, article)
	if errors.Is(err, domain.ErrDuplicate) {
		log.Debug("duplicate rejected by storage", "url", c.URL, "error", err)
		return false, err
	}
	if err != nil {
		return false, err
	}
	log.Info("article saved", "id", saved.ID, "url", saved.URL, "hunt_score", score.Score)
	return true, nil
}

func (i *Ingestion) record(ctx context.Context, src domain.Source, res PollResult, started time.Time) error {
	now := i.clock.Now()
	latency := now.Sub(started)

	check := domain.SourceCheck{
		SourceID:      src.ID,
		CheckedAt:     now,
		Success:       res.Success,
		Method:        res.Method,
		ArticlesFound: res.Found,
		Latency:       latency,
		Error:         res.Error,
	}
	health := domain.SourceHealth{Success: res.Success, CheckedAt: now, NewArticles: res.NewSaved}

	i.metrics.SourcePolled(res.Method, res.Success, latency)
	i.metrics.ArticlesSaved(res.NewSaved)
	i.metrics.DuplicatesSkipped(res.Duplicates)

	if _, err := i.repo.RecordCheck(context.WithoutCancel(ctx), check, health); err != nil {
		return fmt.Errorf("record check for %s: %w", src.Identifier, err)
	}
	return nil
}

func articleMetadata(src domain.Source, score scoring.Result) map[string]any {
	metadata := map[string]any{
		"hunt_score":           score.Score,
		"perfect_keywords":     firstN(score.Perfect),
		"good_keywords":        firstN(score.Good),
		"lolbas_matches":       firstN(score.LOLBAS),
		"intelligence_matches": firstN(score.Intelligence),
		"negative_matches":     firstN(score.Negative),
	}
	if src.Method() == domain.MethodFeed {
		metadata["source_feed_url"] = src.FeedURL
	} else {
		metadata["source_url"] = src.URL
	}
	return metadata
}

func firstN(values []string) []string {
	if len(values) > maxEvidencePerGroup {
		values = values[:maxEvidencePerGroup]
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

type noopMetrics struct{}

func (noopMetrics) SourcePolled(domain.CheckMethod, bool, time.Duration) {}
func (noopMetrics) ArticlesSaved(int)                                    {}
func (noopMetrics) DuplicatesSkipped(int)                                {}
func (noopMetrics) ChunksClassified(string, int)                         {}
