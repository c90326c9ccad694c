// Package memory keeps every table in process memory, keyed by integer ID.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

// Store is an arena-style repository: rows reference each other by ID only.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	sources       map[int64]domain.Source
	sourceByIdent map[string]int64
	checks        map[int64]domain.SourceCheck
	articles      map[int64]domain.Article
	articleByURL  map[string]int64
	hashes        map[string]domain.ContentHashRecord
	chunkResults  map[int64]domain.ChunkResult
	feedback      map[int64]domain.Feedback
	models        map[int64]domain.ModelVersion

	nextSource, nextCheck, nextArticle, nextChunk, nextFeedback, nextModel int64
}

var _ ports.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		sources:       map[int64]domain.Source{},
		sourceByIdent: map[string]int64{},
		checks:        map[int64]domain.SourceCheck{},
		articles:      map[int64]domain.Article{},
		articleByURL:  map[string]int64{},
		hashes:        map[string]domain.ContentHashRecord{},
		chunkResults:  map[int64]domain.ChunkResult{},
		feedback:      map[int64]domain.Feedback{},
		models:        map[int64]domain.ModelVersion{},
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// UpsertSource creates the source or refreshes its configured fields.
func (s *Store) UpsertSource(_ context.Context, src domain.Source) (domain.Source, error) {
	if src.Identifier == "" {
		return domain.Source{}, fmt.Errorf("source identifier: %w", domain.ErrMissingField)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.sourceByIdent[src.Identifier]; ok {
		existing := s.sources[id]
		existing.Name = src.Name
		existing.URL = src.URL
		existing.FeedURL = src.FeedURL
		existing.CheckFrequency = src.CheckFrequency
		existing.Active = src.Active
		existing.Selectors = src.Selectors
		existing.FetchFullContent = src.FetchFullContent
		s.sources[id] = existing
		return cloneSource(existing), nil
	}

	s.nextSource++
	src.ID = s.nextSource
	s.sources[src.ID] = cloneSource(src)
	s.sourceByIdent[src.Identifier] = src.ID
	return cloneSource(src), nil
}

// GetSource looks a source up by identifier.
func (s *Store) GetSource(_ context.Context, identifier string) (domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sourceByIdent[identifier]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %s: %w", identifier, domain.ErrNotFound)
	}
	return cloneSource(s.sources[id]), nil
}

// ListSources returns sources ordered by ID.
func (s *Store) ListSources(_ context.Context, activeOnly bool) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Source, 0, len(s.sources))
	for _, id := range sortedKeys(s.sources) {
		src := s.sources[id]
		if activeOnly && !src.Active {
			continue
		}
		out = append(out, cloneSource(src))
	}
	return out, nil
}

// RecordCheck appends the check and applies the health delta under one lock.
func (s *Store) RecordCheck(_ context.Context, check domain.SourceCheck, health domain.SourceHealth) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[check.SourceID]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %d: %w", check.SourceID, domain.ErrNotFound)
	}

	s.nextCheck++
	check.ID = s.nextCheck
	s.checks[check.ID] = check

	src.Apply(health)
	s.sources[src.ID] = src
	return cloneSource(src), nil
}

// ListChecks returns the newest checks of a source first.
func (s *Store) ListChecks(_ context.Context, sourceID int64, limit int) ([]domain.SourceCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SourceCheck
	ids := sortedKeys(s.checks)
	for i := len(ids) - 1; i >= 0; i-- {
		check := s.checks[ids[i]]
		if check.SourceID != sourceID {
			continue
		}
		out = append(out, check)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// HashExists reports whether the fingerprint is indexed.
func (s *Store) HashExists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.hashes[fingerprint]
	return ok, nil
}

// SaveArticle inserts the article and its hash record atomically.
func (s *Store) SaveArticle(_ context.Context, article domain.Article) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[article.SourceID]; !ok {
		return domain.Article{}, fmt.Errorf("source %d: %w", article.SourceID, domain.ErrNotFound)
	}
	if _, ok := s.hashes[article.Fingerprint]; ok {
		return domain.Article{}, fmt.Errorf("fingerprint %s: %w", article.Fingerprint, domain.ErrDuplicate)
	}
	if _, ok := s.articleByURL[article.URL]; ok {
		return domain.Article{}, fmt.Errorf("url %s: %w", article.URL, domain.ErrDuplicate)
	}

	if article.DiscoveredAt.IsZero() {
		article.DiscoveredAt = s.now()
	}
	if article.Status == "" {
		article.Status = domain.StatusPending
	}

	s.nextArticle++
	article.ID = s.nextArticle
	s.articles[article.ID] = cloneArticle(article)
	s.articleByURL[article.URL] = article.ID
	s.hashes[article.Fingerprint] = domain.ContentHashRecord{
		Fingerprint: article.Fingerprint,
		ArticleID:   article.ID,
		FirstSeen:   article.DiscoveredAt,
	}
	return cloneArticle(article), nil
}

// GetArticle looks an article up by ID.
func (s *Store) GetArticle(_ context.Context, id int64) (domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article, ok := s.articles[id]
	if !ok {
		return domain.Article{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	return cloneArticle(article), nil
}

// ListArticles returns matching articles ordered by ID.
func (s *Store) ListArticles(_ context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analyzed := map[int64]bool{}
	if filter.WithoutChunkResults {
		for _, r := range s.chunkResults {
			analyzed[r.ArticleID] = true
		}
	}

	var out []domain.Article
	for _, id := range sortedKeys(s.articles) {
		article := s.articles[id]
		switch {
		case filter.SourceID != 0 && article.SourceID != filter.SourceID:
			continue
		case !filter.IncludeArchived && article.Archived:
			continue
		case analyzed[id]:
			continue
		}
		out = append(out, cloneArticle(article))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// UpdateArticleMetadata replaces the metadata bag and, when set, the status.
func (s *Store) UpdateArticleMetadata(_ context.Context, id int64, metadata map[string]any, status domain.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	article.Metadata = maps.Clone(metadata)
	if status != "" {
		article.Status = status
	}
	now := s.now()
	article.ModifiedAt = &now
	s.articles[id] = article
	return nil
}

// HasChunkResults reports whether the article was analyzed before.
func (s *Store) HasChunkResults(_ context.Context, articleID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.chunkResults {
		if r.ArticleID == articleID {
			return true, nil
		}
	}
	return false, nil
}

// SaveChunkResults stores results for one article, optionally dropping older rows.
func (s *Store) SaveChunkResults(_ context.Context, articleID int64, results []domain.ChunkResult, replace bool) ([]domain.ChunkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[articleID]; !ok {
		return nil, fmt.Errorf("article %d: %w", articleID, domain.ErrNotFound)
	}
	if replace {
		for id, r := range s.chunkResults {
			if r.ArticleID != articleID {
				continue
			}
			delete(s.chunkResults, id)
			for fid, fb := range s.feedback {
				if fb.ChunkResultID == id {
					fb.ChunkResultID = 0
					s.feedback[fid] = fb
				}
			}
		}
	}

	saved := make([]domain.ChunkResult, 0, len(results))
	for _, r := range results {
		r.ArticleID = articleID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		s.nextChunk++
		r.ID = s.nextChunk
		s.chunkResults[r.ID] = r
		saved = append(saved, r)
	}
	return saved, nil
}

// ListChunkResults returns results of an article ordered by chunk index.
func (s *Store) ListChunkResults(_ context.Context, articleID int64) ([]domain.ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChunkResult
	for _, id := range sortedKeys(s.chunkResults) {
		if r := s.chunkResults[id]; r.ArticleID == articleID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.ChunkResult) int { return a.ChunkIndex - b.ChunkIndex })
	return out, nil
}

// GetChunkResult looks a chunk result up by ID.
func (s *Store) GetChunkResult(_ context.Context, id int64) (domain.ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.chunkResults[id]
	if !ok {
		return domain.ChunkResult{}, fmt.Errorf("chunk result %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// SaveFeedback appends a feedback record.
func (s *Store) SaveFeedback(_ context.Context, fb domain.Feedback) (domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunkResults[fb.ChunkResultID]; !ok {
		return domain.Feedback{}, fmt.Errorf("chunk result %d: %w", fb.ChunkResultID, domain.ErrNotFound)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now()
	}
	s.nextFeedback++
	fb.ID = s.nextFeedback
	s.feedback[fb.ID] = fb
	return fb, nil
}

// CreateModelVersion registers a version; (name, version) is unique.
func (s *Store) CreateModelVersion(_ context.Context, mv domain.ModelVersion) (domain.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.models {
		if existing.Name == mv.Name && existing.Version == mv.Version {
			return domain.ModelVersion{}, fmt.Errorf("model %s@%s: %w", mv.Name, mv.Version, domain.ErrDuplicate)
		}
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = s.now()
	}
	mv.Active = false
	s.nextModel++
	mv.ID = s.nextModel
	s.models[mv.ID] = cloneModel(mv)
	return cloneModel(mv), nil
}

// ActivateModelVersion marks one version active and the rest of its name inactive.
func (s *Store) ActivateModelVersion(_ context.Context, name, version string) (domain.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target int64
	for id, mv := range s.models {
		if mv.Name == name && mv.Version == version {
			target = id
		}
	}
	if target == 0 {
		return domain.ModelVersion{}, fmt.Errorf("model %s@%s: %w", name, version, domain.ErrNotFound)
	}
	for id, mv := range s.models {
		if mv.Name == name {
			mv.Active = id == target
			s.models[id] = mv
		}
	}
	return cloneModel(s.models[target]), nil
}

// ActiveModelVersion returns the active version of a model name.
func (s *Store) ActiveModelVersion(_ context.Context, name string) (domain.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range sortedKeys(s.models) {
		if mv := s.models[id]; mv.Name == name && mv.Active {
			return cloneModel(mv), nil
		}
	}
	return domain.ModelVersion{}, fmt.Errorf("active model %s: %w", name, domain.ErrNotFound)
}

// ListModelVersions returns versions of a model name, oldest first.
func (s *Store) ListModelVersions(_ context.Context, name string) ([]domain.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ModelVersion
	for _, id := range sortedKeys(s.models) {
		if mv := s.models[id]; name == "" || mv.Name == name {
			out = append(out, cloneModel(mv))
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}

func cloneSource(src domain.Source) domain.Source {
	if src.LastCheck != nil {
		at := *src.LastCheck
		src.LastCheck = &at
	}
	if src.LastSuccess != nil {
		at := *src.LastSuccess
		src.LastSuccess = &at
	}
	return src
}

func cloneArticle(a domain.Article) domain.Article {
	a.Authors = slices.Clone(a.Authors)
	a.Metadata = maps.Clone(a.Metadata)
	return a
}

func cloneModel(mv domain.ModelVersion) domain.ModelVersion {
	mv.Hyperparameters = maps.Clone(mv.Hyperparameters)
	mv.Metrics = maps.Clone(mv.Metrics)
	return mv
}
