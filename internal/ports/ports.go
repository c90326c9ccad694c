package ports

import (
	"context"
	"io"
	"time"

	"CTIScraper/internal/domain"
)

// HashIndex answers fingerprint lookups for admission control.
type HashIndex interface {
	HashExists(ctx context.Context, fingerprint string) (bool, error)
}

// SourceRepository persists sources and their append-only check history.
type SourceRepository interface {
	UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error)
	GetSource(ctx context.Context, identifier string) (domain.Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error)
	// RecordCheck appends the check and applies the health delta in one transaction.
	RecordCheck(ctx context.Context, check domain.SourceCheck, health domain.SourceHealth) (domain.Source, error)
	ListChecks(ctx context.Context, sourceID int64, limit int) ([]domain.SourceCheck, error)
}

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	SourceID        int64
	IncludeArchived bool
	// WithoutChunkResults keeps only articles that were never analyzed.
	WithoutChunkResults bool
	Limit               int
}

// ArticleRepository persists deduplicated articles.
type ArticleRepository interface {
	HashIndex
	// SaveArticle stores the article together with its content hash record and
	// returns domain.ErrDuplicate on either uniqueness violation.
	SaveArticle(ctx context.Context, article domain.Article) (domain.Article, error)
	GetArticle(ctx context.Context, id int64) (domain.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
	UpdateArticleMetadata(ctx context.Context, id int64, metadata map[string]any, status domain.ProcessingStatus) error
}

// AnalysisRepository persists chunk classifications and human feedback.
type AnalysisRepository interface {
	HasChunkResults(ctx context.Context, articleID int64) (bool, error)
	// SaveChunkResults replaces existing rows for the article when replace is set.
	SaveChunkResults(ctx context.Context, articleID int64, results []domain.ChunkResult, replace bool) ([]domain.ChunkResult, error)
	ListChunkResults(ctx context.Context, articleID int64) ([]domain.ChunkResult, error)
	GetChunkResult(ctx context.Context, id int64) (domain.ChunkResult, error)
	SaveFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error)
}

// ModelRepository tracks trained model versions.
type ModelRepository interface {
	CreateModelVersion(ctx context.Context, mv domain.ModelVersion) (domain.ModelVersion, error)
	// ActivateModelVersion deactivates every other version with the same name.
	ActivateModelVersion(ctx context.Context, name, version string) (domain.ModelVersion, error)
	ActiveModelVersion(ctx context.Context, name string) (domain.ModelVersion, error)
	ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error)
}

// Repository is the full persistence capability.
type Repository interface {
	SourceRepository
	ArticleRepository
	AnalysisRepository
	ModelRepository
	Close() error
}

// CandidateSource extracts candidates from one source using its check method.
type CandidateSource interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error)
}

// ContentFetcher retrieves the full readable text of an article page.
type ContentFetcher interface {
	FullContent(ctx context.Context, pageURL string) (string, error)
}

// ChunkClassifier labels chunk texts in one call.
type ChunkClassifier interface {
	ClassifyBatch(ctx context.Context, texts, titles []string) ([]domain.Classification, error)
}

// SourceLocker grants exclusive polling of a source.
type SourceLocker interface {
	// TryLock returns ok=false when another poll holds the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ArtifactStore reads serialized model artifacts by key.
type ArtifactStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Metrics records pipeline outcomes.
type Metrics interface {
	SourcePolled(method domain.CheckMethod, success bool, latency time.Duration)
	ArticlesSaved(n int)
	DuplicatesSkipped(n int)
	ChunksClassified(label string, n int)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
