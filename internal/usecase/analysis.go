package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
	"CTIScraper/internal/scoring"
)

// DefaultFilterConfidence is the minimum confidence for a huntable chunk to pass.
const DefaultFilterConfidence = 0.5

// AnalysisRepository is the storage chunk analysis needs.
type AnalysisRepository interface {
	ports.ArticleRepository
	ports.AnalysisRepository
}

// Chunker splits article content into classification units.
type Chunker interface {
	ChunkArticle(content, title string) []domain.Chunk
}

// AnalysisDeps wires the chunk analysis use case.
type AnalysisDeps struct {
	Repository       AnalysisRepository
	Chunker          Chunker
	Classifier       ports.ChunkClassifier
	Metrics          ports.Metrics
	Logger           *slog.Logger
	FilterConfidence float64
}

// Analysis chunks articles, classifies every chunk and stores the outcome.
type Analysis struct {
	repo             AnalysisRepository
	chunker          Chunker
	classifier       ports.ChunkClassifier
	metrics          ports.Metrics
	logger           *slog.Logger
	filterConfidence float64
}

// AnalyzeOptions controls persistence of an analysis.
type AnalyzeOptions struct {
	Save  bool
	Force bool
}

// ArticleAnalysis summarizes the chunk results of one article.
type ArticleAnalysis struct {
	ArticleID     int64                `json:"article_id"`
	Skipped       bool                 `json:"skipped"`
	TotalChunks   int                  `json:"total_chunks"`
	Huntable      int                  `json:"huntable_chunks"`
	Passed        int                  `json:"passed_filter"`
	AvgConfidence float64              `json:"avg_confidence"`
	ModelVersion  string               `json:"model_version"`
	Results       []domain.ChunkResult `json:"results"`
}

// FeedbackInput is a human correction of a stored chunk result.
type FeedbackInput struct {
	ChunkResultID int64
	CorrectLabel  string
	Comment       string
}

// NewAnalysis builds the analysis use case.
func NewAnalysis(deps AnalysisDeps) *Analysis {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	confidence := deps.FilterConfidence
	if confidence <= 0 {
		confidence = DefaultFilterConfidence
	}
	return &Analysis{
		repo:             deps.Repository,
		chunker:          deps.Chunker,
		classifier:       deps.Classifier,
		metrics:          metrics,
		logger:           logger.With("component", "analysis"),
		filterConfidence: confidence,
	}
}

// AnalyzeArticle classifies the chunks of one article. Without Force an
// article that already has stored results is skipped when saving.
func (a *Analysis) AnalyzeArticle(ctx context.Context, articleID int64, opts AnalyzeOptions) (ArticleAnalysis, error) {
	out := ArticleAnalysis{ArticleID: articleID, Results: []domain.ChunkResult{}}
	if a.repo == nil || a.chunker == nil || a.classifier == nil {
		return out, errors.New("analysis is not configured")
	}

	article, err := a.repo.GetArticle(ctx, articleID)
	if err != nil {
		return out, fmt.Errorf("load article %d: %w", articleID, err)
	}

	if opts.Save && !opts.Force {
		exists, err := a.repo.HasChunkResults(ctx, articleID)
		if err != nil {
			return out, fmt.Errorf("check chunk results: %w", err)
		}
		if exists {
			a.logger.Debug("article already analyzed", "article_id", articleID)
			out.Skipped = true
			return out, nil
		}
	}

	chunks := a.chunker.ChunkArticle(article.Content, article.Title)
	if len(chunks) == 0 {
		a.logger.Info("article has no chunks", "article_id", articleID)
		return out, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	labels, err := a.classifier.ClassifyBatch(ctx, texts, make([]string, len(texts)))
	if err != nil {
		return out, fmt.Errorf("classify chunks: %w", err)
	}
	if len(labels) != len(chunks) {
		return out, fmt.Errorf("classify chunks: %d results for %d chunks", len(labels), len(chunks))
	}

	results := make([]domain.ChunkResult, len(chunks))
	perLabel := map[string]int{}
	var confidence float64
	for i, c := range chunks {
		cls := labels[i]
		results[i] = domain.ChunkResult{
			ArticleID:    articleID,
			ChunkIndex:   c.Index,
			ChunkText:    c.Text,
			Label:        cls.Label,
			Confidence:   cls.Confidence,
			HuntScore:    scoring.Score("", c.Text, "").Score,
			PassedFilter: cls.Label == domain.LabelHuntable && cls.Confidence >= a.filterConfidence,
			ModelVersion: cls.ModelVersion,
		}
		perLabel[cls.Label]++
		confidence += cls.Confidence
		if cls.Label == domain.LabelHuntable {
			out.Huntable++
		}
		if results[i].PassedFilter {
			out.Passed++
		}
	}
	out.TotalChunks = len(results)
	out.AvgConfidence = confidence / float64(len(results))
	out.ModelVersion = results[0].ModelVersion

	for label, n := range perLabel {
		a.metrics.ChunksClassified(label, n)
	}

	if opts.Save {
		results, err = a.repo.SaveChunkResults(ctx, articleID, results, opts.Force)
		if err != nil {
			return out, fmt.Errorf("save chunk results: %w", err)
		}
		metadata := maps.Clone(article.Metadata)
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["chunk_analysis"] = map[string]any{
			"total_chunks":   out.TotalChunks,
			"huntable":       out.Huntable,
			"passed_filter":  out.Passed,
			"avg_confidence": out.AvgConfidence,
			"model_version":  out.ModelVersion,
		}
		if err := a.repo.UpdateArticleMetadata(ctx, articleID, metadata, domain.StatusAnalyzed); err != nil {
			return out, fmt.Errorf("update article %d: %w", articleID, err)
		}
	}

	out.Results = results
	a.logger.Info("article analyzed",
		"article_id", articleID,
		"chunks", out.TotalChunks,
		"huntable", out.Huntable,
		"passed", out.Passed,
		"saved", opts.Save,
	)
	return out, nil
}

// BackfillSummary counts the outcome of a backfill run.
type BackfillSummary struct {
	Processed int           `json:"processed"`
	Chunks    int           `json:"chunks"`
	Errors    []SourceError `json:"errors"`
}

// Backfill analyzes and stores up to limit non-archived articles that have
// no chunk results yet.
func (a *Analysis) Backfill(ctx context.Context, limit int) (BackfillSummary, error) {
	summary := BackfillSummary{Errors: []SourceError{}}
	if a.repo == nil {
		return summary, errors.New("analysis is not configured")
	}

	articles, err := a.repo.ListArticles(ctx, ports.ArticleFilter{WithoutChunkResults: true, Limit: limit})
	if err != nil {
		return summary, fmt.Errorf("list articles: %w", err)
	}

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := a.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{Save: true})
		if err != nil {
			a.logger.Error("backfill article", "article_id", article.ID, "error", err)
			summary.Errors = append(summary.Errors, SourceError{Source: fmt.Sprintf("article:%d", article.ID), Error: err.Error()})
			continue
		}
		summary.Processed++
		summary.Chunks += res.TotalChunks
	}
	return summary, nil
}

// Feedback records a human correction against a stored chunk result.
func (a *Analysis) Feedback(ctx context.Context, in FeedbackInput) (domain.Feedback, error) {
	if a.repo == nil {
		return domain.Feedback{}, errors.New("analysis is not configured")
	}
	switch in.CorrectLabel {
	case domain.LabelHuntable, domain.LabelNotHuntable:
	default:
		return domain.Feedback{}, fmt.Errorf("%w: label %q", domain.ErrInvalidInput, in.CorrectLabel)
	}

	result, err := a.repo.GetChunkResult(ctx, in.ChunkResultID)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("load chunk result %d: %w", in.ChunkResultID, err)
	}

	fb, err := a.repo.SaveFeedback(ctx, domain.Feedback{
		ChunkResultID:   result.ID,
		ArticleID:       result.ArticleID,
		ChunkText:       result.ChunkText,
		ModelLabel:      result.Label,
		CorrectLabel:    in.CorrectLabel,
		ModelConfidence: result.Confidence,
		Comment:         in.Comment,
	})
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return fb, nil
}
