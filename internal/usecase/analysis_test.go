package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/infrastructure/storage/memory"
	"CTIScraper/internal/ports"
)

type splitChunker struct{ parts []string }

func (s splitChunker) ChunkArticle(string, string) []domain.Chunk {
	out := make([]domain.Chunk, len(s.parts))
	for i, p := range s.parts {
		out[i] = domain.Chunk{Index: i, Text: p}
	}
	return out
}

type scriptedClassifier struct {
	results []domain.Classification
	err     error
	titles  [][]string
}

func (s *scriptedClassifier) ClassifyBatch(_ context.Context, texts, titles []string) ([]domain.Classification, error) {
	s.titles = append(s.titles, titles)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[:len(texts)], nil
}

type countingMetrics struct {
	noopMetrics
	chunks map[string]int
}

func (m *countingMetrics) ChunksClassified(label string, n int) { m.chunks[label] += n }

func seedArticle(t *testing.T, repo *memory.Store, url string) domain.Article {
	t.Helper()
	ctx := context.Background()
	src, err := repo.UpsertSource(ctx, domain.Source{Identifier: "lab", Active: true})
	require.NoError(t, err)
	article, err := repo.SaveArticle(ctx, domain.Article{
		SourceID:     src.ID,
		URL:          url,
		Title:        "Title " + url,
		Content:      "content of " + url,
		Fingerprint:  "fp-" + url,
		Metadata:     map[string]any{"hunt_score": 42.0},
		Status:       domain.StatusScraped,
		DiscoveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return article
}

func newTestAnalysis(repo AnalysisRepository, cls ports.ChunkClassifier, metrics ports.Metrics) *Analysis {
	return NewAnalysis(AnalysisDeps{
		Repository: repo,
		Chunker:    splitChunker{parts: []string{"rundll32.exe lsass.exe dump", "newsletter signup"}},
		Classifier: cls,
		Metrics:    metrics,
	})
}

func twoResults() []domain.Classification {
	return []domain.Classification{
		{Label: domain.LabelHuntable, Confidence: 0.9, ModelVersion: "v1"},
		{Label: domain.LabelHuntable, Confidence: 0.4, ModelVersion: "v1"},
	}
}

func TestAnalyzeArticle(t *testing.T) {
	t.Parallel()

	repo := memory.New()
	article := seedArticle(t, repo, "https://lab.example/a")
	cls := &scriptedClassifier{results: twoResults()}
	metrics := &countingMetrics{chunks: map[string]int{}}
	an := newTestAnalysis(repo, cls, metrics)
	ctx := context.Background()

	res, err := an.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{Save: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, 2, res.Huntable)
	assert.Equal(t, 1, res.Passed)
	assert.InDelta(t, 0.65, res.AvgConfidence, 1e-9)
	assert.Equal(t, "v1", res.ModelVersion)
	assert.Equal(t, 2, metrics.chunks[domain.LabelHuntable])
	assert.Equal(t, []string{"", ""}, cls.titles[0])

	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].PassedFilter)
	assert.False(t, res.Results[1].PassedFilter)
	assert.Greater(t, res.Results[0].HuntScore, 0.0)
	assert.NotZero(t, res.Results[0].ID)

	stored, err := repo.ListChunkResults(ctx, article.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	updated, err := repo.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, updated.Status)
	assert.Equal(t, 42.0, updated.HuntScore())
	summary, ok := updated.Metadata["chunk_analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, summary["total_chunks"])

	t.Run("skips analyzed articles", func(t *testing.T) {
		again, err := an.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{Save: true})
		require.NoError(t, err)
		assert.True(t, again.Skipped)
		assert.Len(t, cls.titles, 1)
	})

	t.Run("force replaces results", func(t *testing.T) {
		again, err := an.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{Save: true, Force: true})
		require.NoError(t, err)
		assert.False(t, again.Skipped)
		stored, err := repo.ListChunkResults(ctx, article.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})
}

func TestAnalyzeArticleWithoutSave(t *testing.T) {
	t.Parallel()

	repo := memory.New()
	article := seedArticle(t, repo, "https://lab.example/a")
	an := newTestAnalysis(repo, &scriptedClassifier{results: twoResults()}, nil)
	ctx := context.Background()

	res, err := an.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalChunks)

	has, err := repo.HasChunkResults(ctx, article.ID)
	require.NoError(t, err)
	assert.False(t, has)

	stored, err := repo.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScraped, stored.Status)
}

func TestAnalyzeArticleErrors(t *testing.T) {
	t.Parallel()

	repo := memory.New()
	article := seedArticle(t, repo, "https://lab.example/a")

	_, err := newTestAnalysis(repo, &scriptedClassifier{results: twoResults()}, nil).
		AnalyzeArticle(context.Background(), 999, AnalyzeOptions{Save: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	boom := errors.New("boom")
	_, err = newTestAnalysis(repo, &scriptedClassifier{err: boom}, nil).
		AnalyzeArticle(context.Background(), article.ID, AnalyzeOptions{Save: true})
	assert.ErrorIs(t, err, boom)
}

func TestBackfill(t *testing.T) {
	t.Parallel()

	repo := memory.New()
	first := seedArticle(t, repo, "https://lab.example/a")
	seedArticle(t, repo, "https://lab.example/b")
	seedArticle(t, repo, "https://lab.example/c")
	an := newTestAnalysis(repo, &scriptedClassifier{results: twoResults()}, nil)
	ctx := context.Background()

	_, err := an.AnalyzeArticle(ctx, first.ID, AnalyzeOptions{Save: true})
	require.NoError(t, err)

	summary, err := an.Backfill(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Chunks)

	summary, err = an.Backfill(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	pending, err := repo.ListArticles(ctx, ports.ArticleFilter{WithoutChunkResults: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFeedback(t *testing.T) {
	t.Parallel()

	repo := memory.New()
	article := seedArticle(t, repo, "https://lab.example/a")
	an := newTestAnalysis(repo, &scriptedClassifier{results: twoResults()}, nil)
	ctx := context.Background()

	res, err := an.AnalyzeArticle(ctx, article.ID, AnalyzeOptions{Save: true})
	require.NoError(t, err)
	target := res.Results[1]

	fb, err := an.Feedback(ctx, FeedbackInput{ChunkResultID: target.ID, CorrectLabel: domain.LabelNotHuntable, Comment: "marketing"})
	require.NoError(t, err)
	assert.NotZero(t, fb.ID)
	assert.Equal(t, article.ID, fb.ArticleID)
	assert.Equal(t, domain.LabelHuntable, fb.ModelLabel)
	assert.Equal(t, domain.LabelNotHuntable, fb.CorrectLabel)
	assert.Equal(t, target.ChunkText, fb.ChunkText)
	assert.InDelta(t, 0.4, fb.ModelConfidence, 1e-9)

	_, err = an.Feedback(ctx, FeedbackInput{ChunkResultID: target.ID, CorrectLabel: "maybe"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = an.Feedback(ctx, FeedbackInput{ChunkResultID: 999, CorrectLabel: domain.LabelHuntable})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
