// Package storagetest holds behaviour checks shared by every repository adapter.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

// Run executes the suite; newRepo must return an empty repository per call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.Repository) {
	t.Helper()

	tests := map[string]func(t *testing.T, repo ports.Repository){
		"upsert source":             testUpsertSource,
		"record check":              testRecordCheck,
		"article uniqueness":        testArticleUniqueness,
		"list articles":             testListArticles,
		"update metadata":           testUpdateMetadata,
		"chunk results":             testChunkResults,
		"feedback":                  testFeedback,
		"model activation":          testModelActivation,
		"concurrent duplicate save": testConcurrentDuplicateSave,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			t.Cleanup(func() { _ = repo.Close() })
			fn(t, repo)
		})
	}
}

func seedSource(t *testing.T, repo ports.Repository, identifier string) domain.Source {
	t.Helper()
	src, err := repo.UpsertSource(context.Background(), domain.Source{
		Identifier:     identifier,
		Name:           "Source " + identifier,
		URL:            "https://" + identifier + ".example.com",
		FeedURL:        "https://" + identifier + ".example.com/feed",
		CheckFrequency: time.Hour,
		Active:         true,
	})
	require.NoError(t, err)
	return src
}

func seedArticle(t *testing.T, repo ports.Repository, sourceID int64, suffix string) domain.Article {
	t.Helper()
	published := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	article, err := repo.SaveArticle(context.Background(), domain.Article{
		SourceID:    sourceID,
		URL:         "https://example.com/" + suffix,
		Title:       "Title " + suffix,
		Summary:     "Summary " + suffix,
		Content:     "Content " + suffix,
		PublishedAt: &published,
		Authors:     []string{"a", "b"},
		Fingerprint: "fp-" + suffix,
		Metadata:    map[string]any{"hunt_score": 12.5},
		WordCount:   2,
		Status:      domain.StatusScraped,
	})
	require.NoError(t, err)
	return article
}

func testUpsertSource(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	first := seedSource(t, repo, "alpha")
	require.NotZero(t, first.ID)

	updated, err := repo.UpsertSource(ctx, domain.Source{
		Identifier:       "alpha",
		Name:             "Renamed",
		URL:              "https://alpha.example.com/blog",
		CheckFrequency:   2 * time.Hour,
		Active:           false,
		Selectors:        domain.Selectors{Article: "div.post"},
		FetchFullContent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Empty(t, updated.FeedURL)
	assert.Equal(t, domain.MethodPage, updated.Method())

	got, err := repo.GetSource(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got.CheckFrequency)
	assert.Equal(t, "div.post", got.Selectors.Article)
	assert.True(t, got.FetchFullContent)
	assert.False(t, got.Active)

	seedSource(t, repo, "beta")
	all, err := repo.ListSources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err := repo.ListSources(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "beta", active[0].Identifier)

	_, err = repo.GetSource(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testRecordCheck(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	failed, err := repo.RecordCheck(ctx, domain.SourceCheck{
		SourceID: src.ID, CheckedAt: at, Success: false, Method: domain.MethodFeed,
		Latency: 1500 * time.Millisecond, Error: "boom",
	}, domain.SourceHealth{Success: false, CheckedAt: at})
	require.NoError(t, err)
	assert.Equal(t, 1, failed.ConsecutiveFailures)
	require.NotNil(t, failed.LastCheck)
	assert.Nil(t, failed.LastSuccess)

	later := at.Add(time.Hour)
	ok, err := repo.RecordCheck(ctx, domain.SourceCheck{
		SourceID: src.ID, CheckedAt: later, Success: true, Method: domain.MethodFeed, ArticlesFound: 4,
	}, domain.SourceHealth{Success: true, CheckedAt: later, NewArticles: 3})
	require.NoError(t, err)
	assert.Zero(t, ok.ConsecutiveFailures)
	assert.Equal(t, 3, ok.TotalArticles)
	require.NotNil(t, ok.LastSuccess)
	assert.True(t, ok.LastSuccess.Equal(later))

	checks, err := repo.ListChecks(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.True(t, checks[0].Success)
	assert.Equal(t, 4, checks[0].ArticlesFound)
	assert.False(t, checks[1].Success)
	assert.Equal(t, "boom", checks[1].Error)
	assert.Equal(t, 1500*time.Millisecond, checks[1].Latency)

	limited, err := repo.ListChecks(ctx, src.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.RecordCheck(ctx, domain.SourceCheck{SourceID: 999}, domain.SourceHealth{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testArticleUniqueness(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")
	saved := seedArticle(t, repo, src.ID, "one")
	require.NotZero(t, saved.ID)
	assert.False(t, saved.DiscoveredAt.IsZero())

	exists, err := repo.HashExists(ctx, "fp-one")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.HashExists(ctx, "fp-none")
	require.NoError(t, err)
	assert.False(t, exists)

	sameHash := saved
	sameHash.URL = "https://example.com/other"
	_, err = repo.SaveArticle(ctx, sameHash)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	sameURL := saved
	sameURL.Fingerprint = "fp-new-content"
	_, err = repo.SaveArticle(ctx, sameURL)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	exists, err = repo.HashExists(ctx, "fp-new-content")
	require.NoError(t, err)
	assert.False(t, exists, "rejected insert must not leave a hash record")

	got, err := repo.GetArticle(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title one", got.Title)
	assert.Equal(t, "Summary one", got.Summary)
	assert.Equal(t, []string{"a", "b"}, got.Authors)
	assert.InDelta(t, 12.5, got.HuntScore(), 1e-9)
	assert.Equal(t, domain.StatusScraped, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))

	_, err = repo.GetArticle(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testListArticles(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	a := seedSource(t, repo, "alpha")
	b := seedSource(t, repo, "beta")
	first := seedArticle(t, repo, a.ID, "one")
	seedArticle(t, repo, a.ID, "two")
	seedArticle(t, repo, b.ID, "three")

	all, err := repo.ListArticles(ctx, ports.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fromA, err := repo.ListArticles(ctx, ports.ArticleFilter{SourceID: a.ID})
	require.NoError(t, err)
	assert.Len(t, fromA, 2)

	limited, err := repo.ListArticles(ctx, ports.ArticleFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)

	_, err = repo.SaveChunkResults(ctx, first.ID, []domain.ChunkResult{{ChunkIndex: 0, ChunkText: "x", Label: domain.LabelHuntable}}, false)
	require.NoError(t, err)

	pending, err := repo.ListArticles(ctx, ports.ArticleFilter{WithoutChunkResults: true})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	for _, article := range pending {
		assert.NotEqual(t, first.ID, article.ID)
	}
}

func testUpdateMetadata(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")
	saved := seedArticle(t, repo, src.ID, "one")

	err := repo.UpdateArticleMetadata(ctx, saved.ID, map[string]any{"hunt_score": 80.0, "ml_label": "huntable"}, domain.StatusAnalyzed)
	require.NoError(t, err)

	got, err := repo.GetArticle(ctx, saved.ID)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, got.HuntScore(), 1e-9)
	assert.Equal(t, "huntable", got.Metadata["ml_label"])
	assert.Equal(t, domain.StatusAnalyzed, got.Status)
	assert.NotNil(t, got.ModifiedAt)

	assert.ErrorIs(t, repo.UpdateArticleMetadata(ctx, 999, nil, ""), domain.ErrNotFound)
}

func testChunkResults(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")
	article := seedArticle(t, repo, src.ID, "one")

	has, err := repo.HasChunkResults(ctx, article.ID)
	require.NoError(t, err)
	assert.False(t, has)

	saved, err := repo.SaveChunkResults(ctx, article.ID, []domain.ChunkResult{
		{ChunkIndex: 1, ChunkText: "second", Label: domain.LabelNotHuntable, Confidence: 0.6, ModelVersion: "v1"},
		{ChunkIndex: 0, ChunkText: "first", Label: domain.LabelHuntable, Confidence: 0.9, HuntScore: 40, PassedFilter: true, ModelVersion: "v1"},
	}, false)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)
	assert.Equal(t, article.ID, saved[0].ArticleID)

	has, err = repo.HasChunkResults(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, has)

	listed, err := repo.ListChunkResults(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 0, listed[0].ChunkIndex)
	assert.True(t, listed[0].PassedFilter)
	assert.InDelta(t, 40, listed[0].HuntScore, 1e-9)

	one, err := repo.GetChunkResult(ctx, saved[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "first", one.ChunkText)

	replaced, err := repo.SaveChunkResults(ctx, article.ID, []domain.ChunkResult{{ChunkIndex: 0, ChunkText: "only", Label: domain.LabelHuntable}}, true)
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	listed, err = repo.ListChunkResults(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "only", listed[0].ChunkText)

	_, err = repo.GetChunkResult(ctx, saved[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.SaveChunkResults(ctx, 999, nil, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testFeedback(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")
	article := seedArticle(t, repo, src.ID, "one")
	results, err := repo.SaveChunkResults(ctx, article.ID, []domain.ChunkResult{{ChunkIndex: 0, ChunkText: "x", Label: domain.LabelHuntable, Confidence: 0.7}}, false)
	require.NoError(t, err)

	fb, err := repo.SaveFeedback(ctx, domain.Feedback{
		ChunkResultID:   results[0].ID,
		ArticleID:       article.ID,
		ChunkText:       "x",
		ModelLabel:      domain.LabelHuntable,
		CorrectLabel:    domain.LabelNotHuntable,
		ModelConfidence: 0.7,
		Comment:         "marketing copy",
	})
	require.NoError(t, err)
	assert.NotZero(t, fb.ID)
	assert.False(t, fb.CreatedAt.IsZero())

	_, err = repo.SaveFeedback(ctx, domain.Feedback{ChunkResultID: 999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testModelActivation(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	for _, version := range []string{"v1", "v2"} {
		mv, err := repo.CreateModelVersion(ctx, domain.ModelVersion{
			Name:            "content_filter",
			Version:         version,
			ModelKey:        "models/" + version + "/model.json",
			VectorizerKey:   "models/" + version + "/vectorizer.json",
			TrainingSamples: 100,
			TrainingTime:    90 * time.Second,
			Hyperparameters: map[string]any{"C": 1.0},
			Metrics:         map[string]float64{"f1": 0.8},
		})
		require.NoError(t, err)
		assert.False(t, mv.Active)
	}

	_, err := repo.CreateModelVersion(ctx, domain.ModelVersion{Name: "content_filter", Version: "v1"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = repo.ActiveModelVersion(ctx, "content_filter")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, version := range []string{"v1", "v2"} {
		active, err := repo.ActivateModelVersion(ctx, "content_filter", version)
		require.NoError(t, err)
		assert.True(t, active.Active)
		assert.Equal(t, version, active.Version)
	}

	active, err := repo.ActiveModelVersion(ctx, "content_filter")
	require.NoError(t, err)
	assert.Equal(t, "v2", active.Version)
	assert.Equal(t, "models/v2/model.json", active.ModelKey)
	assert.InDelta(t, 0.8, active.Metrics["f1"], 1e-9)
	assert.Equal(t, 90*time.Second, active.TrainingTime)

	versions, err := repo.ListModelVersions(ctx, "content_filter")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	activeCount := 0
	for _, mv := range versions {
		if mv.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	_, err = repo.ActivateModelVersion(ctx, "content_filter", "v9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentDuplicateSave(t *testing.T, repo ports.Repository) {
	ctx := context.Background()
	src := seedSource(t, repo, "alpha")

	const writers = 4
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		saved, dup int
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.SaveArticle(ctx, domain.Article{
				SourceID: src.ID, URL: "https://example.com/race", Title: "race",
				Content: "body", Fingerprint: "fp-race", Status: domain.StatusScraped,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case assert.ErrorIs(t, err, domain.ErrDuplicate):
				dup++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, saved)
	assert.Equal(t, writers-1, dup)
}
