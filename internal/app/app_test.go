package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/classifier"
	"CTIScraper/internal/config"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/usecase"
)

const appFeed = `<rss version="2.0"><channel><title>Lab</title>
<item><title>Hunting rundll32.exe abuse</title><link>https://lab.example/1</link>
<description>Operators launched rundll32.exe from a scheduled task to dump lsass.exe memory.</description></item>
</channel></rss>`

func testConfig(t *testing.T, feedURL string) config.Config {
	t.Helper()
	return config.Config{
		Logging:  config.LoggingConfig{Level: "error"},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db")},
		Poller: config.PollerConfig{
			Concurrency:    2,
			FetchTimeout:   5 * time.Second,
			RetryAttempts:  1,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  time.Millisecond,
		},
		ML: config.MLConfig{ModelName: "content_filter", HuntScoreThreshold: 50, FilterConfidence: 0.5},
		Sources: []config.SourceConfig{
			{Identifier: "lab", Name: "Lab", URL: feedURL, FeedURL: feedURL, CheckFrequency: 60},
		},
	}
}

func TestApplicationPollsAndAnalyzes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(appFeed))
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	application, err := New(ctx, testConfig(t, server.URL), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	summary, err := application.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewSaved)
	assert.Empty(t, summary.Errors)

	cls, err := application.Classifier(ctx)
	require.NoError(t, err)
	res, err := cls.Classify(ctx, "rundll32.exe lsass.exe", "")
	require.NoError(t, err)
	assert.Equal(t, classifier.FallbackVersion, res.ModelVersion)

	analysis, err := application.Analysis(ctx)
	require.NoError(t, err)
	backfill, err := analysis.Backfill(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, backfill.Processed)
	assert.Empty(t, backfill.Errors)

	_, err = application.Ingestion().PollSource(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplicationMemoryDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1/feed")
	cfg.Database = config.DatabaseConfig{Driver: "memory"}

	application, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	_, err = application.Models().Register(context.Background(), domain.ModelVersion{Name: "content_filter", Version: "v1", ModelKey: "models/v1.json"})
	require.NoError(t, err)
	assert.IsType(t, &usecase.ModelRegistry{}, application.Models())
}

func TestApplicationRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1/feed")
	cfg.Database.Driver = "oracle"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestClassifierDegradesWithoutModelStorage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1/feed")
	cfg.Database = config.DatabaseConfig{Driver: "memory"}
	cfg.ML.Enabled = true
	cfg.ML.LocalDir = filepath.Join(t.TempDir(), "missing")

	application, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	cls, err := application.Classifier(context.Background())
	require.NoError(t, err)
	res, err := cls.Classify(context.Background(), "webinar recap", "")
	require.NoError(t, err)
	assert.Equal(t, classifier.FallbackVersion, res.ModelVersion)
}

func TestClassifierRequiresModelLocation(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1/feed")
	cfg.Database = config.DatabaseConfig{Driver: "memory"}
	cfg.ML.Enabled = true

	application, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	_, err = application.Classifier(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageNotConfigured)

	_, err = application.Analysis(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageNotConfigured)
}
