package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Poller.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Poller.FetchTimeout)
	assert.Equal(t, 3, cfg.Poller.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Poller.RetryBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Poller.RetryMaxDelay)
	assert.Equal(t, "CTI-Scraper/1.0 (Threat Intelligence Aggregator)", cfg.Poller.UserAgent)
	assert.Equal(t, "content_filter", cfg.ML.ModelName)
	assert.Equal(t, 50.0, cfg.ML.HuntScoreThreshold)
	assert.Equal(t, 0.5, cfg.ML.FilterConfidence)
	assert.True(t, cfg.ML.Fallback())
	assert.NotEmpty(t, cfg.Sources)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
database:
  driver: postgres
  dsn: postgres://file
poller:
  concurrency: 2
  fetchTimeout: 5s
ml:
  enabled: true
  useFallback: false
  filterConfidence: 0.7
sources:
  - identifier: lab
    name: Lab
    url: https://lab.example
    feedUrl: https://lab.example/feed
    checkFrequency: 600
  - identifier: blog
    url: https://blog.example
    active: false
    fetchFullContent: true
    selectors:
      article: div.post
      title: h2
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(modelBucketEnv, "models-bucket")
	t.Setenv(modelVersionEnv, "v7")
	t.Setenv(redisAddrEnv, "localhost:6379")
	t.Setenv(logLevelEnv, "error")

	cfg := Load()
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Poller.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Poller.FetchTimeout)
	assert.Equal(t, 3, cfg.Poller.RetryAttempts)
	assert.True(t, cfg.ML.Enabled)
	assert.False(t, cfg.ML.Fallback())
	assert.Equal(t, 0.7, cfg.ML.FilterConfidence)
	assert.Equal(t, "models-bucket", cfg.ML.Bucket)
	assert.Equal(t, "v7", cfg.ML.ModelVersion)
	assert.Equal(t, "localhost:6379", cfg.Lock.RedisAddr)

	sources := cfg.DomainSources()
	require.Len(t, sources, 2)
	assert.Equal(t, domain.MethodFeed, sources[0].Method())
	assert.Equal(t, 10*time.Minute, sources[0].CheckFrequency)
	assert.True(t, sources[0].Active)

	assert.Equal(t, domain.MethodPage, sources[1].Method())
	assert.Equal(t, "blog", sources[1].Name)
	assert.False(t, sources[1].Active)
	assert.True(t, sources[1].FetchFullContent)
	assert.Equal(t, time.Hour, sources[1].CheckFrequency)
	assert.Equal(t, "div.post", sources[1].Selectors.Article)
}

func TestLoadFallsBackOnBadFile(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "poller: [not, a, map"))

	cfg := Load()
	assert.Equal(t, defaultConfig().Poller, cfg.Poller)
	assert.Len(t, cfg.Sources, len(defaultConfig().Sources))
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()
	assert.Equal(t, "info", cfg.Logging.Level)
}
