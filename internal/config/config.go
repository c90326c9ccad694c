package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/infrastructure/httpfetch"
)

const (
	configPathEnv     = "CTI_SCRAPER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	modelBucketEnv    = "ML_MODEL_BUCKET"
	modelVersionEnv   = "ML_MODEL_VERSION"
	redisAddrEnv      = "REDIS_ADDR"
	logLevelEnv       = "LOG_LEVEL"

	defaultCheckFrequency = 3600
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Poller   PollerConfig   `yaml:"poller"`
	ML       MLConfig       `yaml:"ml"`
	Lock     LockConfig     `yaml:"lock"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Sources  []SourceConfig `yaml:"sources"`
}

// LoggingConfig sets the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the storage backend: postgres, sqlite or memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// PollerConfig tunes source polling and the HTTP client behind it.
type PollerConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout"`
	RetryAttempts  int           `yaml:"retryAttempts"`
	RetryBaseDelay time.Duration `yaml:"retryBaseDelay"`
	RetryMaxDelay  time.Duration `yaml:"retryMaxDelay"`
	UserAgent      string        `yaml:"userAgent"`
	Interval       time.Duration `yaml:"interval"`
}

// MLConfig describes where model artifacts live and how results are filtered.
// Bucket selects S3; otherwise LocalDir is used.
type MLConfig struct {
	Enabled            bool    `yaml:"enabled"`
	ModelName          string  `yaml:"modelName"`
	Bucket             string  `yaml:"bucket"`
	Region             string  `yaml:"region"`
	Endpoint           string  `yaml:"endpoint"`
	LocalDir           string  `yaml:"localDir"`
	ModelKey           string  `yaml:"modelKey"`
	VectorizerKey      string  `yaml:"vectorizerKey"`
	ModelVersion       string  `yaml:"modelVersion"`
	CacheDir           string  `yaml:"cacheDir"`
	HuntScoreThreshold float64 `yaml:"huntScoreThreshold"`
	FilterConfidence   float64 `yaml:"filterConfidence"`
	UseFallback        *bool   `yaml:"useFallback"`
}

// Fallback reports whether the rule-based tier may answer without a model.
func (m MLConfig) Fallback() bool {
	return m.UseFallback == nil || *m.UseFallback
}

// LockConfig enables the Redis poll lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	TTL       time.Duration `yaml:"ttl"`
}

// MetricsConfig is the listen address of the /metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SourceConfig describes one polled source. CheckFrequency is in seconds.
type SourceConfig struct {
	Identifier       string           `yaml:"identifier"`
	Name             string           `yaml:"name"`
	URL              string           `yaml:"url"`
	FeedURL          string           `yaml:"feedUrl"`
	CheckFrequency   int              `yaml:"checkFrequency"`
	Active           *bool            `yaml:"active"`
	Selectors        domain.Selectors `yaml:"selectors"`
	FetchFullContent bool             `yaml:"fetchFullContent"`
}

// Source converts the entry into a domain source; active defaults to true.
func (s SourceConfig) Source() domain.Source {
	freq := s.CheckFrequency
	if freq <= 0 {
		freq = defaultCheckFrequency
	}
	name := s.Name
	if name == "" {
		name = s.Identifier
	}
	return domain.Source{
		Identifier:       s.Identifier,
		Name:             name,
		URL:              s.URL,
		FeedURL:          s.FeedURL,
		CheckFrequency:   time.Duration(freq) * time.Second,
		Active:           s.Active == nil || *s.Active,
		Selectors:        s.Selectors,
		FetchFullContent: s.FetchFullContent,
	}
}

// DomainSources converts the configured roster.
func (c Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, s.Source())
	}
	return out
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}

	if v := os.Getenv(modelBucketEnv); v != "" {
		c.ML.Bucket = v
	}

	if v := os.Getenv(modelVersionEnv); v != "" {
		c.ML.ModelVersion = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Lock.RedisAddr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	base.Poller = mergePoller(base.Poller, override.Poller)
	base.ML = mergeML(base.ML, override.ML)

	if override.Lock.RedisAddr != "" {
		base.Lock.RedisAddr = override.Lock.RedisAddr
	}
	if override.Lock.TTL > 0 {
		base.Lock.TTL = override.Lock.TTL
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func mergePoller(base, override PollerConfig) PollerConfig {
	if override.Concurrency > 0 {
		base.Concurrency = override.Concurrency
	}
	if override.FetchTimeout > 0 {
		base.FetchTimeout = override.FetchTimeout
	}
	if override.RetryAttempts > 0 {
		base.RetryAttempts = override.RetryAttempts
	}
	if override.RetryBaseDelay > 0 {
		base.RetryBaseDelay = override.RetryBaseDelay
	}
	if override.RetryMaxDelay > 0 {
		base.RetryMaxDelay = override.RetryMaxDelay
	}
	if override.UserAgent != "" {
		base.UserAgent = override.UserAgent
	}
	if override.Interval > 0 {
		base.Interval = override.Interval
	}
	return base
}

func mergeML(base, override MLConfig) MLConfig {
	if override.Enabled {
		base.Enabled = true
	}
	overrideString(&base.ModelName, override.ModelName)
	overrideString(&base.Bucket, override.Bucket)
	overrideString(&base.Region, override.Region)
	overrideString(&base.Endpoint, override.Endpoint)
	overrideString(&base.LocalDir, override.LocalDir)
	overrideString(&base.ModelKey, override.ModelKey)
	overrideString(&base.VectorizerKey, override.VectorizerKey)
	overrideString(&base.ModelVersion, override.ModelVersion)
	overrideString(&base.CacheDir, override.CacheDir)
	if override.HuntScoreThreshold > 0 {
		base.HuntScoreThreshold = override.HuntScoreThreshold
	}
	if override.FilterConfidence > 0 {
		base.FilterConfidence = override.FilterConfidence
	}
	if override.UseFallback != nil {
		base.UseFallback = override.UseFallback
	}
	return base
}

func overrideString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "cti_scraper.db"},
		Poller: PollerConfig{
			Concurrency:    5,
			FetchTimeout:   30 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: 2 * time.Second,
			RetryMaxDelay:  10 * time.Second,
			UserAgent:      httpfetch.DefaultUserAgent,
			Interval:       15 * time.Minute,
		},
		ML: MLConfig{
			ModelName:          "content_filter",
			Region:             "us-east-1",
			LocalDir:           "models",
			ModelKey:           "models/content_filter.json",
			VectorizerKey:      "models/content_filter_vectorizer.json",
			HuntScoreThreshold: 50,
			FilterConfidence:   0.5,
		},
		Lock:    LockConfig{TTL: 10 * time.Minute},
		Metrics: MetricsConfig{Addr: ":9090"},
		Sources: []SourceConfig{
			{
				Identifier:     "dfir_report",
				Name:           "The DFIR Report",
				URL:            "https://thedfirreport.com/",
				FeedURL:        "https://thedfirreport.com/feed/",
				CheckFrequency: 3600,
			},
			{
				Identifier:     "red_canary",
				Name:           "Red Canary Blog",
				URL:            "https://redcanary.com/blog/",
				FeedURL:        "https://redcanary.com/feed/",
				CheckFrequency: 3600,
			},
			{
				Identifier:     "unit42",
				Name:           "Unit 42",
				URL:            "https://unit42.paloaltonetworks.com/",
				FeedURL:        "https://unit42.paloaltonetworks.com/feed/",
				CheckFrequency: 3600,
			},
			{
				Identifier:     "microsoft_security",
				Name:           "Microsoft Security Blog",
				URL:            "https://www.microsoft.com/en-us/security/blog/",
				FeedURL:        "https://www.microsoft.com/en-us/security/blog/feed/",
				CheckFrequency: 7200,
			},
			{
				Identifier:       "elastic_security_labs",
				Name:             "Elastic Security Labs",
				URL:              "https://www.elastic.co/security-labs",
				CheckFrequency:   7200,
				FetchFullContent: true,
			},
		},
	}
}
