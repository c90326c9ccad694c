package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"CTIScraper/internal/chunking"
	"CTIScraper/internal/classifier"
	"CTIScraper/internal/config"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/infrastructure/httpfetch"
	"CTIScraper/internal/infrastructure/lock"
	"CTIScraper/internal/infrastructure/metrics"
	"CTIScraper/internal/infrastructure/modelstore"
	"CTIScraper/internal/infrastructure/parser"
	"CTIScraper/internal/infrastructure/scheduler"
	"CTIScraper/internal/infrastructure/storage/memory"
	"CTIScraper/internal/infrastructure/storage/sqlstore"
	"CTIScraper/internal/logging"
	"CTIScraper/internal/ports"
	"CTIScraper/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	repo    ports.Repository
	redis   *redis.Client
	metrics *metrics.Prometheus

	ingestion *usecase.Ingestion
	models    *usecase.ModelRegistry
}

// New opens storage and the optional Redis lock and builds the use cases.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:     cfg,
		logger:  baseLogger,
		repo:    repo,
		metrics: metrics.NewPrometheus(),
	}

	var locker ports.SourceLocker = lock.NewLocal()
	if cfg.Lock.RedisAddr != "" {
		client, err := lock.Dial(ctx, cfg.Lock.RedisAddr)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		a.redis = client
		locker = lock.NewRedis(client, "", baseLogger)
	}

	fetcher := httpfetch.New(nil, httpfetch.Config{
		UserAgent: cfg.Poller.UserAgent,
		Timeout:   cfg.Poller.FetchTimeout,
		Attempts:  cfg.Poller.RetryAttempts,
		BaseDelay: cfg.Poller.RetryBaseDelay,
		MaxDelay:  cfg.Poller.RetryMaxDelay,
	}, baseLogger.With("component", "httpfetch"))

	registry := parser.NewDefaultRegistry(fetcher, baseLogger)
	a.ingestion = usecase.NewIngestion(usecase.IngestionDeps{
		Sources:     cfg.DomainSources(),
		Repository:  repo,
		Fetcher:     parser.NewStrategySource(registry, baseLogger.With("component", "source")),
		Content:     parser.NewContentExtractor(fetcher, baseLogger),
		Locker:      locker,
		Metrics:     a.metrics,
		Logger:      baseLogger,
		Concurrency: cfg.Poller.Concurrency,
		PollTimeout: cfg.Poller.FetchTimeout,
		LockTTL:     cfg.Lock.TTL,
	})
	a.models = usecase.NewModelRegistry(repo, baseLogger)
	return a, nil
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (ports.Repository, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// SetMetricsAddr overrides the /metrics listen address before Serve.
func (a *Application) SetMetricsAddr(addr string) { a.cfg.Metrics.Addr = addr }

// Config returns the loaded configuration.
func (a *Application) Config() config.Config { return a.cfg }

// Repository exposes storage for read-only commands.
func (a *Application) Repository() ports.Repository { return a.repo }

// Ingestion returns the polling use case.
func (a *Application) Ingestion() *usecase.Ingestion { return a.ingestion }

// Models returns the model registry.
func (a *Application) Models() *usecase.ModelRegistry { return a.models }

// Classifier builds a classifier for the active model version. Model storage
// problems degrade to the rule-based tier.
func (a *Application) Classifier(ctx context.Context) (*classifier.Classifier, error) {
	ml := a.cfg.ML
	base := classifier.Config{
		ModelEnabled:  ml.Enabled,
		ModelKey:      ml.ModelKey,
		VectorizerKey: ml.VectorizerKey,
		ModelVersion:  ml.ModelVersion,
		Threshold:     ml.HuntScoreThreshold,
		UseFallback:   ml.Fallback(),
	}
	if ml.ModelVersion == "" {
		resolved, err := a.models.ResolveActive(ctx, ml.ModelName, base)
		if err != nil {
			return nil, err
		}
		base = resolved
	}

	log := a.logger.With("component", "classifier")
	if !base.ModelEnabled {
		return classifier.New(base, nil, log)
	}

	cache, err := a.modelCache(ctx)
	if errors.Is(err, domain.ErrStorageNotConfigured) {
		return nil, err
	}
	if err != nil {
		log.Warn("model storage unavailable", "error", err)
		base.ModelEnabled = false
		return classifier.New(base, nil, log)
	}
	return classifier.New(base, cache, log)
}

func (a *Application) modelCache(ctx context.Context) (*classifier.ModelCache, error) {
	ml := a.cfg.ML
	var (
		store ports.ArtifactStore
		err   error
	)
	switch {
	case ml.Bucket != "":
		store, err = modelstore.NewS3Store(ctx, modelstore.S3Config{Bucket: ml.Bucket, Region: ml.Region, Endpoint: ml.Endpoint})
	case ml.LocalDir != "":
		store, err = modelstore.NewDirStore(ml.LocalDir)
	default:
		err = fmt.Errorf("ml: no model bucket or local directory: %w", domain.ErrStorageNotConfigured)
	}
	if err != nil {
		return nil, err
	}
	return classifier.NewModelCache(ml.CacheDir, store)
}

// Analysis builds the chunk analysis use case around the active classifier.
func (a *Application) Analysis(ctx context.Context) (*usecase.Analysis, error) {
	cls, err := a.Classifier(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewAnalysis(usecase.AnalysisDeps{
		Repository:       a.repo,
		Chunker:          chunking.New(),
		Classifier:       cls,
		Metrics:          a.metrics,
		Logger:           a.logger,
		FilterConfidence: a.cfg.ML.FilterConfidence,
	}), nil
}

// Run performs a single poll pass over every due source.
func (a *Application) Run(ctx context.Context) (usecase.PollSummary, error) {
	return a.ingestion.PollAll(ctx)
}

// Serve polls on the configured interval and exposes /metrics until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("metrics listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	driver := scheduler.NewIntervalScheduler(a.cfg.Poller.Interval)
	sched := usecase.NewScheduler(driver, a.ingestion, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("stop scheduler", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("stop metrics server", "error", err)
	}
	return runErr
}

// Close releases storage and the Redis client.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
