// Package classifier labels text as huntable with a trained linear model,
// falling back to the rule-based hunt score when no model can be loaded.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
	"CTIScraper/internal/scoring"
)

const (
	LabelHuntable    = domain.LabelHuntable
	LabelNotHuntable = domain.LabelNotHuntable
	LabelUnknown     = domain.LabelUnknown

	FallbackVersion = "hunt_scorer_fallback"
	NoModelVersion  = "none"

	DefaultThreshold = 50.0
	maxConfidence    = 0.95
)

// Result is the outcome of one classification.
type Result = domain.Classification

// Config selects the model artifacts and fallback policy.
type Config struct {
	// ModelEnabled turns on the model tier; a ModelCache is then required.
	ModelEnabled  bool
	ModelKey      string
	VectorizerKey string
	ModelVersion  string
	Threshold     float64
	UseFallback   bool
}

// LoadState reports what the classifier knows about its model.
type LoadState int

const (
	NotAttempted LoadState = iota
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// Classifier loads its model at most once. A failed load is never retried;
// construct a new Classifier to try again.
type Classifier struct {
	cfg    Config
	cache  *ModelCache
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state LoadState
	model *Model
}

var _ ports.ChunkClassifier = (*Classifier)(nil)

// New validates the configuration. Enabling the model tier without a cache
// is a configuration error.
func New(cfg Config, cache *ModelCache, logger *slog.Logger) (*Classifier, error) {
	if cfg.ModelEnabled && cache == nil {
		return nil, domain.ErrStorageNotConfigured
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "latest"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Classifier{cfg: cfg, cache: cache, logger: logger, now: time.Now}
	if !cfg.ModelEnabled {
		c.state = Failed
	}
	return c, nil
}

// NewWithModel builds a classifier around an already loaded model.
func NewWithModel(cfg Config, model *Model, logger *slog.Logger) *Classifier {
	c, _ := New(Config{Threshold: cfg.Threshold, UseFallback: cfg.UseFallback, ModelVersion: cfg.ModelVersion}, nil, logger)
	c.state = Loaded
	c.model = model
	return c
}

// State returns the current model load state.
func (c *Classifier) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Classify labels text, optionally prefixed by title.
func (c *Classifier) Classify(ctx context.Context, text, title string) (Result, error) {
	start := c.now()

	var res Result
	if model := c.ensureModel(ctx); model != nil {
		res = model.Classify(joinTitle(title, text))
	} else if c.cfg.UseFallback {
		res = c.fallback(title, text)
	} else {
		res = unknown()
	}

	res.Latency = c.now().Sub(start)
	return res, nil
}

// ClassifyBatch labels texts in one vectorization pass. When the bulk path
// fails every item is classified on its own. titles may be nil.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts, titles []string) ([]Result, error) {
	if titles == nil {
		titles = make([]string, len(texts))
	}
	if len(titles) != len(texts) {
		return nil, fmt.Errorf("%w: %d titles for %d texts", domain.ErrInvalidInput, len(titles), len(texts))
	}
	if len(texts) == 0 {
		return []Result{}, nil
	}

	start := c.now()
	if model := c.ensureModel(ctx); model != nil {
		full := make([]string, len(texts))
		for i := range texts {
			full[i] = joinTitle(titles[i], texts[i])
		}
		results, err := model.ClassifyBatch(ctx, full)
		if err == nil {
			per := c.now().Sub(start) / time.Duration(len(results))
			for i := range results {
				results[i].Latency = per
			}
			return results, nil
		}
		c.logger.Error("batch classification failed", "error", err)
	}

	out := make([]Result, 0, len(texts))
	for i := range texts {
		res, err := c.Classify(ctx, texts[i], titles[i])
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (c *Classifier) ensureModel(ctx context.Context) *Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Loaded:
		return c.model
	case Failed:
		return nil
	}

	model, err := c.load(ctx)
	if err != nil {
		c.state = Failed
		c.logger.Warn("model unavailable, using fallback",
			"model_key", c.cfg.ModelKey,
			"fallback", c.cfg.UseFallback,
			"error", err)
		return nil
	}
	c.state = Loaded
	c.model = model
	c.logger.Info("model loaded", "version", model.Version)
	return model
}

func (c *Classifier) load(ctx context.Context) (*Model, error) {
	modelPath, err := c.cache.Fetch(ctx, c.cfg.ModelKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	vecPath, err := c.cache.Fetch(ctx, c.cfg.VectorizerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}

	var (
		est Estimator
		vec Vectorizer
	)
	if err := loadJSON(modelPath, &est); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	if err := loadJSON(vecPath, &vec); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}

	model, err := NewModel(&vec, &est, c.cfg.ModelVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	return model, nil
}

// fallback maps the hunt score onto a binary label; confidence grows with the
// distance from the threshold and stays within [0.5, 0.95].
func (c *Classifier) fallback(title, text string) Result {
	score := scoring.Score(title, "", text)
	thr := c.cfg.Threshold

	label := LabelNotHuntable
	delta := thr - score.Score
	if score.Score >= thr {
		label = LabelHuntable
		delta = score.Score - thr
	}
	confidence := min(maxConfidence, 0.5+delta/100)

	features := score.Perfect
	if len(features) > topFeatures {
		features = features[:topFeatures]
	}

	return Result{
		Label:         label,
		Confidence:    confidence,
		Probabilities: fixedProbabilities(label, confidence),
		ModelVersion:  FallbackVersion,
		Features:      append([]string{}, features...),
	}
}

func unknown() Result {
	return Result{
		Label:         LabelUnknown,
		Confidence:    0,
		Probabilities: map[string]float64{LabelHuntable: 0.5, LabelNotHuntable: 0.5},
		ModelVersion:  NoModelVersion,
	}
}

func joinTitle(title, text string) string {
	if title == "" {
		return text
	}
	return title + "\n\n" + text
}
