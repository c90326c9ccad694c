package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"CTIScraper/internal/classifier"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

// ModelRegistry manages trained model versions and selects the active one.
type ModelRegistry struct {
	repo   ports.ModelRepository
	logger *slog.Logger
}

// NewModelRegistry builds the registry over model storage.
func NewModelRegistry(repo ports.ModelRepository, logger *slog.Logger) *ModelRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ModelRegistry{repo: repo, logger: logger.With("component", "models")}
}

// Register stores a new inactive version; name, version and model key are required.
func (r *ModelRegistry) Register(ctx context.Context, mv domain.ModelVersion) (domain.ModelVersion, error) {
	mv.Name = strings.TrimSpace(mv.Name)
	mv.Version = strings.TrimSpace(mv.Version)
	mv.ModelKey = strings.TrimSpace(mv.ModelKey)
	mv.VectorizerKey = strings.TrimSpace(mv.VectorizerKey)

	switch {
	case mv.Name == "":
		return domain.ModelVersion{}, fmt.Errorf("%w: name", domain.ErrMissingField)
	case mv.Version == "":
		return domain.ModelVersion{}, fmt.Errorf("%w: version", domain.ErrMissingField)
	case mv.ModelKey == "":
		return domain.ModelVersion{}, fmt.Errorf("%w: model_key", domain.ErrMissingField)
	}

	saved, err := r.repo.CreateModelVersion(ctx, mv)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("register model %s@%s: %w", mv.Name, mv.Version, err)
	}
	r.logger.Info("model registered", "name", saved.Name, "version", saved.Version)
	return saved, nil
}

// Activate makes the version the only active one of its name.
func (r *ModelRegistry) Activate(ctx context.Context, name, version string) (domain.ModelVersion, error) {
	mv, err := r.repo.ActivateModelVersion(ctx, name, version)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("activate model %s@%s: %w", name, version, err)
	}
	r.logger.Info("model activated", "name", name, "version", version)
	return mv, nil
}

// List returns every version of a model name.
func (r *ModelRegistry) List(ctx context.Context, name string) ([]domain.ModelVersion, error) {
	versions, err := r.repo.ListModelVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list models %s: %w", name, err)
	}
	return versions, nil
}

// ResolveActive overlays the active version's artifacts on base. With no
// active version base is returned unchanged.
func (r *ModelRegistry) ResolveActive(ctx context.Context, name string, base classifier.Config) (classifier.Config, error) {
	mv, err := r.repo.ActiveModelVersion(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("resolve active model %s: %w", name, err)
	}

	base.ModelKey = mv.ModelKey
	if mv.VectorizerKey != "" {
		base.VectorizerKey = mv.VectorizerKey
	}
	base.ModelVersion = mv.Version
	r.logger.Debug("active model resolved", "name", name, "version", mv.Version)
	return base, nil
}
