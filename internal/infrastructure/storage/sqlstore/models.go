package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"CTIScraper/internal/domain"
)

var modelColumns = []string{
	"id", "name", "version", "model_key", "vectorizer_key", "training_samples",
	"training_seconds", "hyperparameters", "metrics", "active", "created_at",
}

func scanModel(row rowScanner) (domain.ModelVersion, error) {
	var (
		mv      domain.ModelVersion
		seconds float64
		created nullTime
	)
	err := row.Scan(&mv.ID, &mv.Name, &mv.Version, &mv.ModelKey, &mv.VectorizerKey, &mv.TrainingSamples,
		&seconds, &jsonColumn{target: &mv.Hyperparameters}, &jsonColumn{target: &mv.Metrics}, &mv.Active, &created)
	if err != nil {
		return domain.ModelVersion{}, err
	}
	mv.TrainingTime = time.Duration(seconds * float64(time.Second))
	mv.CreatedAt = created.Time
	return mv, nil
}

// CreateModelVersion registers an inactive version; (name, version) is unique.
func (s *Store) CreateModelVersion(ctx context.Context, mv domain.ModelVersion) (domain.ModelVersion, error) {
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = s.now()
	}
	hyper, err := encodeJSON(orEmpty(mv.Hyperparameters))
	if err != nil {
		return domain.ModelVersion{}, err
	}
	metrics := mv.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	encodedMetrics, err := encodeJSON(metrics)
	if err != nil {
		return domain.ModelVersion{}, err
	}

	query, args, err := s.sb.Insert("model_versions").
		Columns("name", "version", "model_key", "vectorizer_key", "training_samples",
			"training_seconds", "hyperparameters", "metrics", "active", "created_at").
		Values(mv.Name, mv.Version, mv.ModelKey, mv.VectorizerKey, mv.TrainingSamples,
			mv.TrainingTime.Seconds(), hyper, encodedMetrics, false, mv.CreatedAt.UTC()).
		Suffix("RETURNING " + joinColumns(modelColumns)).
		ToSql()
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("build model insert: %w", err)
	}

	saved, err := scanModel(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.ModelVersion{}, s.insertError(fmt.Sprintf("model %s@%s", mv.Name, mv.Version), err)
	}
	return saved, nil
}

// ActivateModelVersion marks one version active and the rest of its name inactive.
func (s *Store) ActivateModelVersion(ctx context.Context, name, version string) (domain.ModelVersion, error) {
	var active domain.ModelVersion
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sb.Select("id").From("model_versions").
			Where(sq.Eq{"name": name, "version": version}).ToSql()
		if err != nil {
			return fmt.Errorf("build model lookup: %w", err)
		}
		var id int64
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("model %s@%s: %w", name, version, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lookup model: %w", err)
		}

		query, args, err = s.sb.Update("model_versions").Set("active", false).
			Where(sq.Eq{"name": name, "active": true}).ToSql()
		if err != nil {
			return fmt.Errorf("build model deactivate: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deactivate models: %w", err)
		}

		query, args, err = s.sb.Update("model_versions").Set("active", true).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING " + joinColumns(modelColumns)).ToSql()
		if err != nil {
			return fmt.Errorf("build model activate: %w", err)
		}
		active, err = scanModel(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("activate model: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ModelVersion{}, err
	}
	return active, nil
}

// ActiveModelVersion returns the active version of a model name.
func (s *Store) ActiveModelVersion(ctx context.Context, name string) (domain.ModelVersion, error) {
	query, args, err := s.sb.Select(modelColumns...).From("model_versions").
		Where(sq.Eq{"name": name, "active": true}).ToSql()
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("build active model lookup: %w", err)
	}
	mv, err := scanModel(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ModelVersion{}, fmt.Errorf("active model %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("get active model %s: %w", name, err)
	}
	return mv, nil
}

// ListModelVersions returns versions of a model name, oldest first.
func (s *Store) ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error) {
	builder := s.sb.Select(modelColumns...).From("model_versions").OrderBy("id")
	if name != "" {
		builder = builder.Where(sq.Eq{"name": name})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build model list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		mv, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
