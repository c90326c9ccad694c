package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"CTIScraper/internal/domain"
)

var chunkColumns = []string{
	"id", "article_id", "chunk_index", "chunk_text", "label", "confidence",
	"hunt_score", "passed_filter", "model_version", "created_at",
}

func scanChunkResult(row rowScanner) (domain.ChunkResult, error) {
	var (
		r       domain.ChunkResult
		created nullTime
	)
	err := row.Scan(&r.ID, &r.ArticleID, &r.ChunkIndex, &r.ChunkText, &r.Label, &r.Confidence,
		&r.HuntScore, &r.PassedFilter, &r.ModelVersion, &created)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	r.CreatedAt = created.Time
	return r, nil
}

// HasChunkResults reports whether the article was analyzed before.
func (s *Store) HasChunkResults(ctx context.Context, articleID int64) (bool, error) {
	query, args, err := s.sb.Select("1").From("chunk_results").Where(sq.Eq{"article_id": articleID}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build chunk lookup: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup chunk results: %w", err)
	}
	return true, nil
}

// SaveChunkResults stores results for one article, optionally dropping older rows.
func (s *Store) SaveChunkResults(ctx context.Context, articleID int64, results []domain.ChunkResult, replace bool) ([]domain.ChunkResult, error) {
	saved := make([]domain.ChunkResult, 0, len(results))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireRow(ctx, tx, "articles", articleID); err != nil {
			return fmt.Errorf("article %d: %w", articleID, err)
		}

		if replace {
			query, args, err := s.sb.Delete("chunk_results").Where(sq.Eq{"article_id": articleID}).ToSql()
			if err != nil {
				return fmt.Errorf("build chunk delete: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete chunk results: %w", err)
			}
		}

		now := s.now()
		for _, r := range results {
			created := r.CreatedAt
			if created.IsZero() {
				created = now
			}
			query, args, err := s.sb.Insert("chunk_results").
				Columns("article_id", "chunk_index", "chunk_text", "label", "confidence",
					"hunt_score", "passed_filter", "model_version", "created_at").
				Values(articleID, r.ChunkIndex, r.ChunkText, r.Label, r.Confidence,
					r.HuntScore, r.PassedFilter, r.ModelVersion, created.UTC()).
				Suffix("RETURNING " + joinColumns(chunkColumns)).
				ToSql()
			if err != nil {
				return fmt.Errorf("build chunk insert: %w", err)
			}
			row, err := scanChunkResult(tx.QueryRowContext(ctx, query, args...))
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", r.ChunkIndex, err)
			}
			saved = append(saved, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListChunkResults returns results of an article ordered by chunk index.
func (s *Store) ListChunkResults(ctx context.Context, articleID int64) ([]domain.ChunkResult, error) {
	query, args, err := s.sb.Select(chunkColumns...).From("chunk_results").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("chunk_index", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build chunk list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunk results: %w", err)
	}
	defer rows.Close()

	var out []domain.ChunkResult
	for rows.Next() {
		r, err := scanChunkResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetChunkResult looks a chunk result up by ID.
func (s *Store) GetChunkResult(ctx context.Context, id int64) (domain.ChunkResult, error) {
	query, args, err := s.sb.Select(chunkColumns...).From("chunk_results").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("build chunk lookup: %w", err)
	}
	r, err := scanChunkResult(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChunkResult{}, fmt.Errorf("chunk result %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("get chunk result %d: %w", id, err)
	}
	return r, nil
}

// SaveFeedback appends a feedback record.
func (s *Store) SaveFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireRow(ctx, tx, "chunk_results", fb.ChunkResultID); err != nil {
			return fmt.Errorf("chunk result %d: %w", fb.ChunkResultID, err)
		}
		query, args, err := s.sb.Insert("classification_feedback").
			Columns("chunk_result_id", "article_id", "chunk_text", "model_label", "correct_label",
				"model_confidence", "comment", "created_at").
			Values(fb.ChunkResultID, fb.ArticleID, fb.ChunkText, fb.ModelLabel, fb.CorrectLabel,
				fb.ModelConfidence, fb.Comment, fb.CreatedAt.UTC()).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build feedback insert: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&fb.ID); err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Feedback{}, err
	}
	return fb, nil
}

func (s *Store) requireRow(ctx context.Context, tx *sql.Tx, table string, id int64) error {
	query, args, err := s.sb.Select("1").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build %s lookup: %w", table, err)
	}
	var one int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
