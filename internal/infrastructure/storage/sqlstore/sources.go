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

var sourceColumns = []string{
	"id", "identifier", "name", "url", "feed_url", "check_frequency_seconds", "active",
	"selectors", "fetch_full_content", "consecutive_failures", "last_check", "last_success", "total_articles",
}

var checkColumns = []string{
	"id", "source_id", "checked_at", "success", "method", "articles_found", "latency_ms", "error",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		src                    domain.Source
		frequency              int64
		lastCheck, lastSuccess nullTime
	)
	err := row.Scan(
		&src.ID, &src.Identifier, &src.Name, &src.URL, &src.FeedURL, &frequency, &src.Active,
		&jsonColumn{target: &src.Selectors}, &src.FetchFullContent, &src.ConsecutiveFailures,
		&lastCheck, &lastSuccess, &src.TotalArticles,
	)
	if err != nil {
		return domain.Source{}, err
	}
	src.CheckFrequency = time.Duration(frequency) * time.Second
	src.LastCheck = lastCheck.ptr()
	src.LastSuccess = lastSuccess.ptr()
	return src, nil
}

// UpsertSource creates the source or refreshes its configured fields.
func (s *Store) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	if src.Identifier == "" {
		return domain.Source{}, fmt.Errorf("source identifier: %w", domain.ErrMissingField)
	}
	selectors, err := encodeJSON(src.Selectors)
	if err != nil {
		return domain.Source{}, err
	}

	query, args, err := s.sb.Insert("sources").
		Columns("identifier", "name", "url", "feed_url", "check_frequency_seconds", "active", "selectors", "fetch_full_content").
		Values(src.Identifier, src.Name, src.URL, src.FeedURL, int64(src.CheckFrequency/time.Second), src.Active, selectors, src.FetchFullContent).
		Suffix(`ON CONFLICT (identifier) DO UPDATE SET
    name = excluded.name,
    url = excluded.url,
    feed_url = excluded.feed_url,
    check_frequency_seconds = excluded.check_frequency_seconds,
    active = excluded.active,
    selectors = excluded.selectors,
    fetch_full_content = excluded.fetch_full_content
RETURNING ` + joinColumns(sourceColumns)).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build source upsert: %w", err)
	}

	saved, err := scanSource(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Source{}, fmt.Errorf("upsert source %s: %w", src.Identifier, err)
	}
	return saved, nil
}

// GetSource looks a source up by identifier.
func (s *Store) GetSource(ctx context.Context, identifier string) (domain.Source, error) {
	query, args, err := s.sb.Select(sourceColumns...).From("sources").Where(sq.Eq{"identifier": identifier}).ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build source lookup: %w", err)
	}
	src, err := scanSource(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %s: %w", identifier, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source %s: %w", identifier, err)
	}
	return src, nil
}

// ListSources returns sources ordered by ID.
func (s *Store) ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	builder := s.sb.Select(sourceColumns...).From("sources").OrderBy("id")
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// RecordCheck appends the check and applies the health delta in one transaction.
func (s *Store) RecordCheck(ctx context.Context, check domain.SourceCheck, health domain.SourceHealth) (domain.Source, error) {
	var updated domain.Source
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		at := health.CheckedAt.UTC()
		update := s.sb.Update("sources").Set("last_check", at).Where(sq.Eq{"id": check.SourceID})
		if health.Success {
			update = update.
				Set("last_success", at).
				Set("consecutive_failures", 0).
				Set("total_articles", sq.Expr("total_articles + ?", health.NewArticles))
		} else {
			update = update.Set("consecutive_failures", sq.Expr("consecutive_failures + 1"))
		}

		query, args, err := update.Suffix("RETURNING " + joinColumns(sourceColumns)).ToSql()
		if err != nil {
			return fmt.Errorf("build health update: %w", err)
		}
		updated, err = scanSource(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("source %d: %w", check.SourceID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update source health: %w", err)
		}

		query, args, err = s.sb.Insert("source_checks").
			Columns("source_id", "checked_at", "success", "method", "articles_found", "latency_ms", "error").
			Values(check.SourceID, check.CheckedAt.UTC(), check.Success, string(check.Method), check.ArticlesFound, check.Latency.Milliseconds(), check.Error).
			ToSql()
		if err != nil {
			return fmt.Errorf("build check insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert source check: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Source{}, err
	}
	return updated, nil
}

// ListChecks returns the newest checks of a source first.
func (s *Store) ListChecks(ctx context.Context, sourceID int64, limit int) ([]domain.SourceCheck, error) {
	builder := s.sb.Select(checkColumns...).From("source_checks").Where(sq.Eq{"source_id": sourceID}).OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build check list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceCheck
	for rows.Next() {
		var (
			check     domain.SourceCheck
			checkedAt nullTime
			method    string
			latencyMS int64
		)
		if err := rows.Scan(&check.ID, &check.SourceID, &checkedAt, &check.Success, &method, &check.ArticlesFound, &latencyMS, &check.Error); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		check.CheckedAt = checkedAt.Time
		check.Method = domain.CheckMethod(method)
		check.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
