package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

var articleColumns = []string{
	"id", "source_id", "url", "title", "summary", "content", "published_at", "modified_at",
	"authors", "fingerprint", "metadata", "word_count", "status", "archived", "discovered_at",
}

func (s *Store) scanArticle(row rowScanner) (domain.Article, error) {
	var (
		article                         domain.Article
		published, modified, discovered nullTime
		status                          string
	)
	authors := authorList{dialect: s.dialect}
	err := row.Scan(
		&article.ID, &article.SourceID, &article.URL, &article.Title, &article.Summary, &article.Content,
		&published, &modified, &authors, &article.Fingerprint, &jsonColumn{target: &article.Metadata},
		&article.WordCount, &status, &article.Archived, &discovered,
	)
	if err != nil {
		return domain.Article{}, err
	}
	article.PublishedAt = published.ptr()
	article.ModifiedAt = modified.ptr()
	article.Authors = authors.values
	article.Status = domain.ProcessingStatus(status)
	article.DiscoveredAt = discovered.Time
	return article, nil
}

// HashExists reports whether the fingerprint is indexed.
func (s *Store) HashExists(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := s.sb.Select("1").From("content_hashes").Where(sq.Eq{"fingerprint": fingerprint}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build hash lookup: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup hash: %w", err)
	}
	return true, nil
}

// SaveArticle inserts the article and its hash record in one transaction.
// Either uniqueness violation is reported as domain.ErrDuplicate.
func (s *Store) SaveArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	if article.DiscoveredAt.IsZero() {
		article.DiscoveredAt = s.now()
	}
	if article.Status == "" {
		article.Status = domain.StatusPending
	}
	metadata := article.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := encodeJSON(metadata)
	if err != nil {
		return domain.Article{}, err
	}

	var saved domain.Article
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sb.Insert("articles").
			Columns("source_id", "url", "title", "summary", "content", "published_at", "modified_at",
				"authors", "fingerprint", "metadata", "word_count", "status", "archived", "discovered_at").
			Values(article.SourceID, article.URL, article.Title, article.Summary, article.Content,
				timeArg(article.PublishedAt), timeArg(article.ModifiedAt), authorList{dialect: s.dialect, values: article.Authors},
				article.Fingerprint, encoded, article.WordCount, string(article.Status), article.Archived, article.DiscoveredAt.UTC()).
			Suffix("RETURNING " + joinColumns(articleColumns)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build article insert: %w", err)
		}
		saved, err = s.scanArticle(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return s.insertError("article "+article.URL, err)
		}

		query, args, err = s.sb.Insert("content_hashes").
			Columns("fingerprint", "article_id", "first_seen").
			Values(saved.Fingerprint, saved.ID, saved.DiscoveredAt.UTC()).
			ToSql()
		if err != nil {
			return fmt.Errorf("build hash insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return s.insertError("content hash "+saved.Fingerprint, err)
		}
		return nil
	})
	if err != nil {
		return domain.Article{}, err
	}
	return saved, nil
}

func (s *Store) insertError(what string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicate)
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

// GetArticle looks an article up by ID.
func (s *Store) GetArticle(ctx context.Context, id int64) (domain.Article, error) {
	query, args, err := s.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build article lookup: %w", err)
	}
	article, err := s.scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article %d: %w", id, err)
	}
	return article, nil
}

// ListArticles returns matching articles ordered by ID.
func (s *Store) ListArticles(ctx context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	builder := s.sb.Select(articleColumns...).From("articles").OrderBy("id")
	if filter.SourceID != 0 {
		builder = builder.Where(sq.Eq{"source_id": filter.SourceID})
	}
	if !filter.IncludeArchived {
		builder = builder.Where(sq.Eq{"archived": false})
	}
	if filter.WithoutChunkResults {
		builder = builder.Where("NOT EXISTS (SELECT 1 FROM chunk_results c WHERE c.article_id = articles.id)")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		article, err := s.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpdateArticleMetadata replaces the metadata bag and, when set, the status.
func (s *Store) UpdateArticleMetadata(ctx context.Context, id int64, metadata map[string]any, status domain.ProcessingStatus) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := encodeJSON(metadata)
	if err != nil {
		return err
	}

	update := s.sb.Update("articles").
		Set("metadata", encoded).
		Set("modified_at", s.now()).
		Where(sq.Eq{"id": id})
	if status != "" {
		update = update.Set("status", string(status))
	}
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build metadata update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
