package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/infrastructure/storage/storagetest"
	"CTIScraper/internal/ports"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "cti.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	storagetest.Run(t, func(t *testing.T) ports.Repository { return openSQLite(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cti.db")
	first, err := Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	_, err = first.UpsertSource(context.Background(), domain.Source{Identifier: "keep", CheckFrequency: time.Minute, Active: true})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	defer second.Close()

	src, err := second.GetSource(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, src.CheckFrequency)
}

func TestFeedbackSurvivesChunkReplacement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openSQLite(t)
	defer store.Close()

	src, err := store.UpsertSource(ctx, domain.Source{Identifier: "s", Active: true})
	require.NoError(t, err)
	article, err := store.SaveArticle(ctx, domain.Article{SourceID: src.ID, URL: "https://x/1", Title: "t", Fingerprint: "fp"})
	require.NoError(t, err)
	results, err := store.SaveChunkResults(ctx, article.ID, []domain.ChunkResult{{ChunkText: "c", Label: domain.LabelHuntable}}, false)
	require.NoError(t, err)
	_, err = store.SaveFeedback(ctx, domain.Feedback{ChunkResultID: results[0].ID, ArticleID: article.ID, CorrectLabel: domain.LabelNotHuntable})
	require.NoError(t, err)

	_, err = store.SaveChunkResults(ctx, article.ID, []domain.ChunkResult{{ChunkText: "c2", Label: domain.LabelHuntable}}, true)
	require.NoError(t, err)

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classification_feedback").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(context.Background(), "sqlite", "")
	assert.ErrorContains(t, err, "dsn is empty")
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Dialect{"postgres": Postgres, "PostgreSQL": Postgres, "sqlite3": SQLite, " sqlite ": SQLite} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestPostgresPlaceholders(t *testing.T) {
	t.Parallel()

	store := New(nil, Postgres)
	query, args, err := store.sb.Select("id").From("sources").Where(sq.Eq{"identifier": "x"}).Where("active = ?", true).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM sources WHERE identifier = $1 AND active = $2", query)
	assert.Equal(t, []any{"x", true}, args)
	assert.NoError(t, store.Close())
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN("/tmp/a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN("file:a.db?mode=rwc"))
	full := "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(1)&_time_format=sqlite"
	assert.Equal(t, full, sqliteDSN(full))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: articles.url (2067)")))
	assert.False(t, isUniqueViolation(errors.New("disk I/O error")))
	assert.False(t, isUniqueViolation(nil))
}

func TestNullTimeScan(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	for _, src := range []any{
		want,
		"2024-05-01 10:30:00+00:00",
		[]byte("2024-05-01T10:30:00Z"),
		"2024-05-01 10:30:00.000000000 +0000 UTC m=+0.001",
	} {
		var n nullTime
		require.NoError(t, n.Scan(src), src)
		assert.True(t, n.Valid)
		assert.True(t, n.Time.Equal(want), "%v -> %v", src, n.Time)
	}

	var n nullTime
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)
	assert.Nil(t, n.ptr())
	assert.Error(t, n.Scan("yesterday"))
}

func TestAuthorListEncoding(t *testing.T) {
	t.Parallel()

	v, err := authorList{dialect: Postgres, values: []string{"a", "b c"}}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b c"}`, v)

	v, err = authorList{dialect: SQLite}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	pg := authorList{dialect: Postgres}
	require.NoError(t, pg.Scan([]byte(`{a,"b c"}`)))
	assert.Equal(t, []string{"a", "b c"}, pg.values)

	lite := authorList{dialect: SQLite}
	require.NoError(t, lite.Scan(`["x","y"]`))
	assert.Equal(t, []string{"x", "y"}, lite.values)
}
