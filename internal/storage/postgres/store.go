// Package postgres implements the crawl.Store contract on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE videos (
//	    uri            text PRIMARY KEY,
//	    title          text NOT NULL DEFAULT '',
//	    description    text NOT NULL DEFAULT '',
//	    author_name    text NOT NULL DEFAULT '',
//	    author_url     text NOT NULL DEFAULT '',
//	    length_seconds bigint NOT NULL DEFAULT 0,
//	    view_count     bigint NOT NULL DEFAULT 0,
//	    category       text NOT NULL DEFAULT '',
//	    upload_date    text NOT NULL DEFAULT '',
//	    fuzzy_words    text,
//	    first_seen     timestamptz NOT NULL DEFAULT now(),
//	    last_updated   timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE INDEX videos_fuzzy_idx ON videos
//	    USING GIN (to_tsvector('simple', coalesce(fuzzy_words, '')));
//
//	CREATE TABLE queries (
//	    query      text PRIMARY KEY,
//	    date       timestamptz NOT NULL,
//	    crawl_date timestamptz
//	);
//
// The 'simple' text-search configuration is deliberate: fuzzy tokens are
// pre-normalized, so the index must treat them as opaque, with no
// language-specific stemming.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tubedex/tubedex/internal/crawl"
)

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements crawl.Store on Postgres.
type Store struct {
	db     DB
	logger *zap.Logger
}

var _ crawl.Store = (*Store)(nil)

// New connects to Postgres and pings it to ensure the connection is alive.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool, logger: logger}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

const upsertVideoSQL = `
INSERT INTO videos (uri, title, description, author_name, author_url,
                    length_seconds, view_count, category, upload_date, fuzzy_words)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
ON CONFLICT (uri) DO UPDATE SET
    title          = COALESCE(NULLIF(EXCLUDED.title, ''), videos.title),
    description    = COALESCE(NULLIF(EXCLUDED.description, ''), videos.description),
    author_name    = COALESCE(NULLIF(EXCLUDED.author_name, ''), videos.author_name),
    author_url     = COALESCE(NULLIF(EXCLUDED.author_url, ''), videos.author_url),
    length_seconds = COALESCE(NULLIF(EXCLUDED.length_seconds, 0), videos.length_seconds),
    view_count     = COALESCE(NULLIF(EXCLUDED.view_count, 0), videos.view_count),
    category       = COALESCE(NULLIF(EXCLUDED.category, ''), videos.category),
    upload_date    = COALESCE(NULLIF(EXCLUDED.upload_date, ''), videos.upload_date),
    fuzzy_words    = COALESCE(EXCLUDED.fuzzy_words, videos.fuzzy_words),
    last_updated   = now()`

// UpsertVideo merges rec into the stored record. The merge is additive at
// the field level: empty incoming values never regress stored ones, so a
// later partial fetch cannot replace a richer record with an emptier one.
func (s *Store) UpsertVideo(ctx context.Context, rec crawl.VideoRecord) error {
	if rec.URI == "" {
		return errors.New("upsert video: empty uri")
	}
	_, err := s.db.Exec(ctx, upsertVideoSQL,
		rec.URI, rec.Title, rec.Description, rec.AuthorName, rec.AuthorURL,
		rec.LengthSeconds, rec.ViewCount, rec.Category, rec.UploadDate, rec.FuzzyWords,
	)
	if err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}
	return nil
}

const findIncompleteSQL = `
SELECT uri FROM videos
WHERE title = '' AND description = ''
ORDER BY first_seen
LIMIT $1`

// FindIncomplete returns records whose title and description are both empty.
func (s *Store) FindIncomplete(ctx context.Context, limit int) ([]crawl.VideoRecord, error) {
	rows, err := s.db.Query(ctx, findIncompleteSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("find incomplete: %w", err)
	}
	defer rows.Close()

	var recs []crawl.VideoRecord
	for rows.Next() {
		var rec crawl.VideoRecord
		if err := rows.Scan(&rec.URI); err != nil {
			return nil, fmt.Errorf("scan incomplete row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete rows: %w", err)
	}
	return recs, nil
}

const claimQuerySQL = `
UPDATE queries SET crawl_date = now()
WHERE query = (
    SELECT query FROM queries
    WHERE crawl_date IS NULL
    ORDER BY date
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING query`

// ClaimNextQuery atomically claims one unconsumed query record. SKIP LOCKED
// makes the claim exactly-once across cooperating instances; this is the
// sole cross-instance mutual-exclusion point.
func (s *Store) ClaimNextQuery(ctx context.Context) (string, bool, error) {
	var query string
	err := s.db.QueryRow(ctx, claimQuerySQL).Scan(&query)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("claim query: %w", err)
	}
	return query, true, nil
}

const recordQuerySQL = `
INSERT INTO queries (query, date) VALUES ($1, $2)
ON CONFLICT (query) DO UPDATE SET date = EXCLUDED.date`

// RecordQuery upserts a query string's last-seen date. An already-crawled
// query keeps its crawl date; only the sighting date moves.
func (s *Store) RecordQuery(ctx context.Context, query string, seen time.Time) error {
	if query == "" {
		return errors.New("record query: empty query")
	}
	if _, err := s.db.Exec(ctx, recordQuerySQL, query, seen); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

const searchCountSQL = `
SELECT count(*) FROM videos
WHERE to_tsvector('simple', coalesce(fuzzy_words, '')) @@ plainto_tsquery('simple', $1)`

const searchPageSQL = `
SELECT uri, title, description, author_name, author_url,
       length_seconds, view_count, category, upload_date
FROM videos
WHERE to_tsvector('simple', coalesce(fuzzy_words, '')) @@ plainto_tsquery('simple', $1)
ORDER BY ts_rank_cd(to_tsvector('simple', coalesce(fuzzy_words, '')),
                    plainto_tsquery('simple', $1)) DESC
LIMIT $2 OFFSET $3`

// SearchVideos answers a ranked, paginated full-text query over the fuzzy
// token field. Pages are 1-based.
func (s *Store) SearchVideos(ctx context.Context, query string, page, pageSize int) (crawl.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var total int
	if err := s.db.QueryRow(ctx, searchCountSQL, query).Scan(&total); err != nil {
		return crawl.SearchResult{}, fmt.Errorf("count search hits: %w", err)
	}

	rows, err := s.db.Query(ctx, searchPageSQL, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return crawl.SearchResult{}, fmt.Errorf("search videos: %w", err)
	}
	defer rows.Close()

	result := crawl.SearchResult{Total: total}
	for rows.Next() {
		var rec crawl.VideoRecord
		if err := rows.Scan(
			&rec.URI, &rec.Title, &rec.Description, &rec.AuthorName, &rec.AuthorURL,
			&rec.LengthSeconds, &rec.ViewCount, &rec.Category, &rec.UploadDate,
		); err != nil {
			return crawl.SearchResult{}, fmt.Errorf("scan search row: %w", err)
		}
		result.Hits = append(result.Hits, rec)
	}
	if err := rows.Err(); err != nil {
		return crawl.SearchResult{}, fmt.Errorf("iterate search rows: %w", err)
	}
	return result, nil
}
