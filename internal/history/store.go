// Package history persists download results and the cookie jar in Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"thirdcoast.systems/crate/pkg/cookies"
)

// Extractor is the label recorded for every entry from this source.
const Extractor = "Youtube Music"

// Entry is one downloaded file on persistent storage. Entries are written
// exactly once at finalization and never mutated.
type Entry struct {
	ID           int64
	SongName     string
	SongAuthor   string
	SongURL      string
	ThumbnailURL string
	SongPath     string
	SongDuration float64
	Extractor    string
	CreatedAt    time.Time
}

// Store wraps the connection pool with the queries the orchestrator and the
// API need. Safe for concurrent use; serialization happens in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// InsertEntry records a downloaded file. The checksum id is collision-prone
// (see ChecksumID), so a colliding insert replaces the previous row instead
// of failing.
func (s *Store) InsertEntry(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO download_history
			(id, song_name, song_author, song_url, thumbnail_url, song_path, song_duration, extractor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			song_name = EXCLUDED.song_name,
			song_author = EXCLUDED.song_author,
			song_url = EXCLUDED.song_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			song_path = EXCLUDED.song_path,
			song_duration = EXCLUDED.song_duration,
			extractor = EXCLUDED.extractor,
			created_at = now()`,
		e.ID, e.SongName, e.SongAuthor, e.SongURL, e.ThumbnailURL, e.SongPath, e.SongDuration, e.Extractor,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// RecentEntries returns up to limit entries, newest first.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, song_name, song_author, song_url, thumbnail_url, song_path, song_duration, extractor, created_at
		FROM download_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SongName, &e.SongAuthor, &e.SongURL, &e.ThumbnailURL,
			&e.SongPath, &e.SongDuration, &e.Extractor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntry removes one entry by id.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM download_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// ReplaceCookies swaps the stored cookie jar for the given rows, keeping
// their input order in the position column.
func (s *Store) ReplaceCookies(ctx context.Context, rows []cookies.Cookie) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cookie replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	for i, c := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO cookies (domain, name, value, path, secure, expiry, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (domain, name, path) DO UPDATE SET
				value = EXCLUDED.value,
				secure = EXCLUDED.secure,
				expiry = EXCLUDED.expiry,
				position = EXCLUDED.position`,
			c.Domain, c.Name, c.Value, c.Path, c.Secure, c.Expiry, i)
		if err != nil {
			return fmt.Errorf("insert cookie: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Cookies returns the stored cookie jar in its original upload order.
func (s *Store) Cookies(ctx context.Context) ([]cookies.Cookie, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT domain, name, value, path, secure, expiry
		FROM cookies
		ORDER BY position, domain, name`)
	if err != nil {
		return nil, fmt.Errorf("list cookies: %w", err)
	}
	defer rows.Close()

	var out []cookies.Cookie
	for rows.Next() {
		var c cookies.Cookie
		if err := rows.Scan(&c.Domain, &c.Name, &c.Value, &c.Path, &c.Secure, &c.Expiry); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
