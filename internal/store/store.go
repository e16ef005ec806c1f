package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valpere/epubtran/internal"
	"github.com/valpere/epubtran/internal/cache"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent jobs queue on the connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		backend TEXT NOT NULL,
		final_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 0,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang, backend)
	);

	-- glossary stores user-defined terminology passed to LLM backends
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	-- jobs records the outcome of each document translation run
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		dest_path TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		backend TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT,
		parts INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		sentences INTEGER DEFAULT 0,
		cache_hits INTEGER DEFAULT 0,
		translated INTEGER DEFAULT 0,
		flagged INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_lang, target_lang, backend);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetSegment returns the stored translation of a sentence for a language pair
// and backend. Invalidated entries are reported as misses.
func (s *Store) GetSegment(ctx context.Context, sourceText, sourceLang, targetLang, backend string) (string, bool, error) {
	var finalText string
	var invalidated bool

	key := cache.Key(sourceText)
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM translation_memory WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND backend = ?`,
		key, sourceLang, targetLang, backend).Scan(&finalText, &invalidated)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND backend = ?`,
		time.Now(), key, sourceLang, targetLang, backend)

	return finalText, true, err
}

// PutSegment stores a sentence translation. Writing the same key again
// replaces the text and clears any invalidation.
func (s *Store) PutSegment(ctx context.Context, sourceText, sourceLang, targetLang, backend, finalText string) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_memory (id, source_text, source_lang, target_lang, backend, final_text, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, FALSE, ?, ?)
		 ON CONFLICT(source_text, source_lang, target_lang, backend)
		 DO UPDATE SET final_text = excluded.final_text, invalidated = FALSE, last_used = excluded.last_used`,
		id, cache.Key(sourceText), sourceLang, targetLang, backend, finalText, now, now)
	return err
}

// SegmentCache is a cache.Cache view of the translation memory restricted to
// one language pair and backend.
type SegmentCache struct {
	store      *Store
	sourceLang string
	targetLang string
	backend    string
}

// Segments returns the translation memory scoped to a language pair and backend.
func (s *Store) Segments(sourceLang, targetLang, backend string) *SegmentCache {
	return &SegmentCache{store: s, sourceLang: sourceLang, targetLang: targetLang, backend: backend}
}

func (c *SegmentCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.store.GetSegment(ctx, key, c.sourceLang, c.targetLang, c.backend)
}

func (c *SegmentCache) Put(ctx context.Context, key, value string) error {
	return c.store.PutSegment(ctx, key, c.sourceLang, c.targetLang, c.backend, value)
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	SourceLang  string
	TargetLang  string
	Backend     string
	FinalText   string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// InvalidateMemory hides an entry from lookups without deleting it.
func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns translation memory entries ordered by most recently used.
// limit <= 0 returns everything.
func (s *Store) ListMemory(ctx context.Context, limit int) ([]MemoryEntry, error) {
	query := `SELECT id, source_text, source_lang, target_lang, backend, final_text, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.SourceLang, &e.TargetLang, &e.Backend, &e.FinalText, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SaveJob inserts or updates a job record.
func (s *Store) SaveJob(ctx context.Context, job internal.Job) error {
	var finished interface{}
	if !job.FinishedAt.IsZero() {
		finished = job.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, source_path, dest_path, source_lang, target_lang, backend, state, error, parts, skipped, sentences, cache_hits, translated, flagged, bytes, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourcePath, job.DestPath, job.SourceLang, job.TargetLang, job.Backend, string(job.State), job.Error,
		job.Parts, job.Skipped, job.Sentences, job.CacheHits, job.Translated, job.Flagged, job.Bytes, job.StartedAt, finished)
	return err
}

// ListJobs returns the most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]internal.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, dest_path, source_lang, target_lang, backend, state, COALESCE(error, ''), parts, skipped, sentences, cache_hits, translated, flagged, bytes, started_at, finished_at
		 FROM jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []internal.Job
	for rows.Next() {
		var j internal.Job
		var state string
		var finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.SourcePath, &j.DestPath, &j.SourceLang, &j.TargetLang, &j.Backend, &state, &j.Error,
			&j.Parts, &j.Skipped, &j.Sentences, &j.CacheHits, &j.Translated, &j.Flagged, &j.Bytes, &j.StartedAt, &finished); err != nil {
			return nil, err
		}
		j.State = internal.JobState(state)
		if finished.Valid {
			j.FinishedAt = finished.Time
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	return nil
}
