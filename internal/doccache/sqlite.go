package doccache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// schemaVersion changes whenever the persisted document encoding changes.
const schemaVersion = 2

// SQLiteStore implements Store using SQLite. Documents are stored as gob
// blobs so typed item fields survive a round trip.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the store at dbPath, creating the schema if needed.
// Use ":memory:" for an in-memory database. A database written with another
// schema version is emptied.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("%w: initialize schema: %w", ErrStoreOpenFailed, err)
	}
	return store, nil
}

// OpenStore opens the store at dbPath. A file that cannot be opened as a
// cache database is logged, removed and recreated empty.
func OpenStore(dbPath string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(dbPath)
	if err == nil {
		return store, nil
	}
	slog.Info("Discarding unreadable document cache", logfields.Path(dbPath), logfields.Error(err))
	if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpenFailed, rmErr)
	}
	return NewSQLiteStore(dbPath)
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		mod_time INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_rank ON documents(rank);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var raw string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		if v, convErr := strconv.Atoi(raw); convErr == nil && v == schemaVersion {
			return nil
		}
		slog.Info("Document cache schema changed, starting cold",
			slog.String("found", raw), slog.Int("want", schemaVersion))
		if _, err := s.db.Exec("DELETE FROM documents"); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(
		"INSERT INTO meta (key, value) VALUES ('schema_version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		strconv.Itoa(schemaVersion),
	)
	return err
}

// Load returns every persisted entry, most recently used first. A row that
// cannot be decoded fails the whole load with ErrCorruptEntry.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, hash, mod_time, payload FROM documents ORDER BY rank")
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			payload []byte
		)
		if err := rows.Scan(&e.Path, &e.Fingerprint.Hash, &e.Fingerprint.ModTime, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrCorruptEntry, err)
		}
		doc, err := decodeDocument(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, e.Path, err)
		}
		e.Doc = doc
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Save replaces the persisted entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (path, hash, mod_time, rank, payload) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	defer stmt.Close()

	for rank, e := range entries {
		payload, err := encodeDocument(e.Doc)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", ErrStoreWriteFailed, e.Path, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Path, e.Fingerprint.Hash, e.Fingerprint.ModTime, rank, payload); err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrStoreWriteFailed, e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	return nil
}

// Clear removes every persisted entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func encodeDocument(doc *parser.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDocument(payload []byte) (*parser.Document, error) {
	var doc parser.Document
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Restore loads persisted entries into c, keeping their recency order and
// the cache budgets. Entries whose file has changed since are harmless:
// GetOrParse compares fingerprints. A failing store is logged at Info,
// cleared, and leaves the cache cold. It returns the number of entries
// restored.
func (c *Cache) Restore(ctx context.Context, s Store) int {
	entries, err := s.Load(ctx)
	if err != nil {
		slog.Info("Discarding corrupted document cache", logfields.Error(err))
		if clearErr := s.Clear(ctx); clearErr != nil {
			slog.Info("Failed to clear document cache", logfields.Error(clearErr))
		}
		return 0
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Doc == nil || e.Fingerprint.IsZero() {
			continue
		}
		c.put(e.Path, e.Fingerprint, e.Doc)
	}
	return c.Len()
}

// Persist saves the resident entries to s.
func (c *Cache) Persist(ctx context.Context, s Store) error {
	return s.Save(ctx, c.Entries())
}

var _ Store = (*SQLiteStore)(nil)

// Fingerprints returns the persisted fingerprints by path. It is used by the
// CLI to report what a warm start would reuse.
func (s *SQLiteStore) Fingerprints(ctx context.Context) (map[string]source.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, hash, mod_time FROM documents")
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]source.Fingerprint)
	for rows.Next() {
		var p string
		var fp source.Fingerprint
		if err := rows.Scan(&p, &fp.Hash, &fp.ModTime); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[p] = fp
	}
	return out, rows.Err()
}
