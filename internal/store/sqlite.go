package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hkuo/vidsum/client/internal/db"
)

// SQLiteStore is the production KV implementation over a single sqlite
// table. The database is opened with synchronous=FULL, so every Exec is
// durable before it returns.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore opens (or creates) the store under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	database, err := db.Open(dataDir)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: database}
	if err := s.initSchema(); err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates the kv table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		ns         TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		size_bytes INTEGER NOT NULL CHECK(size_bytes >= 0),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (ns, key)
	);
	CREATE INDEX IF NOT EXISTS idx_kv_ns ON kv(ns);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv schema: %w", err)
	}
	return nil
}

// Get returns the value for key, or ErrNotFound.
func (s *SQLiteStore) Get(ns, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE ns = ? AND key = ?", ns, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", ns, key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(ns, key string, value []byte) error {
	query := `
	INSERT INTO kv (ns, key, value, size_bytes, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(ns, key) DO UPDATE SET
		value = excluded.value,
		size_bytes = excluded.size_bytes,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, ns, key, value, int64(len(value)), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", ns, key, err)
	}
	return nil
}

// Delete removes key from the namespace.
func (s *SQLiteStore) Delete(ns, key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE ns = ? AND key = ?", ns, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", ns, key, err)
	}
	return nil
}

// Keys returns all keys in the namespace, sorted ascending.
func (s *SQLiteStore) Keys(ns string) ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM kv WHERE ns = ? ORDER BY key ASC", ns)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys in %s: %w", ns, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// List returns all records in the namespace in key order.
func (s *SQLiteStore) List(ns string) ([]Record, error) {
	rows, err := s.db.Query(
		"SELECT key, value, size_bytes, updated_at FROM kv WHERE ns = ? ORDER BY key ASC", ns)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ns, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Value, &r.SizeBytes, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ClearNamespace removes every record in the namespace in one
// transaction, so a concurrent reader never sees a partial namespace.
func (s *SQLiteStore) ClearNamespace(ns string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin clear of %s: %w", ns, err)
	}
	defer tx.Rollback()

	var freed sql.NullInt64
	if err := tx.QueryRow("SELECT SUM(size_bytes) FROM kv WHERE ns = ?", ns).Scan(&freed); err != nil {
		return 0, fmt.Errorf("failed to size %s: %w", ns, err)
	}

	if _, err := tx.Exec("DELETE FROM kv WHERE ns = ?", ns); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", ns, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clear of %s: %w", ns, err)
	}
	return freed.Int64, nil
}

// SizeOf returns the total stored bytes in the namespace.
func (s *SQLiteStore) SizeOf(ns string) (int64, error) {
	var size sql.NullInt64
	err := s.db.QueryRow("SELECT SUM(size_bytes) FROM kv WHERE ns = ?", ns).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("failed to size %s: %w", ns, err)
	}
	return size.Int64, nil
}

// LastUpdated returns the most recent write timestamp in the namespace.
func (s *SQLiteStore) LastUpdated(ns string) (int64, error) {
	var updated sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(updated_at) FROM kv WHERE ns = ?", ns).Scan(&updated)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", ns, err)
	}
	return updated.Int64, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
