package catalog

import (
	"database/sql"
	"fmt"

	"pgbak/internal/capture"
	"pgbak/internal/catalog/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements capture.Catalog using SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens (creating if necessary) the catalog database at
// path and brings its schema up to date. path can be ":memory:" for an
// in-memory catalog.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	return &SQLiteCatalog{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward
	// compatibility).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// RecordCapture inserts one capture attempt and fills in its
// auto-increment ID.
func (c *SQLiteCatalog) RecordCapture(rec *capture.CaptureRecord) error {
	result, err := c.db.Exec(`
		INSERT INTO captures (manifest_id, label, wal_start, raw_bytes, compressed_bytes, started_at, finished_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ManifestID, rec.Label, rec.WALStart, rec.RawBytes, rec.CompressedBytes,
		rec.StartedAt, rec.FinishedAt, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting capture record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading capture record id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListCaptures returns the most recent capture records, newest first.
func (c *SQLiteCatalog) ListCaptures(limit int) ([]*capture.CaptureRecord, error) {
	rows, err := c.db.Query(`
		SELECT id, manifest_id, label, wal_start, raw_bytes, compressed_bytes, started_at, finished_at, status
		FROM captures
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	defer rows.Close()

	var records []*capture.CaptureRecord
	for rows.Next() {
		var rec capture.CaptureRecord
		if err := rows.Scan(
			&rec.ID, &rec.ManifestID, &rec.Label, &rec.WALStart,
			&rec.RawBytes, &rec.CompressedBytes,
			&rec.StartedAt, &rec.FinishedAt, &rec.Status,
		); err != nil {
			return nil, fmt.Errorf("scanning capture record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capture records: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// Compile-time check that SQLiteCatalog implements capture.Catalog.
var _ capture.Catalog = (*SQLiteCatalog)(nil)
