package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// CacheDB provides SQLite-based storage for cached HTTP responses and
// packaged-lesson records. It manages the connection pool and provides
// methods for the chef's two access patterns: response lookups during
// crawling, and package lookups during repackaging.
type CacheDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CacheDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// read performance while the packager writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CacheDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned.
func Open(dbDir string, opts Options) (*CacheDB, error) {
	dbPath := filepath.Join(dbDir, "webcache.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("cache database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw / mode=rwc in the DSN to control
	// whether a missing file is created.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer; readers share the WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CacheDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CacheDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CacheDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CacheDB) createTables() error {
	schema := `
	-- Cached HTTP responses, one row per URL (query string included)
	CREATE TABLE IF NOT EXISTS responses (
		url TEXT PRIMARY KEY,
		status_code INTEGER NOT NULL,
		content_type TEXT,
		body BLOB,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Packaged lessons, keyed by lesson source ID
	CREATE TABLE IF NOT EXISTS packages (
		source_id TEXT PRIMARY KEY,
		zip_url TEXT NOT NULL,
		zip_sha256 TEXT NOT NULL,
		zip_path TEXT NOT NULL,
		packaged_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_packages_sha ON packages(zip_sha256);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CachedResponse is a stored HTTP response.
type CachedResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// GetResponse retrieves a cached response, or nil if the URL has never
// been fetched.
func (cdb *CacheDB) GetResponse(ctx context.Context, url string) (*CachedResponse, error) {
	query := `
	SELECT url, status_code, content_type, body, fetched_at
	FROM responses
	WHERE url = ?
	`

	var resp CachedResponse
	var fetchedAt string

	err := cdb.db.QueryRowContext(ctx, query, url).Scan(
		&resp.URL,
		&resp.StatusCode,
		&resp.ContentType,
		&resp.Body,
		&fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}

	resp.FetchedAt = parseTimestamp(fetchedAt)
	return &resp, nil
}

// PutResponse stores a response, replacing any previous row for the URL.
func (cdb *CacheDB) PutResponse(ctx context.Context, resp *CachedResponse) error {
	query := `
	INSERT INTO responses (url, status_code, content_type, body)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		body = excluded.body,
		fetched_at = CURRENT_TIMESTAMP
	`

	_, err := cdb.db.ExecContext(ctx, query,
		resp.URL,
		resp.StatusCode,
		resp.ContentType,
		resp.Body,
	)
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}

	return nil
}

// PackageRecord is a stored packaged-lesson record.
type PackageRecord struct {
	SourceID   string
	ZipURL     string
	ZipSHA256  string
	ZipPath    string
	PackagedAt time.Time
}

// GetPackage retrieves the packaged record for a lesson, or nil if the
// lesson has never been packaged.
func (cdb *CacheDB) GetPackage(ctx context.Context, sourceID string) (*PackageRecord, error) {
	query := `
	SELECT source_id, zip_url, zip_sha256, zip_path, packaged_at
	FROM packages
	WHERE source_id = ?
	`

	var rec PackageRecord
	var packagedAt string

	err := cdb.db.QueryRowContext(ctx, query, sourceID).Scan(
		&rec.SourceID,
		&rec.ZipURL,
		&rec.ZipSHA256,
		&rec.ZipPath,
		&packagedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package record: %w", err)
	}

	rec.PackagedAt = parseTimestamp(packagedAt)
	return &rec, nil
}

// PutPackage stores a packaged-lesson record, replacing any previous row
// for the lesson.
func (cdb *CacheDB) PutPackage(ctx context.Context, rec *PackageRecord) error {
	query := `
	INSERT INTO packages (source_id, zip_url, zip_sha256, zip_path)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(source_id) DO UPDATE SET
		zip_url = excluded.zip_url,
		zip_sha256 = excluded.zip_sha256,
		zip_path = excluded.zip_path,
		packaged_at = CURRENT_TIMESTAMP
	`

	_, err := cdb.db.ExecContext(ctx, query,
		rec.SourceID,
		rec.ZipURL,
		rec.ZipSHA256,
		rec.ZipPath,
	)
	if err != nil {
		return fmt.Errorf("failed to store package record: %w", err)
	}

	return nil
}

// CountResponses returns the number of cached responses.
func (cdb *CacheDB) CountResponses(ctx context.Context) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM responses").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}

// timestampFormats lists the formats SQLite may return depending on
// version and configuration.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
