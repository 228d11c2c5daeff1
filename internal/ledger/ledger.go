// Package ledger records which capture files were uploaded, keyed by the
// BLAKE3 hash of their contents, so a rerun or a bulk upload of the same
// night does not send duplicates.
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log"

	_ "github.com/lib/pq" // Postgres driver
	"github.com/zeebo/blake3"
)

// OutcomeUploaded is the outcome that marks a file as done
const OutcomeUploaded = "uploaded"

// FileSource opens capture files for hashing
type FileSource interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// Ledger tracks upload outcomes per capture file
type Ledger struct {
	db    *sql.DB
	files FileSource
}

// Open connects to Postgres at dsn and prepares the ledger table
func Open(ctx context.Context, dsn string, files FileSource) (*Ledger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach ledger database: %w", err)
	}
	return New(ctx, db, files)
}

// New creates a ledger on an open database
func New(ctx context.Context, db *sql.DB, files FileSource) (*Ledger, error) {
	l := &Ledger{db: db, files: files}

	if err := l.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger table: %w", err)
	}

	return l, nil
}

// ensureTable creates the capture_uploads table if it doesn't exist
func (l *Ledger) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS capture_uploads (
			content_hash TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			outcome TEXT NOT NULL,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1
		)
	`

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create capture_uploads table: %w", err)
	}

	log.Printf("✓ capture_uploads table ready")
	return nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// HashFile returns the hex BLAKE3 digest of the file at key
func (l *Ledger) HashFile(ctx context.Context, key string) (string, error) {
	r, err := l.files.GetReader(ctx, key)
	if err != nil {
		return "", err
	}
	defer r.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", key, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Lookup hashes filename and reports whether that content was uploaded before
func (l *Ledger) Lookup(ctx context.Context, filename string) (string, bool, error) {
	hash, err := l.HashFile(ctx, filename)
	if err != nil {
		return "", false, err
	}

	var outcome string
	err = l.db.QueryRowContext(ctx,
		`SELECT outcome FROM capture_uploads WHERE content_hash = $1`, hash,
	).Scan(&outcome)
	if err == sql.ErrNoRows {
		return hash, false, nil
	}
	if err != nil {
		return hash, false, fmt.Errorf("failed to look up %s: %w", filename, err)
	}

	return hash, outcome == OutcomeUploaded, nil
}

// Record stores the outcome for a content hash and returns how many times it
// has been seen
func (l *Ledger) Record(ctx context.Context, hash, filename, outcome string) (int, error) {
	// Upsert: an uploaded outcome is never overwritten by a later failure
	query := `
		INSERT INTO capture_uploads (content_hash, filename, outcome, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (content_hash) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = capture_uploads.seen_count + 1,
		    filename = EXCLUDED.filename,
		    outcome = CASE WHEN capture_uploads.outcome = 'uploaded' THEN capture_uploads.outcome ELSE EXCLUDED.outcome END
		RETURNING seen_count
	`

	var seenCount int
	err := l.db.QueryRowContext(ctx, query, hash, filename, outcome).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record upload: %w", err)
	}

	return seenCount, nil
}
