package library

import (
	"context"
	"crypto/md5" //nolint:gosec // change detection, not integrity protection
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

const trackedColumns = `path, hash, size, mtime, title, artist, album, match_source, confidence, run_id, processed_at`

// TrackedFile records a processed audio file and the metadata applied to it.
type TrackedFile struct {
	Path        string
	Hash        string
	Size        int64
	MTime       time.Time
	Title       string
	Artist      string
	Album       string
	MatchSource string
	Confidence  float64
	RunID       string
	ProcessedAt time.Time
}

// Tracker keeps per-file processing state so repeated runs skip files that
// have not changed since they were last tagged. Each Tracker carries a run ID
// shared by all files it records.
type Tracker struct {
	db    *sql.DB
	runID string
}

// NewTracker creates a tracker with a fresh run ID.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db, runID: uuid.New().String()}
}

// RunID returns the identifier stamped on files recorded by this tracker.
func (t *Tracker) RunID() string { return t.runID }

// IsProcessed reports whether the file at path was already processed with the
// same content hash. A changed hash means the file was replaced and needs
// processing again.
func (t *Tracker) IsProcessed(ctx context.Context, path, hash string) (bool, error) {
	var stored string
	err := t.db.QueryRowContext(ctx,
		`SELECT hash FROM tracked_files WHERE path = ?`, path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying tracked file: %w", err)
	}
	return stored == hash, nil
}

// Record upserts the file's processing record under the tracker's run ID.
func (t *Tracker) Record(ctx context.Context, f *TrackedFile) error {
	if f.Path == "" {
		return fmt.Errorf("tracked file path is required")
	}
	f.RunID = t.runID
	f.ProcessedAt = time.Now().UTC()

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO tracked_files (`+trackedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			size = excluded.size,
			mtime = excluded.mtime,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			match_source = excluded.match_source,
			confidence = excluded.confidence,
			run_id = excluded.run_id,
			processed_at = excluded.processed_at
	`,
		f.Path, f.Hash, f.Size, f.MTime.UTC().Format(time.RFC3339),
		f.Title, f.Artist, f.Album, f.MatchSource, f.Confidence,
		f.RunID, f.ProcessedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording tracked file: %w", err)
	}
	return nil
}

// Get retrieves the processing record for a path.
// Returns nil, nil when the path was never processed.
func (t *Tracker) Get(ctx context.Context, path string) (*TrackedFile, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+trackedColumns+` FROM tracked_files WHERE path = ?`, path)

	var f TrackedFile
	var mtime, processedAt string
	err := row.Scan(&f.Path, &f.Hash, &f.Size, &mtime,
		&f.Title, &f.Artist, &f.Album, &f.MatchSource, &f.Confidence,
		&f.RunID, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tracked file: %w", err)
	}

	if f.MTime, err = time.Parse(time.RFC3339, mtime); err != nil {
		return nil, fmt.Errorf("parsing mtime: %w", err)
	}
	if f.ProcessedAt, err = time.Parse(time.RFC3339, processedAt); err != nil {
		return nil, fmt.Errorf("parsing processed_at: %w", err)
	}
	return &f, nil
}

// PruneMissing deletes records whose files no longer exist on disk and
// returns how many were removed.
func (t *Tracker) PruneMissing(ctx context.Context) (int, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT path FROM tracked_files`)
	if err != nil {
		return 0, fmt.Errorf("listing tracked files: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var gone []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return 0, fmt.Errorf("scanning tracked path: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			gone = append(gone, path)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating tracked files: %w", err)
	}

	for _, path := range gone {
		if _, err := t.db.ExecContext(ctx,
			`DELETE FROM tracked_files WHERE path = ?`, path); err != nil {
			return 0, fmt.Errorf("pruning %s: %w", path, err)
		}
	}
	return len(gone), nil
}

// FileHash computes the MD5 of a file's contents, streaming to bound memory.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close() //nolint:errcheck

	h := md5.New() //nolint:gosec // see import comment
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
