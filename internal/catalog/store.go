package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"capflow/internal/config"
	"capflow/internal/correlate"
)

// Store archives finished runs in SQLite. It is written to after a run and
// read by the catalog commands; engines never load state from it.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the archive at cfg.Paths.CatalogPath.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.CatalogPath
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the archive file location.
func (s *Store) Path() string {
	return s.path
}

// RecordReport archives a run with its deduplicated downloads and their keys
// in one transaction.
func (s *Store) RecordReport(ctx context.Context, report correlate.Report, source string, startedAt, finishedAt time.Time) (Run, error) {
	run := NewRun(report, source, startedAt, finishedAt)
	if strings.TrimSpace(run.ID) == "" {
		return Run{}, errors.New("record run: run id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, source, key_policy, started_at, finished_at,
            transactions, completed, duplicates, stalled, unclaimed_keys
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.Source),
		run.KeyPolicy,
		run.StartedAt.Format(time.RFC3339Nano),
		run.FinishedAt.Format(time.RFC3339Nano),
		run.Transactions,
		run.Completed,
		run.Duplicates,
		run.Stalled,
		run.UnclaimedKeys,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	for _, session := range report.Completed {
		download := NewDownload(session)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO downloads (
                run_id, session_id, title, playlist_url, variant_url, created_at, completed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			download.SessionID,
			nullableString(download.Title),
			download.PlaylistURL,
			download.VariantURL,
			nullableTime(download.CreatedAt),
			nullableTime(download.CompletedAt),
		)
		if err != nil {
			return Run{}, fmt.Errorf("insert download for session %d: %w", download.SessionID, err)
		}
		downloadID, err := res.LastInsertId()
		if err != nil {
			return Run{}, fmt.Errorf("last insert id: %w", err)
		}
		for _, key := range download.Keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO keys (download_id, key_uri, ckc, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
				downloadID,
				key.URI,
				key.CKC,
				nullableTime(key.IssuedAt),
				nullableTime(key.ExpiresAt),
			)
			if err != nil {
				return Run{}, fmt.Errorf("insert key %s: %w", key.URI, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit record tx: %w", err)
	}
	return run, nil
}

const runColumns = "id, source, key_policy, started_at, finished_at, transactions, completed, duplicates, stalled, unclaimed_keys"

// ListRuns returns archived runs, most recent first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches one run. A missing run returns (nil, nil).
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListDownloads returns archived downloads with their keys. An empty runID
// lists every run.
func (s *Store) ListDownloads(ctx context.Context, runID string) ([]Download, error) {
	query := `SELECT id, run_id, session_id, title, playlist_url, variant_url, created_at, completed_at FROM downloads`
	args := []any{}
	if runID = strings.TrimSpace(runID); runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	var downloads []Download
	for rows.Next() {
		download, err := scanDownload(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, download)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	rows.Close()

	for i := range downloads {
		keys, err := s.listKeys(ctx, downloads[i].ID)
		if err != nil {
			return nil, err
		}
		downloads[i].Keys = keys
	}
	return downloads, nil
}

func (s *Store) listKeys(ctx context.Context, downloadID int64) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key_uri, ckc, issued_at, expires_at FROM keys WHERE download_id = ? ORDER BY key_uri`,
		downloadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var (
			key       Key
			issuedRaw sql.NullString
			expiryRaw sql.NullString
		)
		if err := rows.Scan(&key.URI, &key.CKC, &issuedRaw, &expiryRaw); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		key.IssuedAt = parseTime(issuedRaw)
		key.ExpiresAt = parseTime(expiryRaw)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}
