package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/use-agent/bughunter/models"
)

// DBFile is the database file name inside the store directory.
const DBFile = "bughunter.db"

// SQLite is a Store backed by a single SQLite file. The full record is kept
// as JSON; the columns beside it serve listing, stats and sharing.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates the database in dir.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbPath := filepath.Join(dir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.dbPath }

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		status TEXT NOT NULL,
		total_bugs INTEGER NOT NULL DEFAULT 0,
		critical INTEGER NOT NULL DEFAULT 0,
		high INTEGER NOT NULL DEFAULT 0,
		medium INTEGER NOT NULL DEFAULT 0,
		low INTEGER NOT NULL DEFAULT 0,
		is_public INTEGER NOT NULL DEFAULT 0,
		share_token TEXT,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_scans_share ON scans(share_token);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, rec *models.ScanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize scan: %w", err)
	}
	c := rec.Counts()

	query := `
	INSERT INTO scans (id, url, created_at, status, total_bugs, critical, high, medium, low, is_public, share_token, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		url = excluded.url,
		created_at = excluded.created_at,
		status = excluded.status,
		total_bugs = excluded.total_bugs,
		critical = excluded.critical,
		high = excluded.high,
		medium = excluded.medium,
		low = excluded.low,
		is_public = excluded.is_public,
		share_token = excluded.share_token,
		record_json = excluded.record_json
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.URL, rec.CreatedAt.UnixNano(), rec.Status,
		c.Total, c.Critical, c.High, c.Medium, c.Low,
		rec.IsPublic, nullString(rec.ShareToken), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, id string) (*models.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_json, is_public, share_token FROM scans WHERE id = ?`, id)
	return scanRecord(row)
}

// GetShared implements Store.
func (s *SQLite) GetShared(ctx context.Context, token string) (*models.ScanRecord, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT record_json, is_public, share_token FROM scans WHERE share_token = ? AND is_public = 1`, token)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*models.ScanRecord, error) {
	var (
		data     string
		isPublic bool
		token    sql.NullString
	)
	if err := row.Scan(&data, &isPublic, &token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}

	var rec models.ScanRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode scan: %w", err)
	}
	rec.IsPublic = isPublic
	rec.ShareToken = token.String
	return &rec, nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, limit, offset int) ([]models.ScanListItem, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scans: %w", err)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset = max(offset, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, created_at, status, total_bugs, critical, high, medium, low, is_public
		FROM scans ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	items := []models.ScanListItem{}
	for rows.Next() {
		var (
			it      models.ScanListItem
			created int64
		)
		if err := rows.Scan(&it.ID, &it.URL, &created, &it.Status,
			&it.Summary.Total, &it.Summary.Critical, &it.Summary.High,
			&it.Summary.Medium, &it.Summary.Low, &it.IsPublic); err != nil {
			return nil, 0, fmt.Errorf("failed to read scan row: %w", err)
		}
		it.CreatedAt = time.Unix(0, created).UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}
	return items, total, nil
}

// Stats implements Store.
func (s *SQLite) Stats(ctx context.Context) (*models.Stats, error) {
	var (
		st   models.Stats
		last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_bugs), 0),
			COALESCE(SUM(critical), 0), COALESCE(SUM(high), 0),
			COALESCE(SUM(medium), 0), COALESCE(SUM(low), 0),
			MAX(created_at)
		FROM scans`).Scan(
		&st.TotalScans, &st.TotalBugs,
		&st.SeverityBreakdown.Critical, &st.SeverityBreakdown.High,
		&st.SeverityBreakdown.Medium, &st.SeverityBreakdown.Low,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.SeverityBreakdown.Total = st.TotalBugs
	if st.TotalScans > 0 {
		st.AvgBugsPerScan = roundAvg(st.TotalBugs, st.TotalScans)
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		st.LastScan = &t
	}
	return &st, nil
}

// ToggleShare implements Store.
func (s *SQLite) ToggleShare(ctx context.Context, id string) (*models.ScanRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var token sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT share_token FROM scans WHERE id = ?`, id).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	if !token.Valid || token.String == "" {
		token = sql.NullString{String: newShareToken(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scans SET is_public = NOT is_public, share_token = ? WHERE id = ?`, token.String, id); err != nil {
		return nil, fmt.Errorf("failed to toggle share: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit share: %w", err)
	}
	return s.Get(ctx, id)
}

// Close implements Store.
func (s *SQLite) Close() error { return s.db.Close() }

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
