// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aanand-mishra/idcard-portal/internal/storage"
	"github.com/aanand-mishra/idcard-portal/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path and creates the submissions table
// if it does not already exist.
func New(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Schema:
	//   result: the service's JSON answer, NULL for failed submissions
	//   error : the raw failure, empty for successful ones
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT    NOT NULL,
			university  TEXT    NOT NULL,
			image_name  TEXT    NOT NULL,
			model       INTEGER NOT NULL DEFAULT 0,
			endpoint    TEXT    NOT NULL,
			outcome     TEXT    NOT NULL,
			result      TEXT,
			error       TEXT    NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) Close() error {
	return s.Db.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateSubmission inserts one history row. The result is stored as JSON so
// textual scores ("Not Recognised") survive a round trip unchanged.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CreateSubmission(ctx context.Context, sub types.Submission) (int64, error) {
	var result sql.NullString
	if sub.Result != nil {
		raw, err := json.Marshal(sub.Result)
		if err != nil {
			return 0, fmt.Errorf("CreateSubmission: marshal result: %w", err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}

	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	stmt, err := s.Db.PrepareContext(ctx, `
		INSERT INTO submissions (name, university, image_name, model, endpoint, outcome, result, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("CreateSubmission: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx,
		sub.Name, sub.University, sub.ImageName, int(sub.Model),
		sub.Endpoint, sub.Outcome, result, sub.Error, createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("CreateSubmission: exec: %w", err)
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateSubmission: last insert id: %w", err)
	}
	return lastID, nil
}

const selectColumns = `SELECT id, name, university, image_name, model, endpoint, outcome, result, error, created_at FROM submissions`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (types.Submission, error) {
	var (
		sub       types.Submission
		model     int
		result    sql.NullString
		createdAt int64
	)
	if err := row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.University,
		&sub.ImageName,
		&model,
		&sub.Endpoint,
		&sub.Outcome,
		&result,
		&sub.Error,
		&createdAt,
	); err != nil {
		return types.Submission{}, err
	}

	sub.Model = types.Model(model)
	sub.CreatedAt = time.UnixMilli(createdAt).UTC()
	if result.Valid {
		var r types.SubmissionResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return types.Submission{}, fmt.Errorf("decode result: %w", err)
		}
		sub.Result = &r
	}
	return sub, nil
}

func (s *SQLite) GetSubmissionByID(ctx context.Context, id int64) (types.Submission, error) {
	row := s.Db.QueryRowContext(ctx, selectColumns+` WHERE id = ? LIMIT 1`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Submission{}, fmt.Errorf("GetSubmissionByID: %w: %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return types.Submission{}, fmt.Errorf("GetSubmissionByID: scan: %w", err)
	}
	return sub, nil
}

// GetSubmissions returns at most limit rows, newest first. A limit <= 0
// means no limit.
func (s *SQLite) GetSubmissions(ctx context.Context, limit int) ([]types.Submission, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 is unbounded
	}

	rows, err := s.Db.QueryContext(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("GetSubmissions: query: %w", err)
	}
	defer rows.Close()

	subs := make([]types.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("GetSubmissions: scan row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetSubmissions: rows iteration: %w", err)
	}
	return subs, nil
}

func (s *SQLite) DeleteSubmissionByID(ctx context.Context, id int64) error {
	res, err := s.Db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteSubmissionByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteSubmissionByID: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteSubmissionByID: %w: %d", storage.ErrNotFound, id)
	}
	return nil
}
