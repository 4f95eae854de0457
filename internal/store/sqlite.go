package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/docgen/internal/model"

	_ "modernc.org/sqlite"
)

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS document_requests (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    template      TEXT NOT NULL,
    file_name     TEXT NOT NULL,
    service       TEXT NOT NULL,
    data          BLOB,
    artifact_ref  TEXT NOT NULL DEFAULT '',
    error_code    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER,
    created_at    DATETIME NOT NULL,
    started_at    DATETIME,
    finished_at   DATETIME
)`

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT PRIMARY KEY,
    request_id   TEXT NOT NULL REFERENCES document_requests(id),
    file_name    TEXT NOT NULL,
    content_type TEXT NOT NULL,
    content      BLOB NOT NULL,
    created_at   DATETIME NOT NULL
)`

const requestColumns = `id, status, template, file_name, service, data,
	artifact_ref, error_code, error_message, duration_ms,
	created_at, started_at, finished_at`

const timeoutMessage = "timed out waiting for document result"

// ErrNotFound is returned when a request or document is not found.
var ErrNotFound = errors.New("document request not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createRequestsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create document_requests table: %w", err)
	}

	if _, err := db.Exec(createDocumentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (*model.DocumentRequest, error) {
	r := &model.DocumentRequest{}
	err := sc.Scan(
		&r.ID, &r.Status, &r.Template, &r.FileName, &r.Service, &r.Data,
		&r.ArtifactRef, &r.ErrorCode, &r.ErrorMessage, &r.DurationMS,
		&r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

// CreateRequest inserts a new document request record.
func (s *SQLiteStore) CreateRequest(ctx context.Context, r *model.DocumentRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Template, r.FileName, r.Service, r.Data,
		r.ArtifactRef, r.ErrorCode, r.ErrorMessage, r.DurationMS,
		r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document request: %w", err)
	}
	return nil
}

// GetRequest retrieves a document request by ID.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.DocumentRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM document_requests WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document request: %w", err)
	}
	return r, nil
}

// FindTerminalRequest returns the request if it is completed or failed. A
// request in any other state, or an unknown ID, yields nil and no error.
func (s *SQLiteStore) FindTerminalRequest(ctx context.Context, id string) (*model.DocumentRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM document_requests
		WHERE id = ? AND status IN (?, ?)`,
		id, model.StatusCompleted, model.StatusFailed,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find terminal document request: %w", err)
	}
	return r, nil
}

// ListRequests returns a paginated list of requests ordered by created_at DESC,
// along with the total count of all requests.
func (s *SQLiteStore) ListRequests(ctx context.Context, limit, offset int) ([]*model.DocumentRequest, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_requests").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count document requests: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM document_requests
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list document requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.DocumentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate document requests: %w", err)
	}

	return requests, total, nil
}

// UpdateRequestStatus moves a request to status. Moving to running sets
// started_at; moving to a terminal status sets finished_at and duration_ms.
func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	return s.transition(ctx, id, status, func(tx *sql.Tx, now time.Time, startedAt *time.Time) error {
		var err error
		switch {
		case status == model.StatusRunning:
			_, err = tx.ExecContext(ctx,
				"UPDATE document_requests SET status = ?, started_at = ? WHERE id = ?",
				status, now, id,
			)
		case model.IsTerminal(status):
			_, err = tx.ExecContext(ctx,
				"UPDATE document_requests SET status = ?, finished_at = ?, duration_ms = ? WHERE id = ?",
				status, now, durationSince(startedAt, now), id,
			)
		default:
			_, err = tx.ExecContext(ctx,
				"UPDATE document_requests SET status = ? WHERE id = ?",
				status, id,
			)
		}
		if err != nil {
			return fmt.Errorf("update document request status: %w", err)
		}
		return nil
	})
}

// CompleteRequest stores doc and marks the request completed with doc as its
// artifact, in one transaction.
func (s *SQLiteStore) CompleteRequest(ctx context.Context, id string, doc *model.Document) error {
	return s.transition(ctx, id, model.StatusCompleted, func(tx *sql.Tx, now time.Time, startedAt *time.Time) error {
		if doc.ID == "" {
			doc.ID = model.NewID()
		}
		doc.RequestID = id
		doc.Size = len(doc.Content)
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if doc.Content == nil {
			doc.Content = []byte{}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, request_id, file_name, content_type, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.RequestID, doc.FileName, doc.ContentType, doc.Content, doc.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE document_requests
			SET status = ?, artifact_ref = ?, finished_at = ?, duration_ms = ?
			WHERE id = ?`,
			model.StatusCompleted, doc.ID, now, durationSince(startedAt, now), id,
		); err != nil {
			return fmt.Errorf("complete document request: %w", err)
		}
		return nil
	})
}

// FailRequest marks the request failed with the given error code and message.
func (s *SQLiteStore) FailRequest(ctx context.Context, id, code, message string) error {
	return s.transition(ctx, id, model.StatusFailed, func(tx *sql.Tx, now time.Time, startedAt *time.Time) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE document_requests
			SET status = ?, error_code = ?, error_message = ?, finished_at = ?, duration_ms = ?
			WHERE id = ?`,
			model.StatusFailed, code, message, now, durationSince(startedAt, now), id,
		); err != nil {
			return fmt.Errorf("fail document request: %w", err)
		}
		return nil
	})
}

// MarkRequestFailed fails a request after its waiter gave up.
func (s *SQLiteStore) MarkRequestFailed(ctx context.Context, id string) error {
	return s.FailRequest(ctx, id, model.ErrorCodeTimeout, timeoutMessage)
}

// transition validates the move from the request's current status to status
// and runs apply inside the same transaction.
func (s *SQLiteStore) transition(ctx context.Context, id, status string, apply func(tx *sql.Tx, now time.Time, startedAt *time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	var startedAt *time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT status, started_at FROM document_requests WHERE id = ?", id,
	).Scan(&current, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document request status: %w", err)
	}

	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if err := apply(tx, time.Now().UTC(), startedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// durationSince returns the milliseconds between startedAt and now, or nil
// when the request never started.
func durationSince(startedAt *time.Time, now time.Time) *int {
	if startedAt == nil {
		return nil
	}
	ms := int(now.Sub(*startedAt).Milliseconds())
	return &ms
}

// GetDocument retrieves a generated document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d := &model.Document{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, file_name, content_type, content, created_at
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.RequestID, &d.FileName, &d.ContentType, &d.Content, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	d.Size = len(d.Content)
	return d, nil
}

// GetRequestStats returns counts by status and service and the average
// duration of finished requests.
func (s *SQLiteStore) GetRequestStats(ctx context.Context) (*RequestStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &RequestStats{
		CountByStatus:  make(map[string]int),
		CountByService: make(map[string]int),
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM document_requests",
	).Scan(&stats.Total, &stats.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("aggregate document requests: %w", err)
	}

	if err := countBy(ctx, tx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := countBy(ctx, tx, "service", stats.CountByService); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills into with row counts grouped by column. column must be a
// trusted identifier.
func countBy(ctx context.Context, tx *sql.Tx, column string, into map[string]int) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM document_requests GROUP BY "+column,
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan count by %s: %w", column, err)
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate count by %s: %w", column, err)
	}
	return nil
}
