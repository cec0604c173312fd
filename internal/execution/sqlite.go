package execution

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteRecorder persists derived records so they survive the process.
// Records of one test case share a test case id.
type SQLiteRecorder struct {
	db *sql.DB

	mu         sync.RWMutex
	testCaseID string
	traceID    string
}

var _ recorder.TestExecutionRecorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens or creates the database at path. ":memory:" gives
// a private in-memory database.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRecorder{db: db, testCaseID: newTestCaseID(), traceID: NewTraceID()}, nil
}

func (r *SQLiteRecorder) ids() (string, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.testCaseID, r.traceID
}

// AppendStepRecord inserts rec into steps.
func (r *SQLiteRecorder) AppendStepRecord(ctx context.Context, rec recorder.StepRecord) error {
	testCase, trace := r.ids()
	if rec.TraceID != "" {
		trace = rec.TraceID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO steps (test_case_id, trace_id, sequence_ref, url, command, locator, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		testCase, trace, rec.SequenceRef, rec.URL, rec.Command, rec.Locator, timestamp(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("insert step #%d: %w", rec.SequenceRef, err)
	}
	return nil
}

// AppendScreenshotRecord inserts rec into screenshots.
func (r *SQLiteRecorder) AppendScreenshotRecord(ctx context.Context, rec recorder.ScreenshotRecord) error {
	testCase, trace := r.ids()
	if rec.TraceID != "" {
		trace = rec.TraceID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO screenshots (test_case_id, trace_id, sequence_ref, path, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		testCase, trace, rec.SequenceRef, rec.Path, timestamp(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("insert screenshot #%d: %w", rec.SequenceRef, err)
	}
	return nil
}

// TraceID returns the id stamped on new records.
func (r *SQLiteRecorder) TraceID() string {
	_, trace := r.ids()
	return trace
}

// SetTraceID sets the id stamped on new records.
func (r *SQLiteRecorder) SetTraceID(id string) {
	r.mu.Lock()
	r.traceID = id
	r.mu.Unlock()
}

// TestCaseID identifies the current test case.
func (r *SQLiteRecorder) TestCaseID() string {
	testCase, _ := r.ids()
	return testCase
}

// Reset starts a new test case. Persisted rows are kept.
func (r *SQLiteRecorder) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testCaseID = newTestCaseID()
	r.traceID = NewTraceID()
	return nil
}

// Steps returns the steps recorded for testCaseID in sequence order.
func (r *SQLiteRecorder) Steps(ctx context.Context, testCaseID string) ([]recorder.StepRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sequence_ref, url, command, locator, trace_id, recorded_at
		 FROM steps WHERE test_case_id = ? ORDER BY id`, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []recorder.StepRecord
	for rows.Next() {
		var rec recorder.StepRecord
		var at string
		if err := rows.Scan(&rec.SequenceRef, &rec.URL, &rec.Command, &rec.Locator, &rec.TraceID, &at); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Timestamp = parseTimestamp(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Screenshots returns the screenshots recorded for testCaseID in order.
func (r *SQLiteRecorder) Screenshots(ctx context.Context, testCaseID string) ([]recorder.ScreenshotRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sequence_ref, path, trace_id, recorded_at
		 FROM screenshots WHERE test_case_id = ? ORDER BY id`, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("query screenshots: %w", err)
	}
	defer rows.Close()

	var out []recorder.ScreenshotRecord
	for rows.Next() {
		var rec recorder.ScreenshotRecord
		var at string
		if err := rows.Scan(&rec.SequenceRef, &rec.Path, &rec.TraceID, &at); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		rec.Timestamp = parseTimestamp(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
