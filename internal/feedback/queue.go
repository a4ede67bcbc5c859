// Package feedback implements the durable feedback path: an HTTP-shaped sync
// boundary that only writes to a queue, and a background processor that
// turns queued Accept/Reject judgments into taste engine entries. Embedding
// work never happens on the ingress path.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/msg43/winnow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_feedback (
    queue_id      TEXT PRIMARY KEY,
    feedback_json TEXT NOT NULL,
    received_at   TEXT NOT NULL,
    claimed_at    TEXT,
    processed_at  TEXT,
    attempts      INTEGER NOT NULL DEFAULT 0,
    error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_unprocessed
    ON pending_feedback(received_at) WHERE processed_at IS NULL;
`

// pragmas applied on open; WAL lets the ingress writer and the processor
// share the file without blocking readers.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

// RetryPolicy names the behavior for failed queue rows. MaxAttempts 1 means
// a failed row is terminal on first failure — the deliberate default, since
// silent retry loops turn malformed feedback into poison pills. Raising it
// re-eligibilizes failed rows up to the limit.
type RetryPolicy struct {
	MaxAttempts int
}

// Queue is the durable pending_feedback store.
type Queue struct {
	db     *sql.DB
	policy RetryPolicy
}

// Row is one claimed queue entry.
type Row struct {
	QueueID      string
	FeedbackJSON string
	ReceivedAt   time.Time
	Attempts     int
}

// OpenQueue opens (or creates) the queue database at path. ":memory:" is
// honored for tests.
func OpenQueue(path string, policy RetryPolicy) (*Queue, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if path != ":memory:" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, fmt.Errorf("expanding queue path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
			return nil, fmt.Errorf("creating queue directory: %w", err)
		}
		path = expanded
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying queue schema: %w", err)
	}
	q := &Queue{db: db, policy: policy}
	if err := q.recoverStaleClaims(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

// recoverStaleClaims releases rows a previous worker claimed but never
// terminally marked — a crash or interrupted shutdown leaves them in-flight
// forever otherwise. The aborted claim does not count as an attempt.
func (q *Queue) recoverStaleClaims() error {
	_, err := q.db.Exec(`
		UPDATE pending_feedback
		SET claimed_at = NULL, attempts = MAX(attempts - 1, 0)
		WHERE claimed_at IS NOT NULL AND processed_at IS NULL`,
	)
	if err != nil {
		return fmt.Errorf("recovering stale claims: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue durably stores a batch of raw feedback payloads in one
// transaction. Fail closed: any error means nothing was queued and the
// caller must retry — feedback is never silently lost at ingress.
func (q *Queue) Enqueue(ctx context.Context, payloads []string) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]string, len(payloads))
	for i, payload := range payloads {
		ids[i] = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pending_feedback (queue_id, feedback_json, received_at) VALUES (?, ?, ?)`,
			ids[i], payload, now,
		); err != nil {
			return nil, fmt.Errorf("enqueue feedback: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return ids, nil
}

// Claim atomically marks up to n eligible rows in-flight and returns them.
// The single conditional UPDATE both selects and claims, so two concurrent
// workers can never ingest the same row twice.
func (q *Queue) Claim(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return nil, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows, err := q.db.QueryContext(ctx, `
		UPDATE pending_feedback
		SET claimed_at = ?, attempts = attempts + 1
		WHERE queue_id IN (
			SELECT queue_id FROM pending_feedback
			WHERE processed_at IS NULL AND claimed_at IS NULL AND attempts < ?
			ORDER BY received_at
			LIMIT ?
		)
		RETURNING queue_id, feedback_json, received_at, attempts`,
		now, q.policy.MaxAttempts, n,
	)
	if err != nil {
		return nil, fmt.Errorf("claim feedback rows: %w", err)
	}
	defer rows.Close()

	var claimed []Row
	for rows.Next() {
		var row Row
		var receivedAt string
		if err := rows.Scan(&row.QueueID, &row.FeedbackJSON, &receivedAt, &row.Attempts); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		row.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)
		claimed = append(claimed, row)
	}
	return claimed, rows.Err()
}

// Release returns claimed-but-unprocessed rows to the queue without
// consuming an attempt, making them eligible for a later claim. Used when a
// worker gives a batch back mid-flight instead of failing it.
func (q *Queue) Release(ctx context.Context, queueIDs []string) error {
	if len(queueIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?, ", len(queueIDs)-1) + "?"
	args := make([]any, len(queueIDs))
	for i, id := range queueIDs {
		args[i] = id
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE pending_feedback
		SET claimed_at = NULL, attempts = MAX(attempts - 1, 0)
		WHERE queue_id IN (`+placeholders+`) AND processed_at IS NULL`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("release claimed rows: %w", err)
	}
	return nil
}

// MarkProcessed terminally marks a row as successfully ingested.
func (q *Queue) MarkProcessed(ctx context.Context, queueID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := q.db.ExecContext(ctx,
		`UPDATE pending_feedback SET processed_at = ?, error_message = NULL WHERE queue_id = ?`,
		now, queueID,
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkFailed records a processing failure under the retry policy. A row
// still under the attempt limit is released for a later claim; one at the
// limit is terminally marked with its error.
func (q *Queue) MarkFailed(ctx context.Context, queueID string, attempts int, cause error) error {
	msg := cause.Error()
	if attempts < q.policy.MaxAttempts {
		_, err := q.db.ExecContext(ctx,
			`UPDATE pending_feedback SET claimed_at = NULL, error_message = ? WHERE queue_id = ?`,
			msg, queueID,
		)
		if err != nil {
			return fmt.Errorf("release failed row: %w", err)
		}
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := q.db.ExecContext(ctx,
		`UPDATE pending_feedback SET processed_at = ?, error_message = ? WHERE queue_id = ?`,
		now, msg, queueID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// PendingCount returns the number of rows awaiting processing.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_feedback WHERE processed_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// Get returns one row by ID, mainly for inspection and tests.
func (q *Queue) Get(ctx context.Context, queueID string) (*model.PendingFeedback, error) {
	var pf model.PendingFeedback
	var receivedAt string
	var processedAt, errorMessage sql.NullString
	err := q.db.QueryRowContext(ctx,
		`SELECT queue_id, feedback_json, received_at, processed_at, attempts, error_message
		 FROM pending_feedback WHERE queue_id = ?`, queueID,
	).Scan(&pf.QueueID, &pf.FeedbackJSON, &receivedAt, &processedAt, &pf.Attempts, &errorMessage)
	if err != nil {
		return nil, fmt.Errorf("get queue row: %w", err)
	}
	pf.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)
	if processedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, processedAt.String)
		pf.ProcessedAt = &t
	}
	pf.ErrorMessage = errorMessage.String
	return &pf, nil
}
