// Package journal keeps a PostgreSQL audit trail of issuance attempts.
//
// Every call to the issuance service, successful or not, becomes one row in
// issuance_attempts. The journal is write-mostly and best effort: a failed
// insert is logged and never changes the outcome of the submission.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultAttemptLimit caps Attempts when no limit is given.
const DefaultAttemptLimit = 100

// writeTimeout bounds a single insert so a slow database cannot stall a batch.
const writeTimeout = 5 * time.Second

// DBTX is the subset of pgxpool.Pool the journal uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS issuance_attempts (
    id              BIGSERIAL PRIMARY KEY,
    session_id      TEXT        NOT NULL,
    row_id          TEXT        NOT NULL,
    source_row      INTEGER     NOT NULL,
    point_of_sale   INTEGER     NOT NULL,
    idempotency_key TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    message         TEXT        NOT NULL DEFAULT '',
    auth_code       TEXT,
    error_code      TEXT,
    duration_ms     BIGINT      NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    client_ip       TEXT,
    user_agent      TEXT
);
ALTER TABLE issuance_attempts ADD COLUMN IF NOT EXISTS client_ip TEXT;
ALTER TABLE issuance_attempts ADD COLUMN IF NOT EXISTS user_agent TEXT;
CREATE INDEX IF NOT EXISTS issuance_attempts_session_idx
    ON issuance_attempts (session_id, created_at);
`

const insertAttemptSQL = `
INSERT INTO issuance_attempts (
    session_id, row_id, source_row, point_of_sale, idempotency_key,
    status, message, auth_code, error_code, duration_ms, created_at,
    client_ip, user_agent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const listAttemptsSQL = `
SELECT session_id, row_id, source_row, point_of_sale, idempotency_key,
       status, message, auth_code, error_code, duration_ms, created_at,
       client_ip, user_agent
FROM issuance_attempts
WHERE session_id = $1
ORDER BY created_at, id
LIMIT $2`

// Journal implements core.Recorder on top of PostgreSQL.
type Journal struct {
	db DBTX
}

// New returns a Journal writing through db.
func New(db DBTX) *Journal {
	return &Journal{db: db}
}

// EnsureSchema creates the attempts table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Insert writes one attempt.
func (j *Journal) Insert(ctx context.Context, a core.Attempt) error {
	_, err := j.db.Exec(ctx, insertAttemptSQL,
		a.SessionID,
		a.RowID,
		int32(a.SourceRow),
		int32(a.PointOfSale),
		a.IdempotencyKey,
		string(a.Status),
		a.Message,
		toPgText(a.AuthCode),
		toPgText(a.ErrorCode),
		a.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: a.At, Valid: !a.At.IsZero()},
		toPgText(a.ClientIP),
		toPgText(a.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// RecordAttempt inserts a, logging instead of failing. The caller's
// cancellation does not abort the write.
func (j *Journal) RecordAttempt(ctx context.Context, a core.Attempt) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := j.Insert(writeCtx, a); err != nil {
		logging.WithFields(ctx,
			"session_id", a.SessionID,
			"row_id", a.RowID,
			"idempotency_key", a.IdempotencyKey,
		).Error("journal write failed", "error", err)
	}
}

// RecordParse is a no-op; only submissions are journaled.
func (j *Journal) RecordParse(context.Context, int, int, error) {}

// BatchStarted is a no-op.
func (j *Journal) BatchStarted() {}

// BatchFinished is a no-op.
func (j *Journal) BatchFinished() {}

// Attempts returns the journaled attempts of a session, oldest first.
func (j *Journal) Attempts(ctx context.Context, sessionID string, limit int) ([]core.Attempt, error) {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}

	rows, err := j.db.Query(ctx, listAttemptsSQL, sessionID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []core.Attempt
	for rows.Next() {
		var (
			a                   core.Attempt
			sourceRow, pos      int32
			status              string
			authCode, errorCode pgtype.Text
			clientIP, userAgent pgtype.Text
			durationMS          int64
			createdAt           pgtype.Timestamptz
		)
		if err := rows.Scan(
			&a.SessionID, &a.RowID, &sourceRow, &pos, &a.IdempotencyKey,
			&status, &a.Message, &authCode, &errorCode, &durationMS, &createdAt,
			&clientIP, &userAgent,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.SourceRow = int(sourceRow)
		a.PointOfSale = int(pos)
		a.Status = core.RowStatus(status)
		a.AuthCode = authCode.String
		a.ErrorCode = errorCode.String
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.At = createdAt.Time
		a.ClientIP = clientIP.String
		a.UserAgent = userAgent.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}
	return out, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
