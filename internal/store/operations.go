package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zash3dit/zashedit/internal/apperr"
)

type OperationStatus string

const (
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// Operation is one encoder-backed edit. Params holds the request so a failed
// operation can be issued again.
type Operation struct {
	ID        string          `json:"id"`
	ProjectID int64           `json:"project_id"`
	Stage     apperr.Stage    `json:"stage"`
	Params    json.RawMessage `json:"params"`
	Status    OperationStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Retryable bool            `json:"retryable"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OperationLog records operations in the operations table.
type OperationLog struct {
	db *sql.DB
}

func NewOperationLog(db *sql.DB) *OperationLog {
	return &OperationLog{db: db}
}

func (l *OperationLog) Start(ctx context.Context, projectID int64, stage apperr.Stage, params any) (*Operation, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode operation params: %w", err)
	}
	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO operations (id, project_id, stage, params, status, attempts)
		VALUES (?, ?, ?, ?, ?, 1)
	`, id, projectID, string(stage), string(raw), string(OperationRunning))
	if err != nil {
		return nil, fmt.Errorf("record operation: %w", err)
	}
	return l.Get(ctx, id)
}

func (l *OperationLog) Complete(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, error = NULL, retryable = 0, updated_at = datetime('now') WHERE id = ?
	`, string(OperationCompleted), id)
	return err
}

func (l *OperationLog) Fail(ctx context.Context, id, message string, retryable bool) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, error = ?, retryable = ?, updated_at = datetime('now') WHERE id = ?
	`, string(OperationFailed), message, boolToInt(retryable), id)
	return err
}

// Restart moves a failed operation back to running and counts the attempt.
func (l *OperationLog) Restart(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, error = NULL, attempts = attempts + 1, updated_at = datetime('now')
		WHERE id = ? AND status = ?
	`, string(OperationRunning), id, string(OperationFailed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("operation %s is not in failed state", id)
	}
	return nil
}

// Get returns nil, nil for an unknown id.
func (l *OperationLog) Get(ctx context.Context, id string) (*Operation, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, project_id, stage, params, status, error, retryable, attempts, created_at, updated_at
		FROM operations WHERE id = ?
	`, id)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return op, err
}

// List returns the newest operations first; projectID 0 means all projects.
func (l *OperationLog) List(ctx context.Context, projectID int64, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, project_id, stage, params, status, error, retryable, attempts, created_at, updated_at
		FROM operations WHERE (? = 0 OR project_id = ?)
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, projectID, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops := []*Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanOperation(row scanner) (*Operation, error) {
	var op Operation
	var stage, params, status, createdAt, updatedAt string
	var errMsg sql.NullString
	var retryable int
	if err := row.Scan(&op.ID, &op.ProjectID, &stage, &params, &status, &errMsg, &retryable,
		&op.Attempts, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	op.Stage = apperr.Stage(stage)
	op.Params = json.RawMessage(params)
	op.Status = OperationStatus(status)
	op.Error = errMsg.String
	op.Retryable = retryable == 1
	var err error
	if op.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("operation %s created_at: %w", op.ID, err)
	}
	if op.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("operation %s updated_at: %w", op.ID, err)
	}
	return &op, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
