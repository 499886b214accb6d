package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ExecutionKind distinguishes rule runs from CSV imports.
type ExecutionKind string

const (
	KindRule   ExecutionKind = "rule"
	KindImport ExecutionKind = "import"
)

// ExecutionStatus is the outcome of an execution.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
)

// Execution is one recorded rule run or file import.
type Execution struct {
	ID          string
	Kind        ExecutionKind
	Name        string // rule name or file path
	Target      string // output credentials or destination table
	RowsRead    int64
	RowsWritten int64
	Status      ExecutionStatus
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
}

// StatusOf returns the execution status for err.
func StatusOf(err error) ExecutionStatus {
	if err != nil {
		return StatusFailed
	}
	return StatusSuccess
}

// RecordExecution stores e, assigning an ID when empty.
func (s *Store) RecordExecution(ctx context.Context, e *Execution) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}

	var errMsg *string
	if e.Error != "" {
		errMsg = &e.Error
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO executions (id, kind, name, target, rows_read, rows_written, status, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Name, e.Target, e.RowsRead, e.RowsWritten,
		string(e.Status), errMsg, toMillis(e.StartedAt), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	s.logger.Debug("execution recorded",
		slog.String("id", e.ID),
		slog.String("kind", string(e.Kind)),
		slog.String("name", e.Name),
		slog.String("status", string(e.Status)))
	return nil
}

// History returns the most recent executions, newest first. A limit <= 0
// returns every execution.
func (s *Store) History(ctx context.Context, limit int) ([]*Execution, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, name, target, rows_read, rows_written, status, error, started_at, duration_ms
		FROM executions
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Execution
	for rows.Next() {
		var (
			e          Execution
			kind       string
			status     string
			errMsg     sql.NullString
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.Target, &e.RowsRead, &e.RowsWritten,
			&status, &errMsg, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Kind = ExecutionKind(kind)
		e.Status = ExecutionStatus(status)
		e.Error = errMsg.String
		e.StartedAt = fromMillis(startedAt)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return out, nil
}
