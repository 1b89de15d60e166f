package presence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TransitionRecorder stores confirmed presence transitions.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, fanPath, name string, state State) error
}

// SQLiteHistoryRepository keeps confirmed transitions in the
// presence_history table.
type SQLiteHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteHistoryRepository creates a repository on an open database
// whose migrations have been applied.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, now: time.Now}
}

// RecordTransition inserts a transition stamped with the current time.
func (r *SQLiteHistoryRepository) RecordTransition(ctx context.Context, fanPath, name string, state State) error {
	if fanPath == "" {
		return errors.New("fan path is required")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO presence_history (fan_path, name, present, created_at) VALUES (?, ?, ?, ?)",
		fanPath,
		name,
		state.Bool(),
		r.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting presence history: %w", err)
	}
	return nil
}

// PruneHistory deletes transitions older than olderThan and returns how
// many were removed.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM presence_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting presence history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
