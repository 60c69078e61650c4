package lighting

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// Fixed-width so that text ordering matches time ordering.
	historyTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// TransitionRecord is one committed state change of a controller.
type TransitionRecord struct {
	ID          int64     `json:"id"`
	Controller  string    `json:"controller"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Trigger     string    `json:"trigger"`
	TriggeredBy string    `json:"triggered_by,omitempty"`
	Delay       *float64  `json:"delay"`
	ResetCount  int       `json:"reset_count"`
	NightMode   bool      `json:"night_mode"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Recorder persists transition records.
type Recorder interface {
	Record(ctx context.Context, rec TransitionRecord) error
}

// HistoryStore is a Recorder that can also be queried.
type HistoryStore interface {
	Recorder

	// List returns the newest records of a controller first.
	List(ctx context.Context, controller string, limit int) ([]TransitionRecord, error)
}

// SQLiteHistoryRepository stores transitions in the lighting_transitions table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a repository on an open, migrated database.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts a transition.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: Transition to store; ID is ignored
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRepository) Record(ctx context.Context, rec TransitionRecord) error {
	if rec.Controller == "" {
		return fmt.Errorf("controller name is required")
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}

	var delay sql.NullFloat64
	if rec.Delay != nil {
		delay = sql.NullFloat64{Float64: *rec.Delay, Valid: true}
	}
	var triggeredBy sql.NullString
	if rec.TriggeredBy != "" {
		triggeredBy = sql.NullString{String: rec.TriggeredBy, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lighting_transitions
		 (controller, from_state, to_state, trigger_name, triggered_by, delay_seconds, reset_count, night_mode, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Controller,
		rec.From,
		rec.To,
		rec.Trigger,
		triggeredBy,
		delay,
		rec.ResetCount,
		boolToInt(rec.NightMode),
		rec.OccurredAt.UTC().Format(historyTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// List returns recent transitions of a controller, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - controller: Controller name
//   - limit: Maximum records to return (default 50, max 500)
//
// Returns:
//   - []TransitionRecord: Records ordered by occurred_at DESC (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) List(ctx context.Context, controller string, limit int) ([]TransitionRecord, error) {
	if controller == "" {
		return nil, fmt.Errorf("controller name is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, controller, from_state, to_state, trigger_name, triggered_by,
		        delay_seconds, reset_count, night_mode, occurred_at
		 FROM lighting_transitions
		 WHERE controller = ?
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`,
		controller,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	records := make([]TransitionRecord, 0, limit)
	for rows.Next() {
		var rec TransitionRecord
		var triggeredBy sql.NullString
		var delay sql.NullFloat64
		var night int
		var occurredAt string

		if err := rows.Scan(&rec.ID, &rec.Controller, &rec.From, &rec.To, &rec.Trigger,
			&triggeredBy, &delay, &rec.ResetCount, &night, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		rec.TriggeredBy = triggeredBy.String
		if delay.Valid {
			rec.Delay = ptr(delay.Float64)
		}
		rec.NightMode = night != 0

		ts, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		rec.OccurredAt = ts

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return records, nil
}

// Prune deletes transitions older than the given age.
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(historyTimeFormat)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM lighting_transitions WHERE occurred_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
