package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hrygo/agenda/internal/util"
	"github.com/hrygo/agenda/store"
)

// exclusionViolation is the SQLSTATE raised by the event_no_overlap constraint.
const exclusionViolation = "23P01"

// ConflictConstraintError is returned when the database rejects an overlapping span.
type ConflictConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConflictConstraintError) Error() string {
	return fmt.Sprintf("event overlaps an existing event (constraint %s)", e.Constraint)
}

func (e *ConflictConstraintError) Unwrap() error {
	return e.Err
}

// Is reports the error as store.ErrSpanConflict.
func (e *ConflictConstraintError) Is(target error) bool {
	return target == store.ErrSpanConflict
}

// classify converts exclusion violations into ConflictConstraintError.
func classify(err error, action string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == exclusionViolation {
		return &ConflictConstraintError{Constraint: pqErr.Constraint, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

func (d *DB) ListEvents(ctx context.Context) ([]*store.Event, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT uid, start_ts, end_ts, description FROM event ORDER BY start_ts ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	loc := d.profile.Location()
	list := []*store.Event{}
	for rows.Next() {
		var (
			e              store.Event
			startTs, endTs int64
		)
		if err := rows.Scan(&e.ID, &startTs, &endTs, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Start = time.Unix(startTs, 0).In(loc)
		e.End = time.Unix(endTs, 0).In(loc)
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return list, nil
}

func (d *DB) InsertEvent(ctx context.Context, create *store.Event) (string, error) {
	args := []any{util.GenUUID(), create.Start.Unix(), create.End.Unix(), create.Description}
	stmt := `INSERT INTO event (uid, start_ts, end_ts, description)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING uid`

	var uid string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&uid); err != nil {
		return "", classify(err, "insert event")
	}
	return uid, nil
}

func (d *DB) RemoveEvent(ctx context.Context, id string) (bool, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM event WHERE uid = "+placeholder(1), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (d *DB) ReplaceEvent(ctx context.Context, id string, replace *store.Event) (bool, error) {
	stmt := `UPDATE event
		SET start_ts = $1, end_ts = $2, description = $3, updated_ts = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE uid = $4`
	result, err := d.db.ExecContext(ctx, stmt, replace.Start.Unix(), replace.End.Unix(), replace.Description, id)
	if err != nil {
		return false, classify(err, "update event")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
