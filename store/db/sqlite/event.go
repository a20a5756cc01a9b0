package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/agenda/internal/util"
	"github.com/hrygo/agenda/store"
)

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
	fields := []string{"uid", "start_ts", "end_ts", "description"}
	args := []any{util.GenUUID(), create.Start.Unix(), create.End.Unix(), create.Description}

	stmt := `INSERT INTO event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING uid`

	var uid string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&uid); err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
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
	set, args := []string{}, []any{}
	set, args = append(set, "start_ts = "+placeholder(len(args)+1)), append(args, replace.Start.Unix())
	set, args = append(set, "end_ts = "+placeholder(len(args)+1)), append(args, replace.End.Unix())
	set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, replace.Description)
	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, id)

	stmt := `UPDATE event SET ` + strings.Join(set, ", ") + ` WHERE uid = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
