package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordEvent appends one asset event.
func (s *Store) RecordEvent(ctx context.Context, event Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEventsTx(ctx, tx, []Event{event}, time.Now().UTC())
	})
}

func insertEventsTx(ctx context.Context, tx *sql.Tx, events []Event, now time.Time) error {
	for _, event := range events {
		created := event.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO video_asset_events (entry_id, action, actor, source_path, destination_path, batch_id, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			event.EntryID, string(event.Action), event.Actor, event.Source, event.Destination, event.BatchID, formatTime(created))
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// EventsByEntry lists an entry's events in insertion order.
func (s *Store) EventsByEntry(ctx context.Context, entryID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, entry_id, action, actor, source_path, destination_path, batch_id, created_at
        FROM video_asset_events WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			action  string
			created string
		)
		if err := rows.Scan(&event.ID, &event.EntryID, &action, &event.Actor, &event.Source,
			&event.Destination, &event.BatchID, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Action = Action(action)
		if t, err := parseTimeString(created); err == nil {
			event.CreatedAt = t
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
