package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes an entry to the events table.
func LogEvent(db *sql.DB, entry EventEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO events (run_id, tick, kind, from_value, to_value, rule, reason, tension, progress, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Tick,
		entry.Kind,
		nullIfEmpty(entry.From),
		nullIfEmpty(entry.To),
		nullIfEmpty(entry.Rule),
		nullIfEmpty(entry.Reason),
		entry.Tension,
		entry.Progress,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// #endregion log-event

// #region list-events
// ListEvents returns up to limit events of a run in tick order. An empty kind matches all.
func ListEvents(db *sql.DB, runID, kind string, limit int) ([]EventEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, tick, kind, from_value, to_value, rule, reason, tension, progress, created_at
		 FROM events WHERE run_id = ? AND (? = '' OR kind = ?) ORDER BY tick, id LIMIT ?`,
		runID, kind, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var e EventEntry
		var from, to, rule, reason sql.NullString
		var created string
		if err := rows.Scan(&e.RunID, &e.Tick, &e.Kind, &from, &to, &rule, &reason, &e.Tension, &e.Progress, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.From, e.To, e.Rule, e.Reason = from.String, to.String, rule.String, reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-events

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
