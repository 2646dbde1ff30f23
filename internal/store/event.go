package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/types"
)

// EventRepository keeps the history of published status records.
type EventRepository struct {
	db *sql.DB
}

// Events returns the status event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append stores a published record.
func (r *EventRepository) Append(rec types.StatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO status_events (process_id, camera, person, gesture, timestamp, record)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ProcessID, rec.Camera, rec.Person, rec.Gesture, rec.TimestampSeconds, string(data),
	)
	return err
}

// Recent returns a camera's most recent records, newest first. limit <= 0
// means no limit.
func (r *EventRepository) Recent(camera string, limit int) ([]types.StatusRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT record FROM status_events
		 WHERE camera = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		camera, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []types.StatusRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var rec types.StatusRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Trim deletes all but the newest keep records of a camera and returns how
// many were removed.
func (r *EventRepository) Trim(camera string, keep int) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM status_events
		 WHERE camera = ? AND id NOT IN (
			SELECT id FROM status_events WHERE camera = ? ORDER BY id DESC LIMIT ?
		 )`,
		camera, camera, keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
