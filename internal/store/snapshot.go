package store

import (
	"database/sql"
	"errors"
	"time"
)

// Snapshot is an archived, annotated frame on disk.
type Snapshot struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Camera    string    `json:"camera"`
	Gesture   string    `json:"gesture"`
	ProcessID string    `json:"process_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRepository indexes archived snapshots.
type SnapshotRepository struct {
	db *sql.DB
}

// Snapshots returns the snapshot repository for this store.
func (s *Store) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: s.db}
}

// Create inserts a snapshot and sets its ID. A zero CreatedAt is set to now.
func (r *SnapshotRepository) Create(snap *Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO snapshots (path, camera, gesture, process_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.Path, snap.Camera, snap.Gesture, snap.ProcessID, snap.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	snap.ID = id
	return nil
}

// GetByPath retrieves a snapshot by its file path.
func (r *SnapshotRepository) GetByPath(path string) (*Snapshot, error) {
	row := r.db.QueryRow(
		`SELECT id, path, camera, gesture, process_id, created_at
		 FROM snapshots WHERE path = ?`,
		path,
	)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}

// List returns snapshots newest first. An empty camera lists all cameras;
// limit <= 0 means no limit.
func (r *SnapshotRepository) List(camera string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, path, camera, gesture, process_id, created_at
		 FROM snapshots
		 WHERE ? = '' OR camera = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		camera, camera, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}

// DeleteByPath removes a snapshot from the index.
func (r *SnapshotRepository) DeleteByPath(path string) error {
	result, err := r.db.Exec(`DELETE FROM snapshots WHERE path = ?`, path)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var created int64

	if err := row.Scan(&snap.ID, &snap.Path, &snap.Camera, &snap.Gesture, &snap.ProcessID, &created); err != nil {
		return nil, err
	}

	snap.CreatedAt = time.Unix(created, 0)
	return snap, nil
}
