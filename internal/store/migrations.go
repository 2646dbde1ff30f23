package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Snapshots table - one row per archived JPEG
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			camera TEXT NOT NULL,
			gesture TEXT NOT NULL,
			process_id TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		// Status events table - every record that reached the broker
		`CREATE TABLE IF NOT EXISTS status_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			process_id TEXT NOT NULL,
			camera TEXT NOT NULL,
			person TEXT NOT NULL,
			gesture TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			record TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_snapshots_camera_created ON snapshots(camera, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_camera ON status_events(camera, id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
