package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per tracker run that had recording enabled
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			device INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			samples INTEGER NOT NULL DEFAULT 0
		)`,

		// Published control messages, offset from the first sample of the session
		`CREATE TABLE IF NOT EXISTS session_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			offset_ms INTEGER NOT NULL,
			xangle REAL NOT NULL,
			yangle REAL NOT NULL,
			scale REAL NOT NULL,
			UNIQUE(session_id, seq)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_session_samples_session_id ON session_samples(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
