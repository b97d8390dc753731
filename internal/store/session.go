package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/control"
)

// Session is one recorded tracker run.
type Session struct {
	ID        string     `json:"id"`
	Device    int        `json:"device"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Samples   int        `json:"samples"`
}

// Sample is one published control message within a session.
type Sample struct {
	Seq     int             `json:"seq"`
	Offset  time.Duration   `json:"offset"`
	Message control.Message `json:"message"`
}

// SessionRepository provides CRUD operations for sessions and their samples.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create starts a new session for a camera device.
func (r *SessionRepository) Create(device int) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Device:    device,
		StartedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, device, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Device, sess.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// AppendSample adds a sample and bumps the session's sample count.
func (r *SessionRepository) AppendSample(sessionID string, s Sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE sessions SET samples = samples + 1 WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(
		`INSERT INTO session_samples (session_id, seq, offset_ms, xangle, yangle, scale)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, s.Seq, s.Offset.Milliseconds(), s.Message.XAngle, s.Message.YAngle, s.Message.Scale,
	)
	if err != nil {
		return fmt.Errorf("append sample: %w", err)
	}

	return tx.Commit()
}

// End marks a session finished.
func (r *SessionRepository) End(id string) error {
	res, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, device, started_at, ended_at, samples FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// Latest returns the most recently started session.
func (r *SessionRepository) Latest() (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, device, started_at, ended_at, samples FROM sessions
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, device, started_at, ended_at, samples FROM sessions ORDER BY started_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Samples returns a session's samples in sequence order.
func (r *SessionRepository) Samples(id string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT seq, offset_ms, xangle, yangle, scale
		 FROM session_samples
		 WHERE session_id = ?
		 ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var offsetMs int64
		if err := rows.Scan(&s.Seq, &offsetMs, &s.Message.XAngle, &s.Message.YAngle, &s.Message.Scale); err != nil {
			return nil, err
		}
		s.Offset = time.Duration(offsetMs) * time.Millisecond
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Delete removes a session and its samples.
func (r *SessionRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Device, &sess.StartedAt, &ended, &sess.Samples); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}
