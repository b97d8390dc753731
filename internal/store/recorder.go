package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/control"
)

// Recorder appends control messages to one session.
type Recorder struct {
	sessions *SessionRepository
	session  *Session
	log      zerolog.Logger

	mu     sync.Mutex
	seq    int
	first  time.Time
	closed bool
}

// NewRecorder starts a session for device.
func NewRecorder(s *Store, device int, log zerolog.Logger) (*Recorder, error) {
	repo := s.Sessions()
	sess, err := repo.Create(device)
	if err != nil {
		return nil, err
	}

	log.Info().Str("session", sess.ID).Str("db", s.Path()).Msg("recording")

	return &Recorder{
		sessions: repo,
		session:  sess,
		log:      log,
	}, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

// Record stores m. Offsets are measured from the first recorded message.
func (r *Recorder) Record(m control.Message, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.seq == 0 {
		r.first = at
	}

	err := r.sessions.AppendSample(r.session.ID, Sample{
		Seq:     r.seq,
		Offset:  at.Sub(r.first),
		Message: m,
	})
	if err != nil {
		return err
	}
	r.seq++
	return nil
}

// Close ends the session. The store itself stays open.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.log.Info().Str("session", r.session.ID).Int("samples", r.seq).Msg("recording ended")
	return r.sessions.End(r.session.ID)
}
