package store

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/control"
)

func TestRecorder(t *testing.T) {
	s := newTestStore(t)

	rec, err := NewRecorder(s, 3, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []control.Message{
		{XAngle: 1, YAngle: 2, Scale: 3},
		{XAngle: 4, YAngle: 5, Scale: 6},
	}
	for i, m := range msgs {
		if err := rec.Record(m, start.Add(time.Duration(i)*250*time.Millisecond)); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := rec.Record(msgs[0], start); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close error = %v, want ErrClosed", err)
	}

	sess, err := s.Sessions().GetByID(rec.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if sess.Device != 3 || sess.Samples != 2 || sess.EndedAt == nil {
		t.Errorf("session = %+v", sess)
	}

	samples, err := s.Sessions().Samples(rec.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if samples[0].Offset != 0 || samples[1].Offset != 250*time.Millisecond {
		t.Errorf("offsets = %v, %v", samples[0].Offset, samples[1].Offset)
	}
	if samples[1].Message != msgs[1] {
		t.Errorf("samples[1] = %+v, want %+v", samples[1].Message, msgs[1])
	}
}
