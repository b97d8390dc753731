package capture

import (
	"errors"
	"testing"
)

func TestMockCamera_NotOpen(t *testing.T) {
	cam := NewMockCamera(nil, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestMockCamera_Playback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frames := BlankFrames(2, 64, 48)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	cam := NewMockCamera(frames, false)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Cols() != 64 || f.Rows() != 48 {
			t.Errorf("frame %d size = %dx%d, want 64x48", i, f.Cols(), f.Rows())
		}
		f.Close()
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("ReadFrame() after last frame error = %v, want ErrEndOfStream", err)
	}
	if cam.Reads() != 3 {
		t.Errorf("Reads() = %d, want 3", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frames := BlankFrames(1, 32, 32)
	defer frames[0].Close()

	cam := NewMockCamera(frames, true)
	_ = cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_EmptyLoop(t *testing.T) {
	cam := NewMockCamera(nil, true)
	_ = cam.Open()

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("ReadFrame() error = %v, want ErrEndOfStream", err)
	}
}

func TestMockCamera_FPS(t *testing.T) {
	cam := NewMockCamera(nil, false)
	if cam.FPS() != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", cam.FPS(), DefaultFPS)
	}
	cam.SetFPS(5)
	cam.SetFPS(0)
	if cam.FPS() != 5 {
		t.Errorf("FPS() = %d, want 5", cam.FPS())
	}
}

func TestMockCamera_ReadErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frames := BlankFrames(2, 32, 32)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	cam := NewMockCamera(frames, false)
	cam.SetReadErrors(map[int]error{1: ErrEmptyFrame, 3: ErrEmptyFrame})
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	want := []error{ErrEmptyFrame, nil, ErrEmptyFrame, nil, ErrEndOfStream}
	for i, w := range want {
		f, err := cam.ReadFrame()
		if !errors.Is(err, w) {
			t.Fatalf("read %d error = %v, want %v", i+1, err, w)
		}
		if f != nil {
			f.Close()
		}
	}
}
