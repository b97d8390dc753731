package detector

import (
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

func TestHandLandmarks_Pixel(t *testing.T) {
	tests := []struct {
		name string
		p    Point3D
		w, h int
		want image.Point
	}{
		{"origin", Point3D{X: 0, Y: 0}, 640, 480, image.Pt(0, 0)},
		{"centre", Point3D{X: 0.5, Y: 0.5}, 640, 480, image.Pt(320, 240)},
		{"truncates", Point3D{X: 0.4999, Y: 0.9999}, 640, 480, image.Pt(319, 479)},
		{"outside frame", Point3D{X: 1.25, Y: -0.25}, 640, 480, image.Pt(800, -120)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hand HandLandmarks
			hand.Points[IndexTip] = tt.p
			if got := hand.Pixel(IndexTip, tt.w, tt.h); got != tt.want {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnections(t *testing.T) {
	for _, c := range Connections {
		for _, idx := range c {
			if idx < 0 || idx >= NumLandmarks {
				t.Errorf("connection %v has out of range index", c)
			}
		}
	}
	if len(Connections) != 21 {
		t.Errorf("len(Connections) = %d, want 21", len(Connections))
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty by default", func(t *testing.T) {
		m := NewMockDetector()
		hands, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		m := NewMockDetector()
		m.SetHands([]HandLandmarks{OpenPalmLandmarks()})

		hands, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 || hands[0].Handedness != "Right" {
			t.Errorf("unexpected hands: %+v", hands)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockDetector()
		want := errors.New("detection failed")
		m.SetError(want)

		if _, err := m.Detect(nil); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("steps through a sequence", func(t *testing.T) {
		m := NewMockDetector()
		m.SetHands([]HandLandmarks{FistLandmarks()})
		m.SetSequence([][]HandLandmarks{nil, {OpenPalmLandmarks()}})

		counts := []int{}
		for i := 0; i < 3; i++ {
			hands, _ := m.Detect(nil)
			counts = append(counts, len(hands))
		}
		if !reflect.DeepEqual(counts, []int{0, 1, 1}) {
			t.Errorf("hand counts = %v, want [0 1 1]", counts)
		}
		if m.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", m.Calls())
		}
	})

	t.Run("close", func(t *testing.T) {
		m := NewMockDetector()
		if err := m.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Closed() {
			t.Error("Closed() = false after Close")
		}
	})
}

func TestPointingLandmarks(t *testing.T) {
	h := PointingLandmarks(0.25, 0.5, 0.2)

	if got := h.Pixel(IndexTip, 640, 480); got != image.Pt(160, 240) {
		t.Errorf("index tip = %v, want (160,240)", got)
	}

	thumb := h.Pixel(ThumbTip, 640, 480)
	pinky := h.Pixel(PinkyTip, 640, 480)
	if d := thumb.X - pinky.X; d != 128 {
		t.Errorf("thumb-pinky dx = %d, want 128", d)
	}
	if thumb.Y != pinky.Y {
		t.Errorf("thumb and pinky not level: %v %v", thumb, pinky)
	}
}

func TestFistLandmarks(t *testing.T) {
	h := FistLandmarks()
	thumb := h.Points[ThumbTip]
	pinky := h.Points[PinkyTip]

	if dx := thumb.X - pinky.X; dx > 0.05 || dx < -0.05 {
		t.Errorf("fist thumb and pinky too far apart: %v", dx)
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Run("hands", func(t *testing.T) {
		line := []byte(`{"hands":[{"points":[{"x":0.1,"y":0.2,"z":0.0},{"x":0.3,"y":0.4,"z":0.1}],"handedness":"Left","score":0.8}]}` + "\n")

		hands, err := decodeResponse(line)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("len(hands) = %d, want 1", len(hands))
		}
		h := hands[0]
		if h.Handedness != "Left" || h.Score != 0.8 {
			t.Errorf("unexpected hand metadata: %+v", h)
		}
		if h.Points[1] != (Point3D{X: 0.3, Y: 0.4, Z: 0.1}) {
			t.Errorf("Points[1] = %+v", h.Points[1])
		}
		if h.Points[2] != (Point3D{}) {
			t.Errorf("missing points should be zero, got %+v", h.Points[2])
		}
	})

	t.Run("no hands", func(t *testing.T) {
		hands, err := decodeResponse([]byte(`{"hands":[]}`))
		if err != nil || len(hands) != 0 {
			t.Errorf("decodeResponse() = %v, %v", hands, err)
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := decodeResponse([]byte(`{"hands":[],"error":"bad image"}`))
		if !errors.Is(err, errServiceReported) {
			t.Errorf("decodeResponse() error = %v, want service error", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeResponse([]byte("not json"))
		if err == nil || errors.Is(err, errServiceReported) {
			t.Errorf("decodeResponse() error = %v, want parse error", err)
		}
	})
}

func TestServiceArgs(t *testing.T) {
	got := serviceArgs("/opt/svc.py", DefaultConfig())
	want := []string{
		"/opt/svc.py",
		"--max-hands", "1",
		"--min-detection-confidence", "0.5",
		"--min-tracking-confidence", "0.5",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("serviceArgs() = %v, want %v", got, want)
	}
}

func TestNewMediaPipeDetector(t *testing.T) {
	t.Run("missing script", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Script = filepath.Join(t.TempDir(), "nope.py")

		if _, err := NewMediaPipeDetector(cfg, zerolog.Nop()); err == nil {
			t.Error("expected error for missing script")
		}
	})

	t.Run("explicit script and python", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), scriptName)
		if err := os.WriteFile(script, []byte("# stub\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg := DefaultConfig()
		cfg.Script = script
		cfg.Python = "/usr/bin/python3"

		d, err := NewMediaPipeDetector(cfg, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		if d.python != "/usr/bin/python3" {
			t.Errorf("python = %q", d.python)
		}
		if args := d.Args(); args[0] != script {
			t.Errorf("Args()[0] = %q, want %q", args[0], script)
		}
		// Never started, so Close is a no-op.
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

func TestMediaPipeDetector_RestartsDeadService(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a subprocess")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}

	// A service that exits before answering.
	script := filepath.Join(t.TempDir(), scriptName)
	if err := os.WriteFile(script, []byte("exit 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Script = script
	cfg.Python = sh

	d, err := NewMediaPipeDetector(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	defer d.Close()

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 1; i <= 2; i++ {
		if _, err := d.Detect(&frame); err == nil {
			t.Fatalf("Detect() #%d error = nil, want failure from exited service", i)
		}
		if got := d.Starts(); got != i {
			t.Errorf("after Detect() #%d Starts() = %d, want %d", i, got, i)
		}
	}
}
