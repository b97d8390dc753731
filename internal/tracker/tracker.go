// Package tracker turns camera frames into control messages.
//
// Each frame is read from a camera, passed to a hand landmark detector, and
// every detected hand is mapped to one control message that is published on
// the bus. The loop optionally shows an annotated preview, records samples
// and feeds observers such as the monitor server or the tray.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/control"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/mapping"
)

// DefaultExitKey is the preview key code that stops the loop (ESC).
const DefaultExitKey = 27

// Recorder persists published control messages. The tracker owns it.
type Recorder interface {
	Record(m control.Message, at time.Time) error
	Close() error
}

// ControlObserver is notified of every published control message.
type ControlObserver interface {
	ObserveControl(m control.Message, at time.Time)
}

// FrameObserver receives each annotated frame. It must copy what it keeps.
type FrameObserver interface {
	ObserveFrame(frame *gocv.Mat)
}

// IdleConfig enables the low-rate idle mode.
type IdleConfig struct {
	Enabled bool
	// FPS is the camera rate requested while idle.
	FPS int
	// Timeout is how long without motion before going idle.
	Timeout time.Duration
	// Threshold is the changed-pixel percentage that counts as motion.
	Threshold float64
}

// Config wires a Tracker. Camera, Detector and Publisher are required.
type Config struct {
	Camera    capture.Camera
	Detector  detector.Detector
	Publisher bus.Publisher

	// Preview shows annotated frames and polls the keyboard. Nil runs headless.
	Preview Preview
	// Recorder stores every published message. Optional.
	Recorder Recorder
	// Observers are told about every published message. Optional.
	Observers []ControlObserver
	// Frames receives every annotated frame. Optional.
	Frames FrameObserver

	Calibration mapping.Calibration
	MaxHands    int
	ExitKey     int
	WaitKeyMs   int
	Idle        IdleConfig

	Logger zerolog.Logger
}

// Tracker runs the perception loop.
type Tracker struct {
	camera    capture.Camera
	detector  detector.Detector
	publisher bus.Publisher
	preview   Preview
	recorder  Recorder
	observers []ControlObserver
	frames    FrameObserver

	maxHands  int
	exitKey   int
	waitKeyMs int
	idleCfg   IdleConfig
	activeFPS int

	motion *capture.MotionDetector
	idle   *capture.IdleTracker

	mu          sync.RWMutex
	calibration mapping.Calibration
	last        control.Message
	hasLast     bool

	enabled   atomic.Bool
	published atomic.Uint64

	log       zerolog.Logger
	now       func() time.Time
	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and builds a Tracker. Publishing starts enabled.
func New(cfg Config) (*Tracker, error) {
	if cfg.Camera == nil || cfg.Detector == nil || cfg.Publisher == nil {
		return nil, errors.New("tracker: camera, detector and publisher are required")
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	if cfg.MaxHands <= 0 {
		cfg.MaxHands = 1
	}
	if cfg.ExitKey == 0 {
		cfg.ExitKey = DefaultExitKey
	}
	if cfg.WaitKeyMs <= 0 {
		cfg.WaitKeyMs = 5
	}

	t := &Tracker{
		camera:      cfg.Camera,
		detector:    cfg.Detector,
		publisher:   cfg.Publisher,
		preview:     cfg.Preview,
		recorder:    cfg.Recorder,
		observers:   cfg.Observers,
		frames:      cfg.Frames,
		maxHands:    cfg.MaxHands,
		exitKey:     cfg.ExitKey,
		waitKeyMs:   cfg.WaitKeyMs,
		idleCfg:     cfg.Idle,
		calibration: cfg.Calibration,
		log:         cfg.Logger,
		now:         time.Now,
	}
	t.enabled.Store(true)

	if cfg.Idle.Enabled {
		threshold := cfg.Idle.Threshold
		if threshold <= 0 {
			threshold = 1.0
		}
		t.motion = capture.NewMotionDetector(threshold)
	}

	return t, nil
}

// SetEnabled pauses or resumes publishing. Frames are still read and
// previewed while paused.
func (t *Tracker) SetEnabled(enabled bool) {
	if t.enabled.Swap(enabled) != enabled {
		t.log.Info().Bool("enabled", enabled).Msg("publishing toggled")
	}
}

// IsEnabled reports whether messages are published.
func (t *Tracker) IsEnabled() bool {
	return t.enabled.Load()
}

// SetCalibration replaces the pixel-to-control mapping.
func (t *Tracker) SetCalibration(c mapping.Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.calibration = c
	t.mu.Unlock()
	return nil
}

// Calibration returns the mapping in use.
func (t *Tracker) Calibration() mapping.Calibration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibration
}

// LastMessage returns the most recently published message.
func (t *Tracker) LastMessage() (control.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}

// Published reports how many messages have been published.
func (t *Tracker) Published() uint64 {
	return t.published.Load()
}

// ProcessHand maps one hand in a width x height frame to a control message.
// The index fingertip pixel gives the angles; the thumb to pinky tip span
// gives the scale.
func (t *Tracker) ProcessHand(hand *detector.HandLandmarks, width, height int) control.Message {
	return Compute(t.Calibration(), hand, width, height)
}

// Compute is ProcessHand for an explicit calibration.
func Compute(cal mapping.Calibration, hand *detector.HandLandmarks, width, height int) control.Message {
	tip := hand.Pixel(detector.IndexTip, width, height)
	thumb := hand.Pixel(detector.ThumbTip, width, height)
	pinky := hand.Pixel(detector.PinkyTip, width, height)

	span := math.Hypot(float64(thumb.X-pinky.X), float64(thumb.Y-pinky.Y))

	return control.Message{
		XAngle: cal.XToAngle(float64(tip.X)),
		YAngle: cal.YToAngle(float64(tip.Y)),
		Scale:  cal.DistanceToScale(span),
	}
}

// Run opens the camera and processes frames until the stream ends, the exit
// key is pressed or ctx is cancelled. None of those is an error.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	t.activeFPS = t.camera.FPS()
	if t.motion != nil {
		t.idle = capture.NewIdleTracker(t.idleCfg.Timeout, t.now())
	}

	t.log.Info().
		Int("fps", t.activeFPS).
		Bool("preview", t.preview != nil).
		Bool("idle", t.motion != nil).
		Msg("tracker started")

	for {
		if err := ctx.Err(); err != nil {
			t.log.Info().Msg("tracker stopped")
			return nil
		}

		frame, err := t.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) || errors.Is(err, capture.ErrEndOfStream) {
				t.log.Info().Err(err).Msg("camera stream ended")
				return nil
			}
			t.log.Warn().Err(err).Msg("ignoring empty camera frame")
			continue
		}

		quit := t.processFrame(ctx, frame)
		frame.Close()

		if quit {
			t.log.Info().Msg("exit key pressed")
			return nil
		}
	}
}

// processFrame handles one frame and reports whether the exit key was pressed.
func (t *Tracker) processFrame(ctx context.Context, frame *gocv.Mat) bool {
	if !t.observeMotion(frame) {
		hands, err := t.detector.Detect(frame)
		if err != nil {
			t.log.Warn().Err(err).Msg("hand detection failed")
			hands = nil
		}
		if len(hands) > t.maxHands {
			hands = hands[:t.maxHands]
		}

		width, height := frame.Cols(), frame.Rows()
		annotate := t.preview != nil || t.frames != nil
		for i := range hands {
			hand := &hands[i]
			m := t.ProcessHand(hand, width, height)
			t.emit(ctx, m, hand.Pixel(detector.IndexTip, width, height))
			if annotate {
				drawHand(frame, hand)
			}
		}
	}

	if t.frames != nil {
		t.frames.ObserveFrame(frame)
	}

	if t.preview == nil {
		return false
	}
	t.preview.Show(frame)
	return t.preview.WaitKey(t.waitKeyMs)&0xff == t.exitKey
}

// observeMotion updates idle mode and reports whether detection should be
// skipped for this frame.
func (t *Tracker) observeMotion(frame *gocv.Mat) bool {
	if t.motion == nil {
		return false
	}

	moved, pct := t.motion.Detect(frame)
	idle, changed := t.idle.Observe(moved, t.now())
	if changed {
		if idle {
			t.camera.SetFPS(t.idleCfg.FPS)
			t.log.Info().Int("fps", t.idleCfg.FPS).Msg("switched to idle mode")
		} else {
			t.camera.SetFPS(t.activeFPS)
			t.log.Info().Int("fps", t.activeFPS).Float64("changed", pct).Msg("switched to active mode")
		}
	}
	return idle
}

func (t *Tracker) emit(ctx context.Context, m control.Message, tip image.Point) {
	t.log.Debug().
		Int("x", tip.X).
		Int("y", tip.Y).
		Float64("xangle", m.XAngle).
		Float64("yangle", m.YAngle).
		Float64("scale", m.Scale).
		Msg("hand")

	if !t.IsEnabled() {
		return
	}

	if err := t.publisher.Publish(ctx, control.Encode(m)); err != nil {
		t.log.Warn().Err(err).Msg("publish failed")
		return
	}
	t.published.Add(1)

	at := t.now()
	t.mu.Lock()
	t.last = m
	t.hasLast = true
	t.mu.Unlock()

	if t.recorder != nil {
		if err := t.recorder.Record(m, at); err != nil {
			t.log.Warn().Err(err).Msg("record sample")
		}
	}
	for _, o := range t.observers {
		o.ObserveControl(m, at)
	}
}

// Close releases the camera, detector, preview window, recorder and publisher.
// It is safe to call more than once.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		var errs []error
		if err := t.camera.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close camera: %w", err))
		}
		if err := t.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		if t.preview != nil {
			if err := t.preview.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close preview: %w", err))
			}
		}
		if t.recorder != nil {
			if err := t.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close recorder: %w", err))
			}
		}
		if t.motion != nil {
			t.motion.Close()
		}
		if err := t.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		t.closeErr = errors.Join(errs...)
		t.log.Info().Uint64("published", t.published.Load()).Msg("tracker closed")
	})
	return t.closeErr
}
