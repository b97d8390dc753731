package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/control"
	"github.com/ayusman/mudra/internal/mapping"
)

// Phase is the renderer's position in its two-state lifecycle.
type Phase int

const (
	// WaitingForFirstMessage means no control message has been received yet.
	WaitingForFirstMessage Phase = iota
	// Rendering means a control message is known and drives every frame.
	Rendering
)

func (p Phase) String() string {
	switch p {
	case WaitingForFirstMessage:
		return "waiting"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Frame is everything needed to draw one frame of the solid.
type Frame struct {
	Message      control.Message
	ZoomDistance float64
	Projection   mgl32.Mat4
	ModelView    mgl32.Mat4
}

// TickResult describes what a single Tick did.
type TickResult struct {
	// Received is true when a new message was consumed and applied.
	Received bool
	// Message is the applied message when Received is true.
	Message control.Message
}

// StateConfig configures a State.
type StateConfig struct {
	Zoom       mapping.Zoom
	Projection Projection
	// Strict makes a malformed payload a Tick error instead of a logged skip.
	Strict bool
}

// State is the renderer's control state machine.
type State struct {
	cfg     StateConfig
	log     zerolog.Logger
	phase   Phase
	current control.Message
}

// NewState returns a State waiting for its first message.
func NewState(cfg StateConfig, log zerolog.Logger) *State {
	return &State{
		cfg:   cfg,
		log:   log,
		phase: WaitingForFirstMessage,
	}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return s.phase
}

// Current returns the last applied message. ok is false while waiting for the first one.
func (s *State) Current() (control.Message, bool) {
	return s.current, s.phase == Rendering
}

// Apply replaces the control state with m.
func (s *State) Apply(m control.Message) {
	s.current = m
	s.phase = Rendering
}

// Tick performs one non-blocking receive from sub and applies the result.
// An empty channel leaves the state untouched and is not an error.
func (s *State) Tick(sub bus.Subscriber) (TickResult, error) {
	payload, ok, err := sub.TryReceive()
	if err != nil {
		return TickResult{}, fmt.Errorf("receive: %w", err)
	}
	if !ok {
		return TickResult{}, nil
	}

	m, err := control.Parse(payload)
	if err != nil {
		if s.cfg.Strict {
			return TickResult{}, err
		}
		s.log.Warn().Err(err).Msg("ignoring control message")
		return TickResult{}, nil
	}

	s.Apply(m)
	s.log.Debug().
		Float64("xangle", m.XAngle).
		Float64("yangle", m.YAngle).
		Float64("scale", m.Scale).
		Msg("received")

	return TickResult{Received: true, Message: m}, nil
}

// Frame returns the matrices for the current state. ok is false while
// waiting for the first message; nothing should be drawn then.
func (s *State) Frame() (Frame, bool) {
	if s.phase != Rendering {
		return Frame{}, false
	}

	zoom := s.cfg.Zoom.Distance(s.current.Scale)
	proj, mv := Transform(s.cfg.Projection, zoom, s.current.XAngle, s.current.YAngle)
	return Frame{
		Message:      s.current,
		ZoomDistance: zoom,
		Projection:   proj,
		ModelView:    mv,
	}, true
}
