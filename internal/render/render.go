// Package render draws the scene state in a raylib window.
package render

import (
	"context"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/scene"
)

const waitingText = "waiting for tracker..."

// Options configures the window and the draw loop.
type Options struct {
	Width     int
	Height    int
	Title     string
	LineWidth float32
	// FrameWait is slept after each frame that applied a new message.
	FrameWait time.Duration
}

// Renderer owns the window and draws one frame per receive attempt.
type Renderer struct {
	opts  Options
	state *scene.State
	solid scene.Solid
	log   zerolog.Logger
}

// New creates a renderer for state. The window is opened by Run.
func New(opts Options, state *scene.State, log zerolog.Logger) *Renderer {
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	return &Renderer{
		opts:  opts,
		state: state,
		solid: scene.TrapezoidalPrism(),
		log:   log,
	}
}

// Run opens the window and loops until the window is closed or ctx is
// cancelled. It must be called from the main goroutine.
// A receive or strict parse error ends the loop and is returned.
func (r *Renderer) Run(ctx context.Context, sub bus.Subscriber) error {
	rl.SetTraceLogLevel(rl.LogWarning)
	rl.SetConfigFlags(rl.FlagMsaa4xHint)
	rl.InitWindow(int32(r.opts.Width), int32(r.opts.Height), r.opts.Title)
	defer rl.CloseWindow()

	r.log.Info().
		Int("width", r.opts.Width).
		Int("height", r.opts.Height).
		Msg("window opened")

	frames := 0
	for !rl.WindowShouldClose() {
		if ctx.Err() != nil {
			break
		}

		res, err := r.state.Tick(sub)
		if err != nil {
			return err
		}

		r.drawFrame()
		frames++

		if res.Received && r.opts.FrameWait > 0 {
			rl.WaitTime(r.opts.FrameWait.Seconds())
		}
	}

	r.log.Info().Int("frames", frames).Msg("window closed")
	return nil
}

func (r *Renderer) drawFrame() {
	rl.BeginDrawing()
	defer rl.EndDrawing()

	rl.ClearBackground(rl.Black)

	f, ok := r.state.Frame()
	if !ok {
		r.drawWaiting()
		return
	}
	r.drawSolid(f)
}

func (r *Renderer) drawWaiting() {
	const size = 20
	w := rl.MeasureText(waitingText, size)
	x := (int32(rl.GetScreenWidth()) - w) / 2
	y := (int32(rl.GetScreenHeight()) - size) / 2
	rl.DrawText(waitingText, x, y, size, rl.LightGray)
}

// drawSolid loads the frame matrices into rlgl and draws the faces then the
// edges, restoring the 2D matrices afterwards.
func (r *Renderer) drawSolid(f scene.Frame) {
	rl.DrawRenderBatchActive()

	rl.MatrixMode(rl.Projection)
	rl.PushMatrix()
	rl.LoadIdentity()
	rl.MultMatrix(toRL(f.Projection))

	rl.MatrixMode(rl.Modelview)
	rl.LoadIdentity()
	rl.MultMatrix(toRL(f.ModelView))

	rl.EnableDepthTest()

	rl.Begin(rl.Quads)
	for _, face := range r.solid.Faces {
		for i, idx := range face.Indices {
			c := face.Colors[i]
			v := r.solid.Vertices[idx]
			rl.Color3f(c.X(), c.Y(), c.Z())
			rl.Vertex3f(v.X(), v.Y(), v.Z())
		}
	}
	rl.End()

	rl.DrawRenderBatchActive()
	rl.SetLineWidth(r.opts.LineWidth)

	rl.Begin(rl.Lines)
	rl.Color4ub(255, 255, 255, 255)
	for _, e := range r.solid.Edges {
		a, b := r.solid.Vertices[e[0]], r.solid.Vertices[e[1]]
		rl.Vertex3f(a.X(), a.Y(), a.Z())
		rl.Vertex3f(b.X(), b.Y(), b.Z())
	}
	rl.End()

	rl.DrawRenderBatchActive()
	rl.SetLineWidth(1)

	rl.MatrixMode(rl.Projection)
	rl.PopMatrix()
	rl.MatrixMode(rl.Modelview)
	rl.LoadIdentity()

	rl.DisableDepthTest()
}
