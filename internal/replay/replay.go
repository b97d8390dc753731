// Package replay republishes recorded sessions on the bus with their
// recorded timing.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/control"
	"github.com/ayusman/mudra/internal/store"
)

// ErrNoSamples is returned when a session has nothing to replay.
var ErrNoSamples = errors.New("replay: session has no samples")

// Options configures a Player.
type Options struct {
	// Speed scales playback; 2 plays twice as fast. Zero means 1.
	Speed float64
	// Loop restarts from the first sample until the context ends.
	Loop bool
}

// Player publishes samples in order, sleeping the recorded gaps between them.
type Player struct {
	pub   bus.Publisher
	opts  Options
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPlayer creates a Player that publishes on pub.
func NewPlayer(pub bus.Publisher, opts Options, log zerolog.Logger) *Player {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	return &Player{pub: pub, opts: opts, log: log, sleep: sleepCtx}
}

// Play publishes samples and returns the number of messages sent. It returns
// nil when every pass completes, or the context error when cancelled.
func (p *Player) Play(ctx context.Context, samples []store.Sample) (int, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}

	sent := 0
	for pass := 1; ; pass++ {
		n, err := p.pass(ctx, samples)
		sent += n
		if err != nil {
			return sent, err
		}
		p.log.Info().Int("pass", pass).Int("messages", n).Msg("replay pass finished")
		if !p.opts.Loop {
			return sent, nil
		}
	}
}

func (p *Player) pass(ctx context.Context, samples []store.Sample) (int, error) {
	var prev time.Duration
	for i, s := range samples {
		if gap := s.Offset - prev; i > 0 && gap > 0 {
			if err := p.sleep(ctx, p.scale(gap)); err != nil {
				return i, err
			}
		}
		prev = s.Offset

		if err := p.pub.Publish(ctx, control.Encode(s.Message)); err != nil {
			return i, fmt.Errorf("publish sample %d: %w", s.Seq, err)
		}
		p.log.Debug().Int("seq", s.Seq).Str("message", s.Message.String()).Msg("replayed")
	}
	return len(samples), nil
}

func (p *Player) scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) / p.opts.Speed)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
