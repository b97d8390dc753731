// Command replay republishes a recorded tracker session so the renderer can
// run without a camera.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/replay"
	"github.com/ayusman/mudra/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("replay", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.String("bus-bind", "tcp://*:5555", "endpoint to publish control messages on")
	fs.String("record-path", config.DefaultRecordPath(), "session database path")
	sessionID := fs.String("session", "", "session to replay (default: most recent)")
	speed := fs.Float64("speed", 1, "playback speed multiplier")
	loop := fs.Bool("loop", false, "replay until interrupted")
	wait := fs.Duration("wait", time.Second, "time to let subscribers connect before the first message")

	cfg, err := config.NewLoader().Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Record.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Record.Path).Msg("open session store")
	}
	defer st.Close()

	sessions := st.Sessions()
	var sess *store.Session
	if *sessionID != "" {
		sess, err = sessions.GetByID(*sessionID)
	} else {
		sess, err = sessions.Latest()
	}
	if err != nil {
		st.Close()
		log.Fatal().Err(err).Msg("find session")
	}

	samples, err := sessions.Samples(sess.ID)
	if err != nil {
		st.Close()
		log.Fatal().Err(err).Str("session", sess.ID).Msg("load samples")
	}

	pub, err := bus.NewPublisher(ctx, cfg.Bus.Bind, logging.Component(log, "bus"))
	if err != nil {
		st.Close()
		log.Fatal().Err(err).Msg("bind publisher")
	}
	defer pub.Close()

	log.Info().
		Str("session", sess.ID).
		Int("samples", len(samples)).
		Float64("speed", *speed).
		Bool("loop", *loop).
		Msg("replaying")

	select {
	case <-ctx.Done():
		return
	case <-time.After(*wait):
	}

	player := replay.NewPlayer(pub, replay.Options{Speed: *speed, Loop: *loop}, logging.Component(log, "replay"))
	sent, err := player.Play(ctx, samples)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info().Int("sent", sent).Msg("replay finished")
	default:
		log.Error().Err(err).Int("sent", sent).Msg("replay failed")
	}
}
