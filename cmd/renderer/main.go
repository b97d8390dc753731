// Command renderer subscribes to the tracker's control messages and draws a
// rotating, zooming solid.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/render"
	"github.com/ayusman/mudra/internal/scene"
)

func main() {
	fs := pflag.NewFlagSet("renderer", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.String("bus-connect", "tcp://localhost:5555", "endpoint to subscribe to")
	fs.Bool("conflate", false, "keep only the newest buffered message")
	fs.Bool("strict", true, "exit on a malformed control message instead of skipping it")

	cfg, err := config.NewLoader().Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := bus.NewSubscriber(ctx, bus.SubscriberOptions{
		Endpoint:  cfg.Bus.Connect,
		QueueSize: cfg.Bus.Queue,
		Conflate:  cfg.Bus.Conflate,
		DialRetry: cfg.Bus.DialRetry,
	}, logging.Component(log, "bus"))

	rc := cfg.Renderer
	state := scene.NewState(scene.StateConfig{
		Zoom:       rc.Zoom,
		Projection: scene.NewProjection(rc.FovY, rc.Width, rc.Height, rc.Near, rc.Far),
		Strict:     rc.Strict,
	}, logging.Component(log, "scene"))

	r := render.New(render.Options{
		Width:     rc.Width,
		Height:    rc.Height,
		Title:     rc.Title,
		LineWidth: float32(rc.LineWidth),
		FrameWait: rc.FrameWait,
	}, state, logging.Component(log, "render"))

	err = r.Run(ctx, sub)
	sub.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("renderer stopped")
	}
}
