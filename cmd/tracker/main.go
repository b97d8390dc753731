// Command tracker reads the webcam, detects a hand and publishes rotation and
// zoom control messages on the bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracker"
	"github.com/ayusman/mudra/internal/tray"
)

// The preview window and the tray both need the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	fs := pflag.NewFlagSet("tracker", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.String("bus-bind", "tcp://*:5555", "endpoint to publish control messages on")
	fs.Int("camera", 0, "camera device index")
	fs.Bool("preview", true, "show the annotated camera window")
	fs.Bool("idle", false, "drop to a low frame rate while nothing moves")
	fs.Bool("record", false, "record published messages to the session database")
	fs.String("record-path", config.DefaultRecordPath(), "session database path")
	fs.String("monitor", "", "serve the HTTP monitor on this address, e.g. :8080")
	fs.Bool("tray", false, "show a system tray menu")

	loader := config.NewLoader()
	cfg, err := loader.Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if f := loader.ConfigFile(); f != "" {
		log.Info().Str("file", f).Msg("loaded config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, loader, log); err != nil {
		stop()
		log.Fatal().Err(err).Msg("tracker stopped")
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, loader *config.Loader, log zerolog.Logger) error {
	pub, err := bus.NewPublisher(ctx, cfg.Bus.Bind, logging.Component(log, "bus"))
	if err != nil {
		return err
	}

	det, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.Detector.MaxHands,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinTrackingConf,
		Script:          cfg.Detector.Script,
		Python:          cfg.Detector.Python,
	}, logging.Component(log, "detector"))
	if err != nil {
		pub.Close()
		return err
	}

	tcfg := tracker.Config{
		Camera: capture.NewCamera(capture.Options{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		}),
		Detector:    det,
		Publisher:   pub,
		Calibration: cfg.Calibration,
		MaxHands:    cfg.Detector.MaxHands,
		ExitKey:     cfg.Tracker.ExitKey,
		WaitKeyMs:   cfg.Tracker.WaitKeyMs,
		Idle: tracker.IdleConfig{
			Enabled:   cfg.Tracker.Idle.Enabled,
			FPS:       cfg.Tracker.Idle.FPS,
			Timeout:   cfg.Tracker.Idle.Timeout,
			Threshold: cfg.Tracker.Idle.Threshold,
		},
		Logger: logging.Component(log, "tracker"),
	}

	var st *store.Store
	if cfg.Record.Enabled {
		st, err = store.New(cfg.Record.Path)
		if err != nil {
			pub.Close()
			det.Close()
			return fmt.Errorf("open session store: %w", err)
		}
		defer st.Close()

		rec, err := store.NewRecorder(st, cfg.Camera.Device, logging.Component(log, "recorder"))
		if err != nil {
			pub.Close()
			det.Close()
			return err
		}
		tcfg.Recorder = rec
	}

	var menu *tray.Tray
	if cfg.Tray.Enabled {
		menu = tray.New()
		tcfg.Observers = append(tcfg.Observers, menu)
		if cfg.Tracker.Preview {
			log.Warn().Msg("preview window disabled while the tray is enabled")
		}
	} else if cfg.Tracker.Preview {
		tcfg.Preview = tracker.NewWindowPreview("mudra tracker")
	}

	if cfg.Monitor.Addr != "" {
		srv := server.New(server.Config{Store: st, Logger: logging.Component(log, "monitor")})
		tcfg.Observers = append(tcfg.Observers, srv.Controls())
		tcfg.Frames = srv.Frames()
		if menu != nil {
			menu.SetMonitorURL(cfg.Monitor.Addr)
		}
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Monitor.Addr); err != nil {
				log.Error().Err(err).Str("addr", cfg.Monitor.Addr).Msg("monitor stopped")
			}
		}()
	}

	t, err := tracker.New(tcfg)
	if err != nil {
		pub.Close()
		det.Close()
		return err
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("ignoring config change")
			return
		}
		if err := t.SetCalibration(next.Calibration); err != nil {
			log.Warn().Err(err).Msg("ignoring calibration change")
			return
		}
		log.Info().Msg("calibration reloaded")
	})

	if menu == nil {
		return t.Run(ctx)
	}

	menu.OnToggle(func(enabled bool) {
		t.SetEnabled(enabled)
		log.Info().Bool("publishing", enabled).Msg("toggled from tray")
	})
	menu.OnQuit(stop)

	done := make(chan error, 1)
	go func() {
		done <- t.Run(ctx)
		menu.Quit()
	}()
	menu.Run()
	stop()
	return <-done
}
