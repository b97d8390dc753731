// Package config loads mudra settings from defaults, an optional config file,
// MUDRA_* environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ayusman/mudra/internal/mapping"
)

// EnvPrefix is prepended to environment overrides, e.g. MUDRA_BUS_BIND.
const EnvPrefix = "MUDRA"

// BusConfig configures the broadcast channel.
type BusConfig struct {
	// Bind is the endpoint the tracker publishes on.
	Bind string `mapstructure:"bind"`
	// Connect is the endpoint the renderer subscribes to.
	Connect string `mapstructure:"connect"`
	// Queue bounds the subscriber's receive buffer; newer messages are dropped when full.
	Queue int `mapstructure:"queue"`
	// Conflate keeps only the newest buffered message.
	Conflate bool `mapstructure:"conflate"`
	// DialRetry is the delay between subscriber connection attempts.
	DialRetry time.Duration `mapstructure:"dialRetry"`
}

// CameraConfig configures video capture.
type CameraConfig struct {
	Device int `mapstructure:"device"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

// DetectorConfig configures hand landmark detection.
type DetectorConfig struct {
	MaxHands        int     `mapstructure:"maxHands"`
	MinConfidence   float64 `mapstructure:"minConfidence"`
	MinTrackingConf float64 `mapstructure:"minTrackingConfidence"`
	Script          string  `mapstructure:"script"`
	Python          string  `mapstructure:"python"`
}

// IdleConfig configures the tracker's motion-gated idle mode.
type IdleConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	FPS       int           `mapstructure:"fps"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Threshold float64       `mapstructure:"threshold"`
}

// TrackerConfig configures the perception loop.
type TrackerConfig struct {
	Preview   bool       `mapstructure:"preview"`
	ExitKey   int        `mapstructure:"exitKey"`
	WaitKeyMs int        `mapstructure:"waitKeyMs"`
	Idle      IdleConfig `mapstructure:"idle"`
}

// RendererConfig configures the window and projection.
type RendererConfig struct {
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	Title     string        `mapstructure:"title"`
	FovY      float64       `mapstructure:"fovy"`
	Near      float64       `mapstructure:"near"`
	Far       float64       `mapstructure:"far"`
	Zoom      mapping.Zoom  `mapstructure:"zoom"`
	FrameWait time.Duration `mapstructure:"frameWait"`
	Strict    bool          `mapstructure:"strict"`
	LineWidth float64       `mapstructure:"lineWidth"`
}

// RecordConfig configures session recording.
type RecordConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MonitorConfig configures the tracker's HTTP monitor. An empty Addr disables it.
type MonitorConfig struct {
	Addr string `mapstructure:"addr"`
}

// TrayConfig configures the tracker's system tray.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the full mudra configuration.
type Config struct {
	Bus         BusConfig           `mapstructure:"bus"`
	Camera      CameraConfig        `mapstructure:"camera"`
	Detector    DetectorConfig      `mapstructure:"detector"`
	Calibration mapping.Calibration `mapstructure:"calibration"`
	Tracker     TrackerConfig       `mapstructure:"tracker"`
	Renderer    RendererConfig      `mapstructure:"renderer"`
	Record      RecordConfig        `mapstructure:"record"`
	Monitor     MonitorConfig       `mapstructure:"monitor"`
	Tray        TrayConfig          `mapstructure:"tray"`
	Log         LogConfig           `mapstructure:"log"`
}

// flagKeys maps command-line flag names to config keys. Only flags present in
// the FlagSet passed to Load are bound.
var flagKeys = map[string]string{
	"bus-bind":    "bus.bind",
	"bus-connect": "bus.connect",
	"conflate":    "bus.conflate",
	"camera":      "camera.device",
	"preview":     "tracker.preview",
	"idle":        "tracker.idle.enabled",
	"record":      "record.enabled",
	"record-path": "record.path",
	"monitor":     "monitor.addr",
	"tray":        "tray.enabled",
	"strict":      "renderer.strict",
	"log-level":   "log.level",
}

// Loader reads configuration and optionally watches the config file for changes.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader creates a Loader with all defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bus.bind", "tcp://*:5555")
	v.SetDefault("bus.connect", "tcp://localhost:5555")
	v.SetDefault("bus.queue", 1000)
	v.SetDefault("bus.conflate", false)
	v.SetDefault("bus.dialRetry", "250ms")

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.fps", 30)

	v.SetDefault("detector.maxHands", 1)
	v.SetDefault("detector.minConfidence", 0.5)
	v.SetDefault("detector.minTrackingConfidence", 0.5)
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.python", "")

	cal := mapping.DefaultCalibration()
	setRange(v, "calibration.x", cal.X)
	setRange(v, "calibration.y", cal.Y)
	setRange(v, "calibration.span", cal.Span)

	v.SetDefault("tracker.preview", true)
	v.SetDefault("tracker.exitKey", 27)
	v.SetDefault("tracker.waitKeyMs", 5)
	v.SetDefault("tracker.idle.enabled", false)
	v.SetDefault("tracker.idle.fps", 5)
	v.SetDefault("tracker.idle.timeout", "2s")
	v.SetDefault("tracker.idle.threshold", 1.0)

	v.SetDefault("renderer.width", 800)
	v.SetDefault("renderer.height", 600)
	v.SetDefault("renderer.title", "mudra")
	v.SetDefault("renderer.fovy", 45.0)
	v.SetDefault("renderer.near", 0.1)
	v.SetDefault("renderer.far", 50.0)
	setRange(v, "renderer.zoom", mapping.DefaultZoom().Range)
	v.SetDefault("renderer.frameWait", "10ms")
	v.SetDefault("renderer.strict", true)
	v.SetDefault("renderer.lineWidth", 2.0)

	v.SetDefault("record.enabled", false)
	v.SetDefault("record.path", DefaultRecordPath())

	v.SetDefault("monitor.addr", "")
	v.SetDefault("tray.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

func setRange(v *viper.Viper, key string, r mapping.Range) {
	v.SetDefault(key+".in0", r.In0)
	v.SetDefault(key+".in1", r.In1)
	v.SetDefault(key+".out0", r.Out0)
	v.SetDefault(key+".out1", r.Out1)
}

// DefaultRecordPath is ~/.mudra/sessions.db, or a relative path when the home
// directory is unknown.
func DefaultRecordPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mudra", "sessions.db")
	}
	return filepath.Join(home, ".mudra", "sessions.db")
}

// RegisterFlags adds the shared flags to fs. Binaries add their own on top.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
}

// Load parses args into fs, reads the config file and returns the decoded configuration.
func (l *Loader) Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fs != nil {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := l.v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	explicit := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		l.v.SetConfigFile(explicit)
	} else {
		l.v.SetConfigName("mudra")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath(filepath.Join("$HOME", ".mudra"))
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the config file is
// written. It is a no-op without a config file.
func (l *Loader) Watch(fn func(*Config, error)) {
	if l.ConfigFile() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		fn(cfg, err)
	})
	l.v.WatchConfig()
}

// Validate rejects settings the processes cannot run with.
func (c *Config) Validate() error {
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	if err := c.Renderer.Zoom.Validate(); err != nil {
		return fmt.Errorf("renderer.zoom: %w", err)
	}
	if c.Renderer.Zoom.In0 > c.Renderer.Zoom.In1 {
		return fmt.Errorf("renderer.zoom: domain must be increasing, got [%g, %g]", c.Renderer.Zoom.In0, c.Renderer.Zoom.In1)
	}
	if c.Renderer.Width <= 0 || c.Renderer.Height <= 0 {
		return fmt.Errorf("renderer: invalid window size %dx%d", c.Renderer.Width, c.Renderer.Height)
	}
	if c.Bus.Queue <= 0 {
		return fmt.Errorf("bus.queue must be positive, got %d", c.Bus.Queue)
	}
	if c.Detector.MaxHands <= 0 {
		return fmt.Errorf("detector.maxHands must be positive, got %d", c.Detector.MaxHands)
	}
	return nil
}
