// Package config loads and saves the operator configuration file.
//
// The file is YAML. Every field has a default, so a missing file or a
// partial one is valid; fields present in the file replace the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/autotap/autotap/common"
	"github.com/autotap/autotap/internal/scheduler"
	"github.com/autotap/autotap/pkg/coord"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

// Transport kinds.
const (
	KindADB      = "adb"
	KindSSH      = "ssh"
	KindWSBridge = "wsbridge"
	KindSerial   = "serial"
	KindRecorder = "recorder"
)

var kinds = []string{KindADB, KindSSH, KindWSBridge, KindSerial, KindRecorder}

var (
	ErrInvalidStep      = errors.New("config: step must be positive")
	ErrNegativeDelay    = errors.New("config: delays must not be negative")
	ErrInvalidPoll      = errors.New("config: poll interval must be positive")
	ErrUnknownTransport = errors.New("config: unknown transport kind")
)

const fileName = "config.yaml"

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) touch() touch.Point {
	return touch.Point{X: p.X, Y: p.Y}
}

// Corners are the device pixel corners of the play-field.
type Corners struct {
	BottomLeft  Point `yaml:"bottom_left"`
	TopLeft     Point `yaml:"top_left"`
	TopRight    Point `yaml:"top_right"`
	BottomRight Point `yaml:"bottom_right"`
}

type ADB struct {
	Path   string `yaml:"path,omitempty"`
	Serial string `yaml:"serial,omitempty"`
}

type SSH struct {
	Addr       string `yaml:"addr,omitempty"`
	User       string `yaml:"user,omitempty"`
	Password   string `yaml:"password,omitempty"`
	KeyPath    string `yaml:"key_path,omitempty"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

type WSBridge struct {
	URL   string `yaml:"url,omitempty"`
	Token string `yaml:"token,omitempty"`
}

type Serial struct {
	Port string `yaml:"port,omitempty"`
	Baud int    `yaml:"baud,omitempty"`
}

// Recorder is the screen size reported by the dry-run transport.
type Recorder struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Transport selects and configures the device transport. Only the block
// matching Kind is read. InputDevice and the axis ranges apply to the adb
// and ssh shells.
type Transport struct {
	Kind        string   `yaml:"kind"`
	InputDevice string   `yaml:"input_device,omitempty"`
	AxisMaxX    int      `yaml:"axis_max_x,omitempty"`
	AxisMaxY    int      `yaml:"axis_max_y,omitempty"`
	ADB         ADB      `yaml:"adb,omitempty"`
	SSH         SSH      `yaml:"ssh,omitempty"`
	WSBridge    WSBridge `yaml:"wsbridge,omitempty"`
	Serial      Serial   `yaml:"serial,omitempty"`
	Recorder    Recorder `yaml:"recorder"`
}

// RPC configures the optional network control endpoint. The local socket
// is always served.
type RPC struct {
	Listen         string   `yaml:"listen,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	MaxConns       int      `yaml:"max_conns,omitempty"`
}

// Source holds credentials for remote timeline and chart references.
type Source struct {
	User       string        `yaml:"user,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	SSHKeyPath string        `yaml:"ssh_key_path,omitempty"`
	KnownHosts string        `yaml:"known_hosts,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

type Config struct {
	Corners Corners `yaml:"corners"`
	// Timeline and Chart are local paths or sftp/ftp URLs.
	Timeline string `yaml:"timeline,omitempty"`
	Chart    string `yaml:"chart,omitempty"`

	Step            time.Duration `yaml:"step"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	ConfirmPause    time.Duration `yaml:"confirm_pause"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	JitterTolerance time.Duration `yaml:"jitter_tolerance"`
	AckTap          bool          `yaml:"ack_tap"`

	Transport Transport `yaml:"transport"`
	RPC       RPC       `yaml:"rpc,omitempty"`
	Source    Source    `yaml:"source,omitempty"`

	History  string `yaml:"history,omitempty"`
	Script   string `yaml:"script,omitempty"`
	LogLevel string `yaml:"log_level"`
	// LogFile, when set, receives a copy of the session log.
	LogFile string `yaml:"log_file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := scheduler.DefaultOptions()
	return &Config{
		Corners: Corners{
			BottomLeft:  Point{171, 1350},
			TopLeft:     Point{171, 300},
			TopRight:    Point{2376, 300},
			BottomRight: Point{2376, 1350},
		},
		Step:            10 * time.Millisecond,
		SettleDelay:     opts.SettleDelay,
		ConfirmPause:    opts.ConfirmPause,
		PollInterval:    opts.PollInterval,
		JitterTolerance: opts.JitterTolerance,
		AckTap:          true,
		Transport: Transport{
			Kind:     KindADB,
			Recorder: Recorder{Width: 2560, Height: 1600},
		},
		LogLevel: "info",
	}
}

// DefaultPath is $AUTOTAP_CONFIG, or config.yaml in the autotap directory
// of the user configuration dir.
func DefaultPath() (string, error) {
	if p := os.Getenv(common.ConfigEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autotap", fileName), nil
}

// Load reads path from fsys over the defaults. A missing file yields the
// defaults. The result is validated.
func Load(fsys afero.Fs, path string) (*Config, error) {
	cfg := Default()
	b, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return afero.WriteFile(fsys, path, buf.Bytes(), 0o644)
}

// Validate checks the fields that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Step <= 0 {
		return ErrInvalidStep
	}
	if c.SettleDelay < 0 || c.ConfirmPause < 0 || c.JitterTolerance < 0 {
		return ErrNegativeDelay
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPoll
	}
	known := false
	for _, k := range kinds {
		if c.Transport.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w %q", ErrUnknownTransport, c.Transport.Kind)
	}
	if c.RPC.MaxConns < 0 {
		return errors.New("config: rpc max_conns must not be negative")
	}
	if _, err := c.Converter(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Converter builds the coordinate converter from the corners.
func (c *Config) Converter() (*coord.Converter, error) {
	return coord.New(
		c.Corners.BottomLeft.touch(),
		c.Corners.TopLeft.touch(),
		c.Corners.TopRight.touch(),
		c.Corners.BottomRight.touch(),
	)
}

// SchedulerOptions maps the timing fields onto scheduler options.
func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		PollInterval:    c.PollInterval,
		JitterTolerance: c.JitterTolerance,
		ConfirmPause:    c.ConfirmPause,
		SettleDelay:     c.SettleDelay,
		SkipAckTap:      !c.AckTap,
	}
}
