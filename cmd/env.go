package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	appenv "github.com/autotap/autotap/common"
	"github.com/autotap/autotap/internal/config"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/source"
)

var (
	appFs  afero.Fs  = afero.NewOsFs()
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout

	configPath string

	configFlag = cli.StringFlag{
		Name:        "config",
		Usage:       "use this configuration file (default: $AUTOTAP_CONFIG or the user config dir)",
		Destination: &configPath,
	}
)

// loadConfig reads the configuration named by --config or the default
// location.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.Load(appFs, path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newLogger writes to w at the configured level. AUTOTAP_DEBUG=1 forces
// debug output.
func newLogger(w io.Writer, level string) *logger.StandardLogger {
	l := logger.NewStandardLogger(log.New(w, "", log.LstdFlags))
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		lvl = logger.LevelInfo
	}
	if os.Getenv(appenv.DebugEnv) == "1" {
		lvl = logger.LevelDebug
	}
	l.SetLevel(lvl)
	return l
}

// openLogFile returns a logger appending to path, or nil when path is
// empty. The returned func closes the file.
func openLogFile(path, level string) (logger.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	if err := appFs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("log file: %w", err)
	}
	f, err := appFs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, func() {}, fmt.Errorf("log file: %w", err)
	}
	return newLogger(f, level), func() { f.Close() }, nil
}

// teeLogger adds file to l when a log file is open.
func teeLogger(l, file logger.Logger) logger.Logger {
	if file == nil {
		return l
	}
	return logger.NewMultiLogger(l, file)
}

func sourceOptions(cfg *config.Config) source.Options {
	return source.Options{
		User:       cfg.Source.User,
		Password:   cfg.Source.Password,
		SSHKeyPath: cfg.Source.SSHKeyPath,
		KnownHosts: cfg.Source.KnownHosts,
		Timeout:    cfg.Source.Timeout,
	}
}

func openRef(ctx context.Context, cfg *config.Config, ref string) (io.ReadCloser, error) {
	return source.Open(ctx, appFs, ref, sourceOptions(cfg))
}
