// Package script runs an operator supplied JavaScript hook over a timeline
// before playback. The script defines transform(group, index): returning
// null drops the group, returning nothing keeps it, and returning an object
// replaces it.
package script

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"

	"github.com/autotap/autotap/pkg/coord"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

const transformFunc = "transform"

var (
	ErrNoTransform   = errors.New("script does not define transform(group)")
	ErrInvalidGroup  = errors.New("transform returned an invalid group")
	ErrNoCoordinates = errors.New("device() needs calibrated corners")
)

// Options configures a Script.
type Options struct {
	// Converter backs device() and lane(). Without it both throw.
	Converter *coord.Converter
	Log       logger.Logger
}

// Stats counts what a transform pass did.
type Stats struct {
	Kept     int
	Dropped  int
	Replaced int
}

// Script is one loaded hook with its own JS runtime. It is not safe for
// concurrent use.
type Script struct {
	vm        *goja.Runtime
	transform goja.Callable
	opts      Options
	log       logger.Logger
}

// Load reads the script at path on fsys. Modules passed to require resolve
// relative to the script's directory on the same filesystem.
func Load(fsys afero.Fs, path string, opts Options) (*Script, error) {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return compile(path, string(src), sourceLoader(fsys, filepath.Dir(path)), opts)
}

// Compile builds a Script from source. require is limited to native
// modules.
func Compile(name, src string, opts Options) (*Script, error) {
	return compile(name, src, func(string) ([]byte, error) {
		return nil, require.ModuleFileDoesNotExistError
	}, opts)
}

func sourceLoader(fsys afero.Fs, wd string) require.SourceLoader {
	return func(path string) ([]byte, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(wd, path)
		}
		b, err := afero.ReadFile(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return b, err
	}
}

func compile(name, src string, loader require.SourceLoader, opts Options) (*Script, error) {
	l := opts.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	s := &Script{vm: goja.New(), opts: opts, log: logger.WithPrefix(l, "[script]")}

	registry := require.NewRegistry(require.WithLoader(loader))
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{s.log}))
	registry.Enable(s.vm)
	console.Enable(s.vm)

	if err := s.vm.Set("device", s.device); err != nil {
		return nil, err
	}
	if err := s.vm.Set("lane", s.lane); err != nil {
		return nil, err
	}
	if _, err := s.vm.RunScript(name, src); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(s.vm.Get(transformFunc))
	if !ok {
		return nil, ErrNoTransform
	}
	s.transform = fn
	return s, nil
}

func (s *Script) point(p touch.Point) goja.Value {
	o := s.vm.NewObject()
	_ = o.Set("x", p.X)
	_ = o.Set("y", p.Y)
	return o
}

// device(x, y) maps a logical play-field position to device pixels.
func (s *Script) device(x, y float64) goja.Value {
	if s.opts.Converter == nil {
		panic(s.vm.NewGoError(ErrNoCoordinates))
	}
	return s.point(s.opts.Converter.Convert(coord.Logical{X: x, Y: y}))
}

// lane(n, lanes) is the device pixel at the centre of ground lane n.
func (s *Script) lane(n, lanes int) goja.Value {
	if s.opts.Converter == nil {
		panic(s.vm.NewGoError(ErrNoCoordinates))
	}
	return s.point(s.opts.Converter.Convert(coord.LanePoint(n, lanes)))
}

type printer struct {
	l logger.Logger
}

func (p printer) Log(msg string)   { p.l.Info("%s", msg) }
func (p printer) Warn(msg string)  { p.l.Warning("%s", msg) }
func (p printer) Error(msg string) { p.l.Error("%s", msg) }
