// Package shell injects touches on an Android device by piping sendevent
// lines (multi-touch protocol B) into a persistent remote shell. The shell
// is reached through a Backend: the adb executable or an SSH session.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"

	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

// Linux input event codes used by protocol B.
const (
	evSyn = 0
	evKey = 1
	evAbs = 3

	synReport = 0

	btnTouch = 330

	absMTSlot       = 47
	absMTPositionX  = 53
	absMTPositionY  = 54
	absMTTrackingID = 57
)

// ErrNotConnected is returned by primitives issued before Connect.
var ErrNotConnected = errors.New("shell: not connected")

// Backend runs commands on the device.
type Backend interface {
	// Run executes one command and returns its standard output.
	Run(ctx context.Context, cmd string) ([]byte, error)
	// Shell starts a long-lived shell reading commands from the returned
	// writer. Closing the writer ends the shell.
	Shell(ctx context.Context) (io.WriteCloser, error)
	Close() error
}

// Config configures a Transport.
type Config struct {
	Backend Backend
	// InputDevice is the evdev node of the touchscreen, e.g. /dev/input/event2.
	InputDevice string
	// AxisMaxX and AxisMaxY are the touch device's ABS_MT_POSITION ranges.
	// When set, pixel coordinates are scaled to them; when zero, pixels are
	// written as is.
	AxisMaxX int
	AxisMaxY int
	Log      logger.Logger
}

// Transport implements device.Transport over a Backend.
type Transport struct {
	cfg Config
	log logger.Logger

	mu     sync.Mutex
	size   device.Size
	stdin  io.WriteCloser
	w      *bufio.Writer
	down   map[int]bool
	nextID int
}

// New returns an unconnected Transport.
func New(cfg Config) *Transport {
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Transport{cfg: cfg, log: l, down: make(map[int]bool)}
}

var sizeRe = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// ParseWMSize reads the output of `wm size`. An override size wins over
// the physical one.
func ParseWMSize(out []byte) (device.Size, error) {
	var size device.Size
	found := false
	for _, m := range sizeRe.FindAllSubmatch(out, -1) {
		w, _ := strconv.Atoi(string(m[2]))
		h, _ := strconv.Atoi(string(m[3]))
		if string(m[1]) == "Override" || !found {
			size = device.Size{Width: w, Height: h}
			found = true
		}
	}
	if !found {
		return device.Size{}, fmt.Errorf("unexpected wm size output %q", bytes.TrimSpace(out))
	}
	return size, nil
}

func (t *Transport) Connect(ctx context.Context) (device.Size, error) {
	if t.cfg.Backend == nil {
		return device.Size{}, device.Wrap("connect", errors.New("shell: no backend"))
	}
	if t.cfg.InputDevice == "" {
		return device.Size{}, device.Wrap("connect", errors.New("shell: no input device"))
	}
	out, err := t.cfg.Backend.Run(ctx, "wm size")
	if err != nil {
		return device.Size{}, device.Wrap("connect", err)
	}
	size, err := ParseWMSize(out)
	if err != nil {
		return device.Size{}, device.Wrap("connect", err)
	}
	stdin, err := t.cfg.Backend.Shell(ctx)
	if err != nil {
		return device.Size{}, device.Wrap("connect", err)
	}

	t.mu.Lock()
	t.size = size
	t.stdin = stdin
	t.w = bufio.NewWriter(stdin)
	t.mu.Unlock()
	t.log.Info("shell transport connected, screen %s, input %s", size, t.cfg.InputDevice)
	return size, nil
}

func (t *Transport) scale(x, y int) (int, int) {
	if t.cfg.AxisMaxX > 0 && t.size.Width > 0 {
		x = x * t.cfg.AxisMaxX / t.size.Width
	}
	if t.cfg.AxisMaxY > 0 && t.size.Height > 0 {
		y = y * t.cfg.AxisMaxY / t.size.Height
	}
	return x, y
}

func (t *Transport) event(typ, code, value int) {
	fmt.Fprintf(t.w, "sendevent %s %d %d %d\n", t.cfg.InputDevice, typ, code, value)
}

// Touch writes the primitive's event lines and flushes them in one write.
func (t *Transport) Touch(x, y int, kind touch.Kind, pointer int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return device.Wrap("touch", ErrNotConnected)
	}
	if kind != touch.Down && kind != touch.Move && kind != touch.Up {
		return device.Wrap("touch", fmt.Errorf("unknown kind %v", kind))
	}
	x, y = t.scale(x, y)
	t.event(evAbs, absMTSlot, pointer)
	switch kind {
	case touch.Down:
		t.nextID++
		t.event(evAbs, absMTTrackingID, t.nextID)
		if len(t.down) == 0 {
			t.event(evKey, btnTouch, 1)
		}
		t.down[pointer] = true
		t.event(evAbs, absMTPositionX, x)
		t.event(evAbs, absMTPositionY, y)
	case touch.Move:
		t.event(evAbs, absMTPositionX, x)
		t.event(evAbs, absMTPositionY, y)
	case touch.Up:
		t.event(evAbs, absMTTrackingID, -1)
		delete(t.down, pointer)
		if len(t.down) == 0 {
			t.event(evKey, btnTouch, 0)
		}
	}
	t.event(evSyn, synReport, 0)
	return device.Wrap("touch", t.w.Flush())
}

// Tap uses `input tap`, which goes through the input manager rather than
// the raw device and needs no slot.
func (t *Transport) Tap(x, y int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return device.Wrap("tap", ErrNotConnected)
	}
	fmt.Fprintf(t.w, "input tap %d %d\n", x, y)
	return device.Wrap("tap", t.w.Flush())
}

func (t *Transport) Close() error {
	t.mu.Lock()
	stdin := t.stdin
	t.stdin, t.w = nil, nil
	t.mu.Unlock()
	var errs []error
	if stdin != nil {
		fmt.Fprintln(stdin, "exit")
		errs = append(errs, stdin.Close())
	}
	if t.cfg.Backend != nil {
		errs = append(errs, t.cfg.Backend.Close())
	}
	return errors.Join(errs...)
}

var _ device.Transport = (*Transport)(nil)
