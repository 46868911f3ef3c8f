package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/touch"
)

type bufCloser struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	closed bool
}

func (b *bufCloser) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.writes++
	return b.buf.Write(p)
}

func (b *bufCloser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *bufCloser) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func (b *bufCloser) reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.writes = 0
	b.mu.Unlock()
}

type fakeBackend struct {
	sizeOut  string
	runErr   error
	stdin    *bufCloser
	ran      []string
	closed   bool
	shellErr error
}

func (f *fakeBackend) Run(ctx context.Context, cmd string) ([]byte, error) {
	f.ran = append(f.ran, cmd)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return []byte(f.sizeOut), nil
}

func (f *fakeBackend) Shell(ctx context.Context) (io.WriteCloser, error) {
	if f.shellErr != nil {
		return nil, f.shellErr
	}
	f.stdin = &bufCloser{}
	return f.stdin, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func connected(t *testing.T, cfg Config) (*Transport, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{sizeOut: "Physical size: 1080x2400\n"}
	cfg.Backend = fb
	if cfg.InputDevice == "" {
		cfg.InputDevice = "/dev/input/event2"
	}
	tr := New(cfg)
	size, err := tr.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if size != (device.Size{Width: 1080, Height: 2400}) {
		t.Fatalf("unexpected size %v", size)
	}
	return tr, fb
}

func TestParseWMSize(t *testing.T) {
	s, err := ParseWMSize([]byte("Physical size: 1440x3120\nOverride size: 1080x2340\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s != (device.Size{Width: 1080, Height: 2340}) {
		t.Errorf("override should win, got %v", s)
	}
	if _, err := ParseWMSize([]byte("error: no devices/emulators found")); err == nil {
		t.Error("expected error for unexpected output")
	}
}

func TestTouchLifecycle(t *testing.T) {
	tr, fb := connected(t, Config{})

	if err := tr.Touch(100, 200, touch.Down, 0); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"sendevent /dev/input/event2 3 47 0",
		"sendevent /dev/input/event2 3 57 1",
		"sendevent /dev/input/event2 1 330 1",
		"sendevent /dev/input/event2 3 53 100",
		"sendevent /dev/input/event2 3 54 200",
		"sendevent /dev/input/event2 0 0 0",
	}
	assertLines(t, fb.stdin.lines(), want)
	if fb.stdin.writes != 1 {
		t.Errorf("a primitive should be a single write, got %d", fb.stdin.writes)
	}

	fb.stdin.reset()
	if err := tr.Touch(110, 210, touch.Move, 0); err != nil {
		t.Fatal(err)
	}
	assertLines(t, fb.stdin.lines(), []string{
		"sendevent /dev/input/event2 3 47 0",
		"sendevent /dev/input/event2 3 53 110",
		"sendevent /dev/input/event2 3 54 210",
		"sendevent /dev/input/event2 0 0 0",
	})

	fb.stdin.reset()
	if err := tr.Touch(110, 210, touch.Up, 0); err != nil {
		t.Fatal(err)
	}
	assertLines(t, fb.stdin.lines(), []string{
		"sendevent /dev/input/event2 3 47 0",
		"sendevent /dev/input/event2 3 57 -1",
		"sendevent /dev/input/event2 1 330 0",
		"sendevent /dev/input/event2 0 0 0",
	})
}

func TestBtnTouchOnlyForFirstAndLastPointer(t *testing.T) {
	tr, fb := connected(t, Config{})
	_ = tr.Touch(1, 1, touch.Down, 0)
	fb.stdin.reset()

	_ = tr.Touch(2, 2, touch.Down, 1)
	if strings.Contains(strings.Join(fb.stdin.lines(), "\n"), " 330 ") {
		t.Error("second pointer down must not repeat BTN_TOUCH")
	}
	fb.stdin.reset()
	_ = tr.Touch(2, 2, touch.Up, 1)
	if strings.Contains(strings.Join(fb.stdin.lines(), "\n"), " 330 ") {
		t.Error("BTN_TOUCH must stay down while pointer 0 is held")
	}
	fb.stdin.reset()
	_ = tr.Touch(1, 1, touch.Up, 0)
	if !strings.Contains(strings.Join(fb.stdin.lines(), "\n"), "1 330 0") {
		t.Error("last pointer up should release BTN_TOUCH")
	}
}

func TestAxisScaling(t *testing.T) {
	tr, fb := connected(t, Config{AxisMaxX: 4320, AxisMaxY: 9600})
	if err := tr.Touch(540, 1200, touch.Down, 0); err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(fb.stdin.lines(), "\n")
	if !strings.Contains(joined, "3 53 2160") || !strings.Contains(joined, "3 54 4800") {
		t.Errorf("coordinates not scaled:\n%s", joined)
	}
}

func TestTapAndClose(t *testing.T) {
	tr, fb := connected(t, Config{})
	if err := tr.Tap(540, 1200); err != nil {
		t.Fatal(err)
	}
	assertLines(t, fb.stdin.lines(), []string{"input tap 540 1200"})
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if !fb.closed || !fb.stdin.closed {
		t.Error("Close should end the shell and the backend")
	}
	var te *device.TransportError
	if err := tr.Tap(1, 1); !errors.As(err, &te) || !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected not connected transport error, got %v", err)
	}
}

func TestConnectErrors(t *testing.T) {
	var te *device.TransportError

	tr := New(Config{Backend: &fakeBackend{runErr: errors.New("device offline")}, InputDevice: "/dev/input/event1"})
	if _, err := tr.Connect(context.Background()); !errors.As(err, &te) {
		t.Errorf("expected transport error, got %v", err)
	}

	tr = New(Config{Backend: &fakeBackend{sizeOut: "Physical size: 10x10"}})
	if _, err := tr.Connect(context.Background()); err == nil {
		t.Error("expected error without an input device")
	}

	if err := New(Config{}).Touch(1, 1, touch.Down, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestUnknownKindWritesNothing(t *testing.T) {
	tr, fb := connected(t, Config{})
	if err := tr.Touch(1, 1, touch.Kind(7), 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if fb.stdin.writes != 0 {
		t.Error("nothing should reach the shell")
	}
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func fakeExecCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "AUTOTAP_WANT_HELPER_PROCESS=1")
	return cmd
}

// TestHelperProcess stands in for adb when execCommand is faked.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("AUTOTAP_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) > 0 && args[len(args)-1] == "wm size" {
		fmt.Println("Physical size: 1600x720")
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "error: device not found")
	os.Exit(1)
}

func TestADBRun(t *testing.T) {
	execCommand = fakeExecCommand
	defer func() { execCommand = exec.CommandContext }()

	a := &ADB{Serial: "emulator-5554"}
	out, err := a.Run(context.Background(), "wm size")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	size, err := ParseWMSize(out)
	if err != nil || size != (device.Size{Width: 1600, Height: 720}) {
		t.Fatalf("size %v, %v", size, err)
	}

	_, err = a.Run(context.Background(), "getprop")
	if err == nil || !strings.Contains(err.Error(), "device not found") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestADBArgs(t *testing.T) {
	path, args := (&ADB{Serial: "abc"}).args("shell", "wm size")
	if path != "adb" || strings.Join(args, " ") != "-s abc shell wm size" {
		t.Errorf("unexpected command %s %q", path, args)
	}
	path, args = (&ADB{Path: "/opt/adb"}).args("shell")
	if path != "/opt/adb" || len(args) != 1 {
		t.Errorf("unexpected command %s %q", path, args)
	}
}
