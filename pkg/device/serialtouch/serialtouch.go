// Package serialtouch drives a microcontroller that emulates a USB
// touchscreen, over a serial line protocol:
//
//	-> SIZE?          <- SIZE <width> <height>
//	-> D <slot> <x> <y>
//	-> M <slot> <x> <y>
//	-> U <slot> <x> <y>
//	-> T <x> <y>
//
// Lines end in '\n'. Only the handshake is answered.
package serialtouch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

// DefaultBaudRate matches the reference firmware.
const DefaultBaudRate = 115200

var ErrNotConnected = errors.New("serialtouch: not connected")

// openPort is swapped in tests.
var openPort = func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Config configures a Transport.
type Config struct {
	Port     string
	BaudRate int
	Log      logger.Logger
}

// Transport implements device.Transport over a serial port.
type Transport struct {
	cfg Config
	log logger.Logger

	mu   sync.Mutex
	port io.ReadWriteCloser
}

func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Transport{cfg: cfg, log: l}
}

// Connect opens the port and performs the SIZE? handshake. ctx bounds the
// wait for the answer.
func (t *Transport) Connect(ctx context.Context) (device.Size, error) {
	port, err := openPort(t.cfg.Port, &serial.Mode{BaudRate: t.cfg.BaudRate})
	if err != nil {
		return device.Size{}, device.Wrap("connect", fmt.Errorf("open %s: %w", t.cfg.Port, err))
	}
	if p, ok := port.(serial.Port); ok {
		_ = p.ResetInputBuffer()
	}
	if _, err := io.WriteString(port, "SIZE?\n"); err != nil {
		port.Close()
		return device.Size{}, device.Wrap("connect", err)
	}

	type answer struct {
		size device.Size
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(port).ReadString('\n')
		if err != nil {
			ch <- answer{err: err}
			return
		}
		size, err := ParseSize(line)
		ch <- answer{size: size, err: err}
	}()

	select {
	case <-ctx.Done():
		// closing unblocks the reader
		port.Close()
		return device.Size{}, device.Wrap("connect", ctx.Err())
	case a := <-ch:
		if a.err != nil {
			port.Close()
			return device.Size{}, device.Wrap("connect", a.err)
		}
		t.mu.Lock()
		t.port = port
		t.mu.Unlock()
		t.log.Info("serial touch on %s at %d baud, screen %s", t.cfg.Port, t.cfg.BaudRate, a.size)
		return a.size, nil
	}
}

// ParseSize reads a "SIZE <w> <h>" answer.
func ParseSize(line string) (device.Size, error) {
	var s device.Size
	n, err := fmt.Sscanf(strings.TrimSpace(line), "SIZE %d %d", &s.Width, &s.Height)
	if err != nil || n != 2 || s.Width <= 0 || s.Height <= 0 {
		return device.Size{}, fmt.Errorf("unexpected handshake answer %q", strings.TrimSpace(line))
	}
	return s, nil
}

func (t *Transport) write(op, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return device.Wrap(op, ErrNotConnected)
	}
	_, err := io.WriteString(t.port, line)
	return device.Wrap(op, err)
}

func (t *Transport) Touch(x, y int, kind touch.Kind, pointer int) error {
	var verb string
	switch kind {
	case touch.Down:
		verb = "D"
	case touch.Move:
		verb = "M"
	case touch.Up:
		verb = "U"
	default:
		return device.Wrap("touch", fmt.Errorf("unknown kind %v", kind))
	}
	return t.write("touch", fmt.Sprintf("%s %d %d %d\n", verb, pointer, x, y))
}

func (t *Transport) Tap(x, y int) error {
	return t.write("tap", fmt.Sprintf("T %d %d\n", x, y))
}

func (t *Transport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

var _ device.Transport = (*Transport)(nil)
