// Package wsbridge sends touch primitives as JSON frames over a WebSocket
// to an injector companion running on the device.
//
// On connect the client sends a hello frame and expects a screen frame
// back. After that every primitive is one text frame; the companion only
// writes back to report an error, which fails the next primitive.
package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

// ProtocolVersion is sent in the hello frame.
const ProtocolVersion = 1

// Frame is the single message shape used in both directions.
type Frame struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Pointer int    `json:"pointer"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Message string `json:"message,omitempty"`
}

// Frame types.
const (
	TypeHello  = "hello"
	TypeScreen = "screen"
	TypeTouch  = "touch"
	TypeTap    = "tap"
	TypeError  = "error"
)

var ErrNotConnected = errors.New("wsbridge: not connected")

// Config configures a Transport.
type Config struct {
	// URL is the companion endpoint, e.g. ws://192.168.1.20:7912/touch.
	URL string
	// Token, when set, is sent as a Bearer Authorization header.
	Token string
	Log   logger.Logger
}

// Transport implements device.Transport over a WebSocket.
type Transport struct {
	cfg Config
	log logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	peerErr error
	done    chan struct{}
}

func New(cfg Config) *Transport {
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Transport{cfg: cfg, log: l}
}

func (t *Transport) Connect(ctx context.Context) (device.Size, error) {
	var opts *websocket.DialOptions
	if t.cfg.Token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + t.cfg.Token},
		}}
	}
	conn, _, err := websocket.Dial(ctx, t.cfg.URL, opts)
	if err != nil {
		return device.Size{}, device.Wrap("connect", err)
	}
	if err := wsjson.Write(ctx, conn, Frame{Type: TypeHello, Version: ProtocolVersion}); err != nil {
		conn.Close(websocket.StatusInternalError, "hello failed")
		return device.Size{}, device.Wrap("connect", err)
	}
	var screen Frame
	if err := wsjson.Read(ctx, conn, &screen); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return device.Size{}, device.Wrap("connect", err)
	}
	switch {
	case screen.Type == TypeError:
		conn.Close(websocket.StatusNormalClosure, "")
		return device.Size{}, device.Wrap("connect", fmt.Errorf("companion: %s", screen.Message))
	case screen.Type != TypeScreen || screen.Width <= 0 || screen.Height <= 0:
		conn.Close(websocket.StatusProtocolError, "expected screen frame")
		return device.Size{}, device.Wrap("connect", fmt.Errorf("unexpected handshake frame %+v", screen))
	}

	t.mu.Lock()
	t.conn = conn
	t.peerErr = nil
	t.done = make(chan struct{})
	t.mu.Unlock()
	go t.readLoop(conn, t.done)

	size := device.Size{Width: screen.Width, Height: screen.Height}
	t.log.Info("wsbridge connected to %s, screen %s", t.cfg.URL, size)
	return size, nil
}

// readLoop records the first error the companion reports or the error
// that ends the connection.
func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var f Frame
		err := wsjson.Read(context.Background(), conn, &f)
		switch {
		case err != nil:
			t.fail(err)
			return
		case f.Type == TypeError:
			t.fail(fmt.Errorf("companion: %s", f.Message))
		}
	}
}

func (t *Transport) fail(err error) {
	t.mu.Lock()
	if t.peerErr == nil {
		t.peerErr = err
	}
	t.mu.Unlock()
}

func (t *Transport) send(op string, f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return device.Wrap(op, ErrNotConnected)
	}
	if t.peerErr != nil {
		return device.Wrap(op, t.peerErr)
	}
	return device.Wrap(op, wsjson.Write(context.Background(), t.conn, f))
}

func (t *Transport) Tap(x, y int) error {
	return t.send("tap", Frame{Type: TypeTap, X: x, Y: y})
}

func (t *Transport) Touch(x, y int, kind touch.Kind, pointer int) error {
	return t.send("touch", Frame{Type: TypeTouch, Kind: kind.String(), Pointer: pointer, X: x, Y: y})
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conn, done := t.conn, t.done
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "")
	<-done
	return err
}

var _ device.Transport = (*Transport)(nil)
