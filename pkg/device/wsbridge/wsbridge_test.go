package wsbridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/touch"
)

// companion is a fake on-device injector.
type companion struct {
	frames   chan Frame
	reply    Frame
	authz    chan string
	sendNext chan Frame
}

func newCompanion(reply Frame) *companion {
	return &companion{
		frames:   make(chan Frame, 256),
		reply:    reply,
		authz:    make(chan string, 1),
		sendNext: make(chan Frame, 1),
	}
}

func (c *companion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.authz <- r.Header.Get("Authorization")
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	var hello Frame
	if err := wsjson.Read(ctx, conn, &hello); err != nil || hello.Type != TypeHello {
		return
	}
	if err := wsjson.Write(ctx, conn, c.reply); err != nil {
		return
	}
	go func() {
		for f := range c.sendNext {
			_ = wsjson.Write(ctx, conn, f)
		}
	}()
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return
		}
		c.frames <- f
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func next(t *testing.T, c *companion) Frame {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestConnectAndSend(t *testing.T) {
	c := newCompanion(Frame{Type: TypeScreen, Width: 2400, Height: 1080})
	srv := httptest.NewServer(c)
	defer srv.Close()

	tr := New(Config{URL: wsURL(srv), Token: "tok"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	size, err := tr.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()
	if size != (device.Size{Width: 2400, Height: 1080}) {
		t.Fatalf("unexpected size %v", size)
	}
	if got := <-c.authz; got != "Bearer tok" {
		t.Errorf("unexpected Authorization %q", got)
	}

	if err := tr.Touch(100, 200, touch.Down, 0); err != nil {
		t.Fatal(err)
	}
	if err := tr.Touch(120, 220, touch.Move, 0); err != nil {
		t.Fatal(err)
	}
	if err := tr.Tap(1200, 540); err != nil {
		t.Fatal(err)
	}

	f := next(t, c)
	if f.Type != TypeTouch || f.Kind != "down" || f.X != 100 || f.Y != 200 || f.Pointer != 0 {
		t.Errorf("unexpected first frame %+v", f)
	}
	if f = next(t, c); f.Kind != "move" || f.X != 120 {
		t.Errorf("unexpected second frame %+v", f)
	}
	if f = next(t, c); f.Type != TypeTap || f.X != 1200 || f.Y != 540 {
		t.Errorf("unexpected tap frame %+v", f)
	}
}

func TestCompanionErrorFailsNextPrimitive(t *testing.T) {
	c := newCompanion(Frame{Type: TypeScreen, Width: 10, Height: 10})
	srv := httptest.NewServer(c)
	defer srv.Close()

	tr := New(Config{URL: wsURL(srv)})
	if _, err := tr.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	c.sendNext <- Frame{Type: TypeError, Message: "injector lost permission"}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := tr.Touch(1, 1, touch.Down, 0)
		if err != nil {
			var te *device.TransportError
			if !errors.As(err, &te) || !strings.Contains(err.Error(), "lost permission") {
				t.Fatalf("unexpected error %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("companion error never surfaced")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandshakeRejected(t *testing.T) {
	c := newCompanion(Frame{Type: TypeError, Message: "busy"})
	srv := httptest.NewServer(c)
	defer srv.Close()

	_, err := New(Config{URL: wsURL(srv)}).Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "busy") {
		t.Fatalf("expected companion error, got %v", err)
	}

	c = newCompanion(Frame{Type: TypeScreen})
	srv2 := httptest.NewServer(c)
	defer srv2.Close()
	if _, err := New(Config{URL: wsURL(srv2)}).Connect(context.Background()); err == nil {
		t.Fatal("expected error for a screen frame without size")
	}
}

func TestNotConnected(t *testing.T) {
	tr := New(Config{URL: "ws://127.0.0.1:1"})
	if err := tr.Tap(1, 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close on unconnected transport: %v", err)
	}
}
