package device

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

func TestTransportError(t *testing.T) {
	err := Wrap("touch", io.ErrUnexpectedEOF)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if te.Op != "touch" {
		t.Errorf("unexpected op %q", te.Op)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("TransportError should unwrap to the cause")
	}
	if err.Error() != "transport touch: unexpected EOF" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if Wrap("tap", err) != err {
		t.Error("Wrap should not double wrap")
	}
	if Wrap("tap", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestSizeCenter(t *testing.T) {
	s := Size{Width: 2560, Height: 1600}
	if c := s.Center(); c != (touch.Point{X: 1280, Y: 800}) {
		t.Errorf("unexpected center %v", c)
	}
	if s.String() != "2560x1600" {
		t.Errorf("unexpected string %q", s.String())
	}
}

func TestRecorderOrder(t *testing.T) {
	base := time.Unix(100, 0)
	tick := 0
	mock := logger.NewMockLogger()
	r := NewRecorder(Size{Width: 100, Height: 50}, mock)
	r.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	size, err := r.Connect(context.Background())
	if err != nil || size != (Size{Width: 100, Height: 50}) {
		t.Fatalf("Connect = %v, %v", size, err)
	}
	if err := r.Tap(50, 25); err != nil {
		t.Fatal(err)
	}
	if err := r.Touch(1, 2, touch.Down, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.Touch(1, 2, touch.Up, 0); err != nil {
		t.Fatal(err)
	}

	events := r.Events()
	if len(events) != 3 || !events[0].Tap {
		t.Fatalf("unexpected events %+v", events)
	}
	touches := r.Touches()
	if len(touches) != 2 || touches[0].Kind != touch.Down || touches[1].Kind != touch.Up {
		t.Fatalf("unexpected touches %+v", touches)
	}
	if !touches[0].At.Before(touches[1].At) {
		t.Error("timestamps should follow issue order")
	}
	if len(mock.DebugCalls()) != 3 {
		t.Errorf("expected 3 echoed primitives, got %q", mock.DebugCalls())
	}
}

func TestRecorderFailures(t *testing.T) {
	r := &Recorder{FailAfter: 2}
	if err := r.Touch(0, 0, touch.Down, 0); err != nil {
		t.Fatalf("first call should succeed: %v", err)
	}
	err := r.Touch(0, 0, touch.Up, 0)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(r.Events()) != 1 || r.Calls() != 2 {
		t.Errorf("events %d calls %d", len(r.Events()), r.Calls())
	}

	r = &Recorder{ConnectErr: errors.New("no device")}
	if _, err := r.Connect(context.Background()); !errors.As(err, &te) {
		t.Errorf("expected transport error from Connect, got %v", err)
	}

	r = &Recorder{}
	_ = r.Close()
	if err := r.Tap(1, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
