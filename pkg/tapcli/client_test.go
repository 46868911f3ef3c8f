package tapcli

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/internal/scheduler"
	"github.com/autotap/autotap/internal/server"
)

type session struct{ st scheduler.Status }

func (s *session) Status() scheduler.Status { return s.st }

// serve starts srv on a loopback listener and returns a connected client.
func serve(t *testing.T, srv *server.Server, opts Options) *Client {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, l)
	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(conn, opts)
	t.Cleanup(func() {
		c.Close()
		cancel()
		srv.Close()
	})
	return c
}

func TestClientAgainstLiveChannel(t *testing.T) {
	srv := server.New(server.Config{Version: "0.3.0"})
	ch := calibrate.New(calibrate.Config{Offset: &calibrate.Offset{}, Step: 10 * time.Millisecond})
	sess := scheduler.NewSession()
	srv.Attach(&session{st: scheduler.Status{ID: sess.ID(), State: scheduler.StateIdle, Total: 4}}, ch)

	c := serve(t, srv, Options{})
	ctx := context.Background()

	v, err := c.Version(ctx)
	if err != nil || v.Version != "0.3.0" {
		t.Fatalf("Version = %+v, %v", v, err)
	}
	st, err := c.Status(ctx)
	if err != nil || st.State != "idle" || st.Total != 4 {
		t.Fatalf("Status = %+v, %v", st, err)
	}
	if _, err := c.Calibrate(ctx, calibrate.Advance); !errors.Is(err, calibrate.ErrNotActive) {
		t.Fatalf("expected ErrNotActive before activation, got %v", err)
	}
	if _, err := c.Calibrate(ctx, calibrate.Command(42)); !errors.Is(err, calibrate.ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestClientNoSession(t *testing.T) {
	c := serve(t, server.New(server.Config{}), Options{})
	if _, err := c.Status(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestClientNotifications(t *testing.T) {
	srv := server.New(server.Config{})
	states := make(chan server.StateNotification, 1)
	dispatches := make(chan server.DispatchNotification, 1)
	serve(t, srv, Options{
		OnState:    func(n server.StateNotification) { states <- n },
		OnDispatch: func(n server.DispatchNotification) { dispatches <- n },
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Notifier().Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h := srv.Hooks()
	h.OnState("cs2", scheduler.StateCancelled, scheduler.ReasonInterrupted)
	h.OnDispatch(scheduler.Dispatch{SessionID: "cs2", Index: 1, InstantMS: 250, Actions: 3})

	select {
	case n := <-states:
		if n.State != "cancelled" || n.Reason != "interrupted" {
			t.Errorf("unexpected state %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no state notification")
	}
	select {
	case n := <-dispatches:
		if n.Index != 1 || n.InstantMS != 250 || n.Actions != 3 {
			t.Errorf("unexpected dispatch %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch notification")
	}
}
