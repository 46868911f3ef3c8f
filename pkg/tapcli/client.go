// Package tapcli is the client of the local control endpoint of a running
// autotap session.
package tapcli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"

	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/internal/server"
)

// ErrNoSession is returned when the endpoint has no session attached yet.
var ErrNoSession = errors.New("no session attached")

// Options configures push notification callbacks. They run on the client
// goroutine and must not block.
type Options struct {
	OnState    func(server.StateNotification)
	OnDispatch func(server.DispatchNotification)
}

// Client talks JSON-RPC to the local endpoint.
type Client struct {
	conn net.Conn
	rpc  *jrpc2.Client
}

// Dial connects to the local endpoint of the running session.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("no running autotap session: %w", err)
	}
	return NewClient(conn, opts), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts Options) *Client {
	copts := &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			switch req.Method() {
			case "session.state":
				var n server.StateNotification
				if opts.OnState != nil && req.UnmarshalParams(&n) == nil {
					opts.OnState(n)
				}
			case "session.dispatch":
				var n server.DispatchNotification
				if opts.OnDispatch != nil && req.UnmarshalParams(&n) == nil {
					opts.OnDispatch(n)
				}
			}
		},
	}
	return &Client{
		conn: conn,
		rpc:  jrpc2.NewClient(channel.Line(conn, conn), copts),
	}
}

func (c *Client) call(ctx context.Context, method string, result any) error {
	err := c.rpc.CallResult(ctx, method, nil, result)
	var e *jrpc2.Error
	if errors.As(err, &e) {
		switch e.Code {
		case -32010:
			return calibrate.ErrNotActive
		case -32011:
			return ErrNoSession
		}
	}
	return err
}

func (c *Client) Version(ctx context.Context) (*server.VersionResult, error) {
	var v server.VersionResult
	if err := c.call(ctx, "system.getVersion", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Status(ctx context.Context) (*server.StatusResult, error) {
	var st server.StatusResult
	if err := c.call(ctx, "session.status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Calibrate sends one calibration command. Outside an active session it
// fails with calibrate.ErrNotActive.
func (c *Client) Calibrate(ctx context.Context, cmd calibrate.Command) (*server.CalibrationResult, error) {
	var method string
	switch cmd {
	case calibrate.Advance:
		method = "calibration.advance"
	case calibrate.Retreat:
		method = "calibration.retreat"
	case calibrate.Reset:
		method = "calibration.reset"
	default:
		return nil, calibrate.ErrUnknownCommand
	}
	var res server.CalibrationResult
	if err := c.call(ctx, method, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
