// Package device defines the transport that delivers touch primitives to a
// touch-receiving surface, and an in-memory Recorder used for dry runs and
// tests. Concrete transports live in the subpackages.
package device

import (
	"context"
	"fmt"

	"github.com/autotap/autotap/pkg/touch"
)

// Size is the target screen size in device pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Center is the middle pixel of the screen.
func (s Size) Center() touch.Point {
	return touch.Point{X: s.Width / 2, Y: s.Height / 2}
}

// Transport delivers primitives in the order they are issued. Calls are
// made from a single goroutine; implementations need not be safe for
// concurrent use. A returned error means the primitive may not have been
// delivered and the connection should be considered lost.
type Transport interface {
	// Connect establishes or verifies the session and reports the screen size.
	Connect(ctx context.Context) (Size, error)
	// Tap performs a down then up at (x, y).
	Tap(x, y int) error
	// Touch sends one primitive for one pointer slot.
	Touch(x, y int, kind touch.Kind, pointer int) error
	// Close tears the session down.
	Close() error
}

// TransportError wraps a failure of a single transport operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *TransportError for op, or nil when err is nil.
// Errors that already are transport errors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TransportError); ok {
		return te
	}
	return &TransportError{Op: op, Err: err}
}
