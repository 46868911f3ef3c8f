package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/touch"
)

// ErrClosed is returned by a Recorder used after Close.
var ErrClosed = errors.New("transport closed")

// Event is one primitive seen by a Recorder. Taps are recorded with Tap set
// and Kind left at its zero value.
type Event struct {
	At      time.Time
	Tap     bool
	Kind    touch.Kind
	Pointer int
	X, Y    int
}

// Recorder is a Transport that keeps every primitive in memory. It backs
// --dry-run and is the transport used in tests. It is safe to read Events
// while another goroutine issues primitives.
type Recorder struct {
	// Size is reported by Connect.
	Size Size
	// Now stamps events; defaults to time.Now.
	Now func() time.Time
	// Log, when set, echoes every primitive at debug level.
	Log logger.Logger
	// FailAfter makes the primitive with this 1-based index, and every one
	// after it, fail. Zero disables.
	FailAfter int
	// ConnectErr is returned by Connect when set.
	ConnectErr error

	mu        sync.Mutex
	events    []Event
	connected int
	calls     int
	closed    bool
}

// NewRecorder returns a Recorder reporting the given screen size.
func NewRecorder(size Size, l logger.Logger) *Recorder {
	return &Recorder{Size: size, Log: l}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) Connect(ctx context.Context) (Size, error) {
	if err := ctx.Err(); err != nil {
		return Size{}, Wrap("connect", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
	if r.ConnectErr != nil {
		return Size{}, Wrap("connect", r.ConnectErr)
	}
	return r.Size, nil
}

func (r *Recorder) record(op string, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Wrap(op, ErrClosed)
	}
	r.calls++
	if r.FailAfter > 0 && r.calls >= r.FailAfter {
		return Wrap(op, errors.New("injected failure"))
	}
	e.At = r.now()
	r.events = append(r.events, e)
	if r.Log != nil {
		if e.Tap {
			r.Log.Debug("tap (%d,%d)", e.X, e.Y)
		} else {
			r.Log.Debug("touch %s slot%d (%d,%d)", e.Kind, e.Pointer, e.X, e.Y)
		}
	}
	return nil
}

func (r *Recorder) Tap(x, y int) error {
	return r.record("tap", Event{Tap: true, X: x, Y: y})
}

func (r *Recorder) Touch(x, y int, kind touch.Kind, pointer int) error {
	return r.record("touch", Event{Kind: kind, Pointer: pointer, X: x, Y: y})
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Touches returns the recorded touch primitives, taps excluded.
func (r *Recorder) Touches() []Event {
	var out []Event
	for _, e := range r.Events() {
		if !e.Tap {
			out = append(out, e)
		}
	}
	return out
}

// Connects is the number of Connect calls.
func (r *Recorder) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Calls is the number of Tap and Touch calls, failed ones included.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var _ Transport = (*Recorder)(nil)
