package calibrate

import (
	"sync"
	"time"
)

// Offset is a signed clock correction guarded by a mutex. The zero value
// is a zero offset ready for use.
type Offset struct {
	mu sync.Mutex
	v  time.Duration
}

// Load returns the current value.
func (o *Offset) Load() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Advance adds step and returns the new value. A positive offset moves the
// playhead forward, so pending groups fire earlier.
func (o *Offset) Advance(step time.Duration) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v += step
	return o.v
}

// Retreat subtracts step and returns the new value.
func (o *Offset) Retreat(step time.Duration) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v -= step
	return o.v
}

// Reset sets the offset to exactly zero.
func (o *Offset) Reset() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = 0
	return 0
}
