package scheduler

import (
	"fmt"
	"sync"

	"github.com/rs/xid"
)

// State is the lifecycle phase of a Session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// Reason explains a cancelled session.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInterrupted
	ReasonTransport
	ReasonPrecondition
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonInterrupted:
		return "interrupted"
	case ReasonTransport:
		return "transport"
	case ReasonPrecondition:
		return "precondition"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Session is the observable state of one playback. Only the scheduler
// changes it; other goroutines wait on Activated and Ended or read State.
type Session struct {
	id        string
	mu        sync.RWMutex
	state     State
	activated chan struct{}
	ended     chan struct{}
}

// NewSession returns an idle session with a fresh id.
func NewSession() *Session {
	return &Session{
		id:        xid.New().String(),
		activated: make(chan struct{}),
		ended:     make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Activated is closed on the transition to active.
func (s *Session) Activated() <-chan struct{} {
	return s.activated
}

// Ended is closed on the transition to a terminal state.
func (s *Session) Ended() <-chan struct{} {
	return s.ended
}

// transition applies idle->active, active->finished or
// idle/active->cancelled and reports whether it happened.
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.state
	switch {
	case from == StateIdle && to == StateActive:
		close(s.activated)
	case from == StateActive && to == StateFinished,
		!from.Terminal() && to == StateCancelled:
		close(s.ended)
	default:
		return false
	}
	s.state = to
	return true
}
