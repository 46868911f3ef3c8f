package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/timeline"
)

// ErrNoBaseline is returned when no earliest chart instant is known. The
// session is cancelled before any transport call.
var ErrNoBaseline = errors.New("no baseline: the chart has no playable note instant")

// Options tunes timing. Zero fields take the DefaultOptions value except
// for the delays, where zero means no pause.
type Options struct {
	// PollInterval is the sleep between polls while no group is due.
	PollInterval time.Duration
	// JitterTolerance is the lateness above which a dispatch is reported.
	JitterTolerance time.Duration
	// ConfirmPause separates the operator confirmation from the
	// acknowledgement tap.
	ConfirmPause time.Duration
	// SettleDelay separates the acknowledgement tap from the start instant.
	SettleDelay time.Duration
	// SkipAckTap disables the acknowledgement tap.
	SkipAckTap bool
}

// DefaultOptions mirrors the operator defaults: 1ms polls, 5ms tolerance,
// a half second pause after confirmation and 6s to settle.
func DefaultOptions() Options {
	return Options{
		PollInterval:    time.Millisecond,
		JitterTolerance: 5 * time.Millisecond,
		ConfirmPause:    500 * time.Millisecond,
		SettleDelay:     6 * time.Second,
	}
}

// Dispatch describes one dispatched group.
type Dispatch struct {
	SessionID string
	Index     int
	InstantMS int64
	Actions   int
	// Late is how far past its instant the group was sent.
	Late time.Duration
	// Offset is the calibration offset read on the dispatching poll.
	Offset time.Duration
}

// Hooks are called on the scheduler goroutine; they must not block.
type Hooks struct {
	OnState    func(id string, state State, reason Reason)
	OnDispatch func(Dispatch)
}

// Config wires a Scheduler.
type Config struct {
	Transport device.Transport
	Timeline  *timeline.Timeline
	Baseline  timeline.Baseline
	// Channel is the calibration channel of the session. When nil the
	// offset stays at zero.
	Channel *calibrate.Channel
	// Session lets callers observe the session before Run. A new one is
	// created when nil.
	Session *Session
	// Confirm blocks until the operator is ready. Nil starts immediately.
	Confirm func(ctx context.Context) error
	Clock   Clock
	Log     logger.Logger
	Options Options
	Hooks   Hooks
}

// Result summarises a finished or cancelled session.
type Result struct {
	ID          string
	State       State
	Reason      Reason
	Dispatched  int
	Total       int
	BaseDelay   time.Duration
	FinalOffset time.Duration
	MaxLate     time.Duration
	LateGroups  int
	Started     time.Time
	Ended       time.Time
}

// Status is a point-in-time view of a running session, safe to take from
// any goroutine.
type Status struct {
	ID         string
	State      State
	Dispatched int
	Total      int
	BaseDelay  time.Duration
	Offset     time.Duration
}

// Scheduler plays one timeline once.
type Scheduler struct {
	cfg     Config
	log     logger.Logger
	session *Session
	offset  *calibrate.Offset

	dispatched atomic.Int64
	ran        atomic.Bool
	mu         sync.Mutex
	baseDelay  time.Duration
}

// New validates cfg and returns a Scheduler for a new session.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Transport == nil {
		return nil, errors.New("scheduler: nil transport")
	}
	if cfg.Timeline == nil {
		return nil, errors.New("scheduler: nil timeline")
	}
	def := DefaultOptions()
	if cfg.Options.PollInterval <= 0 {
		cfg.Options.PollInterval = def.PollInterval
	}
	if cfg.Options.JitterTolerance <= 0 {
		cfg.Options.JitterTolerance = def.JitterTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Session == nil {
		cfg.Session = NewSession()
	}
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	offset := &calibrate.Offset{}
	if cfg.Channel != nil {
		offset = cfg.Channel.Offset()
	}
	return &Scheduler{
		cfg:     cfg,
		log:     logger.WithPrefix(l, "["+cfg.Session.ID()+"]"),
		session: cfg.Session,
		offset:  offset,
	}, nil
}

func (s *Scheduler) Session() *Session {
	return s.session
}

// Status may be called concurrently with Run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	bd := s.baseDelay
	s.mu.Unlock()
	return Status{
		ID:         s.session.ID(),
		State:      s.session.State(),
		Dispatched: int(s.dispatched.Load()),
		Total:      s.cfg.Timeline.Len(),
		BaseDelay:  bd,
		Offset:     s.offset.Load(),
	}
}

func (s *Scheduler) setState(to State, reason Reason) {
	if !s.session.transition(to) {
		return
	}
	if reason != ReasonNone {
		s.log.Info("session %s (%s)", to, reason)
	} else {
		s.log.Info("session %s", to)
	}
	if s.cfg.Hooks.OnState != nil {
		s.cfg.Hooks.OnState(s.session.ID(), to, reason)
	}
}

// Run drives the session to a terminal state. An operator interrupt
// (ctx cancelled) yields a cancelled result and a nil error. A transport
// failure yields a *device.TransportError; a missing baseline yields
// ErrNoBaseline. Run may be called once.
func (s *Scheduler) Run(ctx context.Context) (res *Result, err error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, errors.New("scheduler: Run called twice")
	}
	res = &Result{ID: s.session.ID(), Total: s.cfg.Timeline.Len()}
	defer func() {
		res.State = s.session.State()
		res.Dispatched = int(s.dispatched.Load())
		res.FinalOffset = s.offset.Load()
		res.Ended = s.cfg.Clock.Now()
	}()

	if !s.cfg.Baseline.Valid {
		res.Reason = ReasonPrecondition
		s.setState(StateCancelled, res.Reason)
		return res, ErrNoBaseline
	}
	baseDelay := s.cfg.Baseline.Delay()
	s.mu.Lock()
	s.baseDelay = baseDelay
	s.mu.Unlock()
	res.BaseDelay = baseDelay

	// cancel turns an in-progress phase into a terminal result
	cancel := func(reason Reason, cause error) (*Result, error) {
		res.Reason = reason
		s.setState(StateCancelled, reason)
		if reason == ReasonInterrupted {
			return res, nil
		}
		return res, cause
	}

	size, err := s.cfg.Transport.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancel(ReasonInterrupted, nil)
		}
		return cancel(ReasonTransport, device.Wrap("connect", err))
	}
	s.log.Debug("connected, screen %s, base delay %s", size, baseDelay)

	cursor := s.cfg.Timeline.Cursor()
	s.offset.Reset()
	if ch := s.cfg.Channel; ch != nil {
		chCtx, stop := context.WithCancel(ctx)
		go func() {
			if err := ch.Run(chCtx, s.session); err != nil {
				s.log.Warning("calibration channel: %v", err)
			}
		}()
		defer func() {
			stop()
			<-ch.Done()
		}()
	}

	if s.cfg.Confirm != nil {
		if err := s.cfg.Confirm(ctx); err != nil {
			if ctx.Err() != nil {
				return cancel(ReasonInterrupted, nil)
			}
			return cancel(ReasonPrecondition, err)
		}
	}
	if err := s.cfg.Clock.Sleep(ctx, s.cfg.Options.ConfirmPause); err != nil {
		return cancel(ReasonInterrupted, nil)
	}
	if !s.cfg.Options.SkipAckTap {
		c := size.Center()
		if err := s.cfg.Transport.Tap(c.X, c.Y); err != nil {
			return cancel(ReasonTransport, device.Wrap("tap", err))
		}
	}
	if err := s.cfg.Clock.Sleep(ctx, s.cfg.Options.SettleDelay); err != nil {
		return cancel(ReasonInterrupted, nil)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	start := s.cfg.Clock.Now()
	res.Started = start
	s.setState(StateActive, ReasonNone)

	poll := s.cfg.Options.PollInterval
	for !cursor.Done() {
		if ctx.Err() != nil {
			return cancel(ReasonInterrupted, nil)
		}
		offset := s.offset.Load()
		now := s.cfg.Clock.Now().Sub(start) - baseDelay + offset
		g := cursor.Current()
		due := time.Duration(g.InstantMS) * time.Millisecond
		if now < due {
			if err := s.cfg.Clock.Sleep(ctx, poll); err != nil {
				return cancel(ReasonInterrupted, nil)
			}
			continue
		}
		for _, a := range g.Actions {
			if err := s.cfg.Transport.Touch(a.Position.X, a.Position.Y, a.Kind, a.Pointer); err != nil {
				s.log.Error("group %d at %dms: %v", cursor.Position(), g.InstantMS, err)
				return cancel(ReasonTransport, device.Wrap("touch", err))
			}
		}
		late := now - due
		if late > res.MaxLate {
			res.MaxLate = late
		}
		if late > s.cfg.Options.JitterTolerance {
			res.LateGroups++
			s.log.Warning("group %d at %dms late by %s", cursor.Position(), g.InstantMS, late)
		}
		s.dispatched.Add(1)
		if s.cfg.Hooks.OnDispatch != nil {
			s.cfg.Hooks.OnDispatch(Dispatch{
				SessionID: s.session.ID(),
				Index:     cursor.Position(),
				InstantMS: g.InstantMS,
				Actions:   len(g.Actions),
				Late:      late,
				Offset:    offset,
			})
		}
		cursor.Advance()
	}
	s.setState(StateFinished, ReasonNone)
	return res, nil
}
