package calibrate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autotap/autotap/pkg/logger"
)

var (
	// ErrNotActive is returned by Submit when the session is not playing.
	ErrNotActive = errors.New("calibration is only accepted while the session is active")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("calibration channel already running")
)

// Gate reports the session transitions the channel follows. Both channels
// are closed, never sent on.
type Gate interface {
	Activated() <-chan struct{}
	Ended() <-chan struct{}
}

// Config configures a Channel.
type Config struct {
	Offset *Offset
	Step   time.Duration
	// Lines is operator input, typically LineReader.Lines. May be nil for
	// remote-only control.
	Lines <-chan Line
	Log   logger.Logger
	// OnApply, when set, is called on the channel goroutine after every
	// applied command.
	OnApply func(cmd Command, offset time.Duration)
}

type request struct {
	cmd   Command
	reply chan time.Duration
}

// Channel is the calibration goroutine of one session.
type Channel struct {
	cfg     Config
	log     logger.Logger
	submit  chan request
	done    chan struct{}
	started atomic.Bool
	active  atomic.Bool
	once    sync.Once
}

// New returns a Channel. Run must be called to start it.
func New(cfg Config) *Channel {
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	if cfg.Offset == nil {
		cfg.Offset = &Offset{}
	}
	return &Channel{
		cfg:    cfg,
		log:    l,
		submit: make(chan request),
		done:   make(chan struct{}),
	}
}

// Offset returns the offset the channel writes.
func (c *Channel) Offset() *Offset {
	return c.cfg.Offset
}

// Step returns the configured step.
func (c *Channel) Step() time.Duration {
	return c.cfg.Step
}

// Active reports whether the channel is applying commands.
func (c *Channel) Active() bool {
	return c.active.Load()
}

// Done is closed when Run returns.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Run parks until gate reports activation, then applies commands until
// the session ends or ctx is cancelled. Lines read before activation are
// discarded by their read time, including ones still in flight from the
// reader when activation is seen. End of operator input does not stop the
// channel; remote commands are still accepted until the session ends.
func (c *Channel) Run(ctx context.Context, gate Gate) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.once.Do(func() { close(c.done) })

	select {
	case <-gate.Activated():
	case <-gate.Ended():
		return nil
	case <-ctx.Done():
		return nil
	}

	since := time.Now()
	lines := c.cfg.Lines
	c.active.Store(true)
	defer c.active.Store(false)

	stale := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-gate.Ended():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				c.log.Info("operator input closed, remote calibration still accepted")
				continue
			}
			if line.At.Before(since) {
				stale++
				c.log.Debug("discarded %d line(s) typed before playback", stale)
				continue
			}
			cmd, err := ParseCommand(line.Text)
			if err != nil {
				c.log.Warning("%v; %s", err, Help)
				continue
			}
			c.apply(cmd)
		case req := <-c.submit:
			req.reply <- c.apply(req.cmd)
		}
	}
}

func (c *Channel) apply(cmd Command) time.Duration {
	v := cmd.Apply(c.cfg.Offset, c.cfg.Step)
	c.log.Info("%s", Describe(cmd, c.cfg.Step, v))
	if c.cfg.OnApply != nil {
		c.cfg.OnApply(cmd, v)
	}
	return v
}

// Submit hands cmd to the running channel and returns the resulting
// offset. It fails with ErrNotActive unless the session is active.
func (c *Channel) Submit(ctx context.Context, cmd Command) (time.Duration, error) {
	if cmd < Advance || cmd > Reset {
		return 0, ErrUnknownCommand
	}
	if !c.Active() {
		return 0, ErrNotActive
	}
	req := request{cmd: cmd, reply: make(chan time.Duration, 1)}
	select {
	case c.submit <- req:
	case <-c.done:
		return 0, ErrNotActive
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.reply, nil
}
