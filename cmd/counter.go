package cmd

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
)

// GroupCounter counts dispatched groups without touching the bar on the
// dispatching goroutine. A worker copies the count to the bar every
// refresh.
type GroupCounter struct {
	ticker *time.Ticker
	n      atomic.Int64
	bar    *mpb.Bar
	mu     sync.Mutex

	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewGroupCounter(refreshRate time.Duration) *GroupCounter {
	return &GroupCounter{
		ticker: time.NewTicker(refreshRate),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *GroupCounter) SetBar(bar *mpb.Bar) {
	c.mu.Lock()
	c.bar = bar
	c.mu.Unlock()
}

func (c *GroupCounter) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.worker()
	}
}

func (c *GroupCounter) Increment() {
	c.n.Add(1)
}

func (c *GroupCounter) Count() int64 {
	return c.n.Load()
}

// Stop ends the worker and copies the final count to the bar.
func (c *GroupCounter) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.stop)
		if c.started.Load() {
			<-c.done
		}
		c.flush()
	})
}

func (c *GroupCounter) worker() {
	defer close(c.done)
	for {
		select {
		case <-c.ticker.C:
			c.flush()
		case <-c.stop:
			return
		}
	}
}

func (c *GroupCounter) flush() {
	c.mu.Lock()
	bar := c.bar
	c.mu.Unlock()
	if bar == nil {
		return
	}
	if n := c.n.Load(); n != bar.Current() {
		bar.SetCurrent(n)
	}
}
