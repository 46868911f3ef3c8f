package server

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/autotap/autotap/pkg/logger"
)

const pushQueueSize = 256

type push struct {
	method string
	params any
}

// Notifier maintains the set of connected jrpc2 servers and broadcasts
// push notifications to all of them. Publish never blocks; a goroutine
// owned by the Notifier does the writes.
type Notifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	closed  bool
	log     logger.Logger

	queue chan push
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewNotifier starts the broadcast goroutine.
func NewNotifier(l logger.Logger) *Notifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	n := &Notifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     l,
		queue:   make(chan push, pushQueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *Notifier) loop() {
	defer close(n.done)
	for {
		select {
		case p := <-n.queue:
			n.Broadcast(p.method, p.params)
		case <-n.stop:
			for {
				select {
				case p := <-n.queue:
					n.Broadcast(p.method, p.params)
				default:
					return
				}
			}
		}
	}
}

// Register adds a server to the broadcast set. A server registered after
// Close is stopped right away.
func (n *Notifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		srv.Stop()
		return
	}
	n.servers[srv] = struct{}{}
	n.mu.Unlock()
}

// Unregister removes a server from the broadcast set.
func (n *Notifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Publish queues a notification. When the queue is full the notification
// is dropped with a warning.
func (n *Notifier) Publish(method string, params any) {
	select {
	case <-n.stop:
		return
	default:
	}
	select {
	case n.queue <- push{method: method, params: params}:
	default:
		n.log.Warning("push queue full, dropping %s", method)
	}
}

// Broadcast sends a notification to all registered servers synchronously.
// Servers that fail to receive are unregistered.
func (n *Notifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := srv.Notify(ctx, method, params)
		cancel()
		if err != nil {
			n.log.Debug("push %s failed: %v", method, err)
			failed = append(failed, srv)
		}
	}

	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// Count returns the number of registered servers.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// Close flushes queued notifications, then stops the broadcast goroutine
// and every registered server.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.stop)
		<-n.done
		n.mu.Lock()
		n.closed = true
		servers := n.servers
		n.servers = make(map[*jrpc2.Server]struct{})
		n.mu.Unlock()
		for srv := range servers {
			srv.Stop()
		}
	})
}
