// Package server exposes a playing session over JSON-RPC 2.0: a local
// endpoint (unix socket or named pipe) for the autotap CLI, and an optional
// network endpoint (HTTP and WebSocket) guarded by a bearer token.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/internal/scheduler"
	"github.com/autotap/autotap/pkg/logger"
)

// Session is the status side of a playing session.
type Session interface {
	Status() scheduler.Status
}

// Calibrator applies remote calibration commands.
type Calibrator interface {
	Submit(ctx context.Context, cmd calibrate.Command) (time.Duration, error)
	Step() time.Duration
}

// Config configures a Server.
type Config struct {
	Version   string
	Commit    string
	BuildType string

	// Listen is the host:port of the network endpoint. Empty disables it.
	Listen string
	// Token is the bearer token of the network endpoint. The network
	// endpoint rejects every request when it is empty.
	Token string
	// AllowedOrigins are the CORS origins of the network endpoint.
	AllowedOrigins []string
	// MaxConns caps concurrent network connections. Zero means 16.
	MaxConns int

	Log logger.Logger
}

// Server serves the control methods of one process.
type Server struct {
	cfg      Config
	log      logger.Logger
	methods  handler.Map
	bridge   jhttp.Bridge
	notifier *Notifier

	mu      sync.RWMutex
	session Session
	calib   Calibrator

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New returns a Server with no session attached.
func New(cfg Config) *Server {
	l := cfg.Log
	if l == nil {
		l = logger.NewNopLogger()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 16
	}
	s := &Server{
		cfg:      cfg,
		log:      logger.WithPrefix(l, "[rpc]"),
		notifier: NewNotifier(l),
	}
	s.methods = s.methodMap()
	s.bridge = jhttp.NewBridge(s.methods, nil)
	return s
}

// Attach binds the running session. Methods called before Attach fail
// with the no-session error.
func (s *Server) Attach(sess Session, c Calibrator) {
	s.mu.Lock()
	s.session = sess
	s.calib = c
	s.mu.Unlock()
}

func (s *Server) attached() (Session, Calibrator) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.calib
}

// Notifier returns the push notifier shared by all connections.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Hooks returns scheduler hooks that push session.state and
// session.dispatch notifications.
func (s *Server) Hooks() scheduler.Hooks {
	return scheduler.Hooks{
		OnState: func(id string, state scheduler.State, reason scheduler.Reason) {
			s.notifier.Publish(methodSessionState, StateNotification{
				Session: id,
				State:   state.String(),
				Reason:  reason.String(),
			})
		},
		OnDispatch: func(d scheduler.Dispatch) {
			s.notifier.Publish(methodSessionDispatch, DispatchNotification{
				Session:   d.SessionID,
				Index:     d.Index,
				InstantMS: d.InstantMS,
				Actions:   d.Actions,
				LateMS:    float64(d.Late) / float64(time.Millisecond),
				OffsetMS:  d.Offset.Milliseconds(),
			})
		},
	}
}

// serveChannel runs one jrpc2 server over ch until the peer goes away.
func (s *Server) serveChannel(ch channel.Channel) {
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{AllowPush: true}).Start(ch)
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	if err := srv.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug("connection closed: %v", err)
	}
}

// Serve accepts line-framed JSON-RPC connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveChannel(channel.Line(conn, conn))
		}()
	}
}

// Run serves the local endpoint and, when configured, the network endpoint
// until ctx is done. It returns once every listener is closed.
func (s *Server) Run(ctx context.Context) error {
	local, err := s.listenLocal()
	if err != nil {
		return err
	}
	defer s.cleanupLocal()
	s.log.Debug("local endpoint on %s", local.Addr())

	errc := make(chan error, 2)
	go func() { errc <- s.Serve(ctx, local) }()

	var hs *http.Server
	if s.cfg.Listen != "" {
		nl, err := s.ListenNetwork()
		if err != nil {
			local.Close()
			<-errc
			return err
		}
		s.log.Info("network endpoint on http://%s/jsonrpc", nl.Addr())
		hs = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := hs.Serve(nl); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	if hs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = hs.Shutdown(shutdownCtx)
		cancel()
	}
	local.Close()
	s.Close()
	return err
}

// Close stops every live connection, the notifier and the HTTP bridge.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.notifier.Close()
		s.wg.Wait()
		s.bridge.Close()
	})
}
