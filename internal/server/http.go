package server

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"
)

// Handler returns the network endpoint: POST /jsonrpc through the jhttp
// bridge and GET /jsonrpc/ws for WebSocket clients, both token guarded and
// wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/jsonrpc", requireToken(s.cfg.Token, s.bridge)).Methods(http.MethodPost)
	r.Handle("/jsonrpc/ws", requireToken(s.cfg.Token, http.HandlerFunc(s.handleWS))).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// ListenNetwork opens the network endpoint listener, capped at MaxConns
// concurrent connections.
func (s *Server) ListenNetwork() (net.Listener, error) {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, err
	}
	return netutil.LimitListener(l, s.cfg.MaxConns), nil
}
