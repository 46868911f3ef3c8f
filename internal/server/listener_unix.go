//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/autotap/autotap/common"
)

// listenLocal creates the unix socket of the local endpoint. A stale socket
// file is removed; a socket another process still answers on is an error.
func (s *Server) listenLocal() (net.Listener, error) {
	path := common.SocketPath()
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return nil, fmt.Errorf("another autotap session is serving %s", path)
	}
	_ = os.Remove(path)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		s.log.Warning("chmod %s: %v", path, err)
	}
	return l, nil
}

func (s *Server) cleanupLocal() {
	path := common.SocketPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warning("remove %s: %v", path, err)
	}
}
