//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/autotap/autotap/common"
)

// pipeSecurityDescriptor grants full control to SYSTEM, Administrators and
// the creator owner only.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

func (s *Server) listenLocal() (net.Listener, error) {
	path := common.PipePath()
	l, err := winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
	})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return l, nil
}

func (s *Server) cleanupLocal() {}
