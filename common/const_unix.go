//go:build !windows

package common

import (
	"os"
	"path/filepath"
)

// DefaultSocketName is the socket file created under the temp directory.
const DefaultSocketName = "autotap.sock"

// SocketPath returns the unix socket of the control endpoint, honouring
// AUTOTAP_SOCKET_PATH.
func SocketPath() string {
	if path := os.Getenv(SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), DefaultSocketName)
}

// LocalEndpoint is the address the local control endpoint listens on.
func LocalEndpoint() string {
	return SocketPath()
}
