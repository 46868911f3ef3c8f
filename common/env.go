// Package common holds the environment names and local endpoint paths
// shared by the autotap control server and its clients.
package common

import "time"

// Environment variable names for configuration.
const (
	// ConfigEnv overrides the configuration file location.
	ConfigEnv = "AUTOTAP_CONFIG"

	// SocketPathEnv overrides the unix socket of the control endpoint.
	SocketPathEnv = "AUTOTAP_SOCKET_PATH"

	// PipeNameEnv overrides the windows named pipe of the control endpoint.
	PipeNameEnv = "AUTOTAP_PIPE_NAME"

	// DebugEnv enables debug logging when set to 1.
	DebugEnv = "AUTOTAP_DEBUG"
)

// DefaultDialTimeout bounds connecting to the local control endpoint.
const DefaultDialTimeout = 2 * time.Second
