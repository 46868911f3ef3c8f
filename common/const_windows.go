//go:build windows

package common

import (
	"os"
	"strings"
)

// DefaultPipeName is the default name for the Windows named pipe.
const DefaultPipeName = "autotap"

const pipePrefix = `\\.\pipe\`

// DefaultPipePath returns the full Windows named pipe path.
func DefaultPipePath() string {
	return pipePrefix + DefaultPipeName
}

// PipePath honours AUTOTAP_PIPE_NAME, which may be a bare name or a full
// \\.\pipe\ path.
func PipePath() string {
	if name := os.Getenv(PipeNameEnv); name != "" {
		if strings.HasPrefix(name, pipePrefix) {
			return name
		}
		return pipePrefix + name
	}
	return DefaultPipePath()
}

// LocalEndpoint is the address the local control endpoint listens on.
func LocalEndpoint() string {
	return PipePath()
}
