// Package rt nudges the operating system towards lower scheduling latency
// for the duration of a playback session.
package rt

import "github.com/autotap/autotap/pkg/logger"

// Boost raises the process priority and, where the platform needs it, the
// timer resolution. Failures are logged and otherwise ignored. The
// returned function undoes what was changed.
func Boost(l logger.Logger) (restore func()) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return boost(l)
}
