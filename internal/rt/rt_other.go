//go:build !unix && !windows

package rt

import "github.com/autotap/autotap/pkg/logger"

func boost(l logger.Logger) func() {
	l.Debug("no scheduling boost on this platform")
	return func() {}
}
