//go:build unix

package rt

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/autotap/autotap/pkg/logger"
)

// niceBoost is the priority raise requested; it needs CAP_SYS_NICE or
// root on Linux.
const niceBoost = 10

var (
	getpriority = unix.Getpriority
	setpriority = unix.Setpriority
)

func boost(l logger.Logger) func() {
	prev, err := getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		l.Warning("read process priority: %v", err)
		return func() {}
	}
	nice := prev
	if runtime.GOOS == "linux" {
		// the raw Linux syscall reports 20-nice
		nice = 20 - prev
	}
	target := nice - niceBoost
	if target < -20 {
		target = -20
	}
	if err := setpriority(unix.PRIO_PROCESS, 0, target); err != nil {
		l.Warning("raise process priority to nice %d: %v (continuing at nice %d)", target, err, nice)
		return func() {}
	}
	l.Debug("process priority raised from nice %d to %d", nice, target)
	return func() {
		if err := setpriority(unix.PRIO_PROCESS, 0, nice); err != nil {
			l.Debug("restore process priority: %v", err)
		}
	}
}
