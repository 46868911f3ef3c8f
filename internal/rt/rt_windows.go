//go:build windows

package rt

import (
	"golang.org/x/sys/windows"

	"github.com/autotap/autotap/pkg/logger"
)

var (
	winmm           = windows.NewLazySystemDLL("winmm.dll")
	timeBeginPeriod = winmm.NewProc("timeBeginPeriod")
	timeEndPeriod   = winmm.NewProc("timeEndPeriod")
)

// timerPeriodMS is the system timer resolution requested while playing.
const timerPeriodMS = 1

func boost(l logger.Logger) func() {
	proc := windows.CurrentProcess()
	prevClass, err := windows.GetPriorityClass(proc)
	if err != nil {
		l.Warning("read priority class: %v", err)
	}
	raised := false
	if err := windows.SetPriorityClass(proc, windows.HIGH_PRIORITY_CLASS); err != nil {
		l.Warning("raise priority class: %v", err)
	} else {
		raised = prevClass != 0
	}

	periodSet := false
	if err := timeBeginPeriod.Find(); err != nil {
		l.Warning("timer resolution unavailable: %v", err)
	} else if r, _, _ := timeBeginPeriod.Call(timerPeriodMS); r != 0 {
		l.Warning("timeBeginPeriod(%d) returned %d", timerPeriodMS, r)
	} else {
		periodSet = true
	}

	return func() {
		if periodSet {
			timeEndPeriod.Call(timerPeriodMS)
		}
		if raised {
			_ = windows.SetPriorityClass(proc, prevClass)
		}
	}
}
