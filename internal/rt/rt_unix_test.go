//go:build unix

package rt

import (
	"errors"
	"runtime"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/autotap/autotap/pkg/logger"
)

func stubPriority(t *testing.T, current int, setErr error) *[]int {
	t.Helper()
	var calls []int
	raw := current
	if runtime.GOOS == "linux" {
		raw = 20 - current
	}
	getpriority = func(which, who int) (int, error) { return raw, nil }
	setpriority = func(which, who, prio int) error {
		calls = append(calls, prio)
		return setErr
	}
	t.Cleanup(func() {
		getpriority = unix.Getpriority
		setpriority = unix.Setpriority
	})
	return &calls
}

func TestBoostRaisesAndRestores(t *testing.T) {
	calls := stubPriority(t, 0, nil)
	restore := Boost(logger.NewNopLogger())
	restore()
	if len(*calls) != 2 || (*calls)[0] != -10 || (*calls)[1] != 0 {
		t.Fatalf("unexpected setpriority calls %v", *calls)
	}
}

func TestBoostClampsAtMinimum(t *testing.T) {
	calls := stubPriority(t, -15, nil)
	Boost(nil)()
	if (*calls)[0] != -20 || (*calls)[1] != -15 {
		t.Fatalf("unexpected setpriority calls %v", *calls)
	}
}

func TestBoostFailureIsAWarning(t *testing.T) {
	calls := stubPriority(t, 0, errors.New("permission denied"))
	mock := logger.NewMockLogger()
	restore := Boost(mock)
	restore()
	if len(*calls) != 1 {
		t.Fatalf("restore should not run after a failed boost, got %v", *calls)
	}
	if len(mock.WarningCalls()) != 1 {
		t.Errorf("expected one warning, got %q", mock.WarningCalls())
	}
}
