package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// execCommand is swapped in tests.
var execCommand = exec.CommandContext

// ADB reaches the device through the adb executable.
type ADB struct {
	// Path is the adb executable; "adb" when empty.
	Path string
	// Serial selects a device when several are attached.
	Serial string

	mu   sync.Mutex
	cmds []*exec.Cmd
}

func (a *ADB) args(extra ...string) (string, []string) {
	path := a.Path
	if path == "" {
		path = "adb"
	}
	var args []string
	if a.Serial != "" {
		args = append(args, "-s", a.Serial)
	}
	return path, append(args, extra...)
}

func (a *ADB) Run(ctx context.Context, cmd string) ([]byte, error) {
	path, args := a.args("shell", cmd)
	c := execCommand(ctx, path, args...)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	out, err := c.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("adb shell %q: %w: %s", cmd, err, msg)
		}
		return nil, fmt.Errorf("adb shell %q: %w", cmd, err)
	}
	return out, nil
}

// Shell starts `adb shell` with a piped stdin. The process outlives ctx
// only until ctx is cancelled.
func (a *ADB) Shell(ctx context.Context) (io.WriteCloser, error) {
	path, args := a.args("shell")
	c := execCommand(ctx, path, args...)
	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("adb shell: %w", err)
	}
	a.mu.Lock()
	a.cmds = append(a.cmds, c)
	a.mu.Unlock()
	return stdin, nil
}

// Close waits for the shells started by Shell. Their stdin must have been
// closed first.
func (a *ADB) Close() error {
	a.mu.Lock()
	cmds := a.cmds
	a.cmds = nil
	a.mu.Unlock()
	for _, c := range cmds {
		_ = c.Wait()
	}
	return nil
}

var _ Backend = (*ADB)(nil)
