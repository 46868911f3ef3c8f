//go:build windows

package common

import "testing"

func TestPipePath(t *testing.T) {
	t.Setenv(PipeNameEnv, "")
	if got := PipePath(); got != `\\.\pipe\autotap` {
		t.Errorf("default pipe path %q", got)
	}
	t.Setenv(PipeNameEnv, "session-2")
	if got := PipePath(); got != `\\.\pipe\session-2` {
		t.Errorf("custom name gave %q", got)
	}
	t.Setenv(PipeNameEnv, `\\.\pipe\full`)
	if got := PipePath(); got != `\\.\pipe\full` {
		t.Errorf("full path gave %q", got)
	}
	if LocalEndpoint() != PipePath() {
		t.Error("LocalEndpoint should be the pipe path")
	}
}
