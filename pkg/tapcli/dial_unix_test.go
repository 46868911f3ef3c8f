//go:build !windows

package tapcli

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/autotap/autotap/common"
	"github.com/autotap/autotap/internal/server"
)

func TestDialUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "at")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "s.sock")
	t.Setenv(common.SocketPathEnv, path)

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	srv := server.New(server.Config{Version: "unix"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, l)
	defer srv.Close()

	c, err := Dial(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, err := c.Version(context.Background())
	if err != nil || v.Version != "unix" {
		t.Errorf("Version = %+v, %v", v, err)
	}
}

func TestDialWithoutSession(t *testing.T) {
	t.Setenv(common.SocketPathEnv, filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := Dial(context.Background(), Options{}); err == nil {
		t.Error("expected error without a running session")
	}
}
