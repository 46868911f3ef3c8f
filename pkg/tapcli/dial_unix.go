//go:build !windows

package tapcli

import (
	"context"
	"net"

	"github.com/autotap/autotap/common"
)

var dialFunc = (&net.Dialer{Timeout: common.DefaultDialTimeout}).DialContext

func dial(ctx context.Context) (net.Conn, error) {
	return dialFunc(ctx, "unix", common.SocketPath())
}
