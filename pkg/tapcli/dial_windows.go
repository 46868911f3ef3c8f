//go:build windows

package tapcli

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/autotap/autotap/common"
)

var dialPipeFunc = winio.DialPipeContext

func dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, common.DefaultDialTimeout)
	defer cancel()
	return dialPipeFunc(ctx, common.PipePath())
}
