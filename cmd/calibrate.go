package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/pkg/tapcli"
)

var dialClient = func(ctx context.Context, opts tapcli.Options) (*tapcli.Client, error) {
	return tapcli.Dial(ctx, opts)
}

func parseCalibration(arg string) (calibrate.Command, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "advance", "earlier":
		return calibrate.Advance, nil
	case "retreat", "later":
		return calibrate.Retreat, nil
	case "reset":
		return calibrate.Reset, nil
	}
	return calibrate.ParseCommand(arg)
}

func calibrateCmd(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if arg == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no calibration command given"))
	}
	cmd, err := parseCalibration(arg)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	rctx, cancel := context.WithTimeout(context.Background(), DEF_RPC_TIMEOUT)
	defer cancel()
	client, err := dialClient(rctx, tapcli.Options{})
	if err != nil {
		common.PrintRuntimeErr(ctx, "calibrate", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.Calibrate(rctx, cmd)
	switch {
	case errors.Is(err, calibrate.ErrNotActive):
		fmt.Fprintln(stdout, "autotap: the session is not playing yet")
		return nil
	case err != nil:
		common.PrintRuntimeErr(ctx, "calibrate", "call", err)
		return nil
	}
	fmt.Fprintln(stdout, res.Message)
	return nil
}
