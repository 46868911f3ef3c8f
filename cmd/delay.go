package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/pkg/source"
	"github.com/autotap/autotap/pkg/timeline"
)

var delayFlags = []cli.Flag{configFlag}

func delay(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		common.PrintRuntimeErr(ctx, "delay", "load_config", err)
		return nil
	}
	if ref == "" {
		ref = cfg.Chart
	}
	if ref == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no chart given"))
	}
	ms, ok, err := earliestInChart(context.Background(), cfg, ref)
	if err != nil {
		common.PrintRuntimeErr(ctx, "delay", "read_chart", err)
		return nil
	}
	name := source.StripCredentials(ref)
	if !ok {
		fmt.Fprintf(stdout, "%s: no playable note found\n", name)
		return nil
	}
	fmt.Fprintf(stdout, "%s: earliest note at %dms, base delay %s\n", name, ms, timeline.BaseDelay(ms))
	return nil
}
