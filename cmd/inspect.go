package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/internal/config"
	"github.com/autotap/autotap/pkg/source"
)

var (
	inspectScript string
	inspectOut    string

	inspectFlags = []cli.Flag{
		configFlag,
		cli.StringFlag{
			Name:        "script, s",
			Usage:       "transform the timeline with this JavaScript file",
			Destination: &inspectScript,
		},
		cli.StringFlag{
			Name:        "out, o",
			Usage:       "write the resulting timeline to this file",
			Destination: &inspectOut,
		},
	}
)

func inspect(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		common.PrintRuntimeErr(ctx, "inspect", "load_config", err)
		return nil
	}
	if inspectScript != "" {
		cfg.Script = inspectScript
	}
	if ref == "" {
		ref = cfg.Timeline
	}
	if ref == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no timeline given"))
	}
	_ = runInspect(context.Background(), cfg, ref, inspectOut)
	return nil
}

// runInspect prints a summary of ref after the configured script and
// optionally writes the result to out.
func runInspect(ctx context.Context, cfg *config.Config, ref, out string) error {
	l := newLogger(stderr, cfg.LogLevel)
	tl, err := prepareTimeline(ctx, cfg, "inspect", ref, l)
	if err != nil {
		return err
	}
	sum := tl.Summarize()
	fmt.Fprintf(stdout, "%s: %d groups, %d actions, %dms - %dms, %d warning(s)\n",
		source.StripCredentials(ref), sum.Groups, sum.Actions, sum.FirstMS, sum.LastMS, len(tl.Validate()))
	if b := tl.Meta().Baseline(); b.Valid {
		fmt.Fprintf(stdout, "base delay %s from timeline metadata\n", b.Delay())
	}
	if out == "" {
		return nil
	}
	if err := appFs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		common.PrintRuntimeErr(nil, "inspect", "write", err)
		return err
	}
	f, err := appFs.Create(out)
	if err != nil {
		common.PrintRuntimeErr(nil, "inspect", "write", err)
		return err
	}
	if err := errors.Join(tl.Encode(f), f.Close()); err != nil {
		common.PrintRuntimeErr(nil, "inspect", "write", err)
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", out)
	return nil
}
