package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	hist "github.com/autotap/autotap/internal/history"
)

var (
	historyLen   int
	flushHistory bool

	historyFlags = []cli.Flag{
		configFlag,
		cli.IntFlag{
			Name:        "count, n",
			Usage:       "number of sessions to list, 0 for all",
			Value:       DEF_HISTORY_LEN,
			Destination: &historyLen,
		},
		cli.BoolFlag{
			Name:        "flush, f",
			Usage:       "delete every recorded session",
			Destination: &flushHistory,
		},
	}
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "load_config", err)
		return nil
	}
	store, err := hist.Open(historyPath(cfg))
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "open", err)
		return nil
	}
	defer store.Close()

	if flushHistory {
		n, err := store.Flush(context.Background())
		if err != nil {
			common.PrintRuntimeErr(ctx, "history", "flush", err)
			return nil
		}
		fmt.Fprintf(stdout, "autotap: flushed %d session(s)\n", n)
		return nil
	}
	entries, err := store.List(context.Background(), historyLen)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "list", err)
		return nil
	}
	printHistory(entries)
	return nil
}

func printHistory(entries []hist.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "autotap: no sessions recorded")
		return
	}
	const nameW = 24
	txt := "Here are your sessions:"
	txt += "\n\n---------------------------------------------------------------------------"
	txt += "\n|        Ended        |" + common.Beaut("Timeline", nameW) + "|   Groups  |  Offset  | State"
	txt += "\n|---------------------|------------------------|-----------|----------|------"
	for _, e := range entries {
		name := e.Timeline
		if i := strings.LastIndexAny(name, `/\`); i >= 0 {
			name = name[i+1:]
		}
		if len(name) > nameW {
			name = name[:nameW-3] + "..."
		}
		state := e.State
		if e.Reason != "" {
			state += " (" + e.Reason + ")"
		}
		txt += fmt.Sprintf("\n| %s |%s|%s| %+7.3fs | %s",
			e.Ended.Local().Format(time.DateTime),
			common.Beaut(name, nameW),
			common.Beaut(fmt.Sprintf("%d/%d", e.Dispatched, e.Total), 11),
			e.FinalOffset.Seconds(),
			state,
		)
	}
	txt += "\n---------------------------------------------------------------------------"
	fmt.Fprintln(stdout, txt)
}
