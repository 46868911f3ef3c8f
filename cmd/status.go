package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/internal/server"
	"github.com/autotap/autotap/pkg/tapcli"
)

var (
	watchStatus bool

	statusFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "watch, w",
			Usage:       "follow the session until it ends",
			Destination: &watchStatus,
		},
	}
)

func status(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runStatus(sigCtx, watchStatus); err != nil {
		common.PrintRuntimeErr(ctx, "status", "call", err)
	}
	return nil
}

func runStatus(ctx context.Context, watch bool) error {
	ended := make(chan server.StateNotification, 1)
	opts := tapcli.Options{}
	if watch {
		opts.OnState = func(n server.StateNotification) {
			fmt.Fprintf(stdout, "session %s %s\n", n.Session, stateText(n.State, n.Reason))
			if n.State == "finished" || n.State == "cancelled" {
				select {
				case ended <- n:
				default:
				}
			}
		}
		opts.OnDispatch = func(n server.DispatchNotification) {
			if n.LateMS > 0 {
				fmt.Fprintf(stdout, "group %d at %dms, late %.1fms, offset %dms\n", n.Index, n.InstantMS, n.LateMS, n.OffsetMS)
			}
		}
	}

	dctx, cancel := context.WithTimeout(ctx, DEF_RPC_TIMEOUT)
	defer cancel()
	client, err := dialClient(dctx, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := client.Status(dctx)
	if err != nil {
		if errors.Is(err, tapcli.ErrNoSession) {
			fmt.Fprintln(stdout, "autotap: no session attached")
			return nil
		}
		return err
	}
	printStatus(st)
	if !watch || st.State == "finished" || st.State == "cancelled" {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			return nil
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, DEF_RPC_TIMEOUT)
			st, err := client.Status(rctx)
			cancel()
			if err != nil {
				// the session process exits shortly after the final state
				return nil
			}
			printStatus(st)
		}
	}
}

func stateText(state, reason string) string {
	if reason != "" {
		return state + " (" + reason + ")"
	}
	return state
}

func printStatus(st *server.StatusResult) {
	fmt.Fprintf(stdout, "session %s %s: %d/%d groups, base delay %s, offset %.3fs\n",
		st.Session, st.State, st.Dispatched, st.Total,
		time.Duration(st.BaseDelayMS)*time.Millisecond,
		(time.Duration(st.OffsetMS) * time.Millisecond).Seconds(),
	)
}
