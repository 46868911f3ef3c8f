package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/pkg/coord"
)

var (
	laneNum   int
	laneCount int

	coordFlags = []cli.Flag{
		configFlag,
		cli.IntFlag{
			Name:        "lane",
			Usage:       "print the centre of this ground lane, numbered from 1",
			Destination: &laneNum,
		},
		cli.IntFlag{
			Name:        "lanes",
			Usage:       "number of ground lanes",
			Value:       4,
			Destination: &laneCount,
		},
	}
)

func coordinates(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		common.PrintRuntimeErr(ctx, "coord", "load_config", err)
		return nil
	}
	cv, err := cfg.Converter()
	if err != nil {
		common.PrintRuntimeErr(ctx, "coord", "corners", err)
		return nil
	}

	var p coord.Logical
	switch {
	case laneNum > 0:
		if laneNum > laneCount {
			return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("lane %d out of %d", laneNum, laneCount))
		}
		p = coord.LanePoint(laneNum, laneCount)
	case ctx.NArg() == 2:
		x, errX := strconv.ParseFloat(ctx.Args().Get(0), 64)
		y, errY := strconv.ParseFloat(ctx.Args().Get(1), 64)
		if err := errors.Join(errX, errY); err != nil {
			return common.PrintErrWithCmdHelp(ctx, err)
		}
		p = coord.Logical{X: x, Y: y}
	case ctx.NArg() == 0:
		c := cv.Corners()
		fmt.Fprintf(stdout, "bottom-left  %s\ntop-left     %s\ntop-right    %s\nbottom-right %s\n",
			c.BottomLeft, c.TopLeft, c.TopRight, c.BottomRight)
		return nil
	default:
		return common.PrintErrWithCmdHelp(ctx, errors.New("expected x and y, or --lane"))
	}
	fmt.Fprintf(stdout, "(%.3f, %.3f) -> %s\n", p.X, p.Y, cv.Convert(p))
	return nil
}
