package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/autotap/autotap/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "autotap",
		HelpName:              "autotap",
		Usage:                 "Plays touch timelines on a device in sync with the music.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "autotap <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "play",
				Aliases:                []string{"p"},
				Usage:                  "play a timeline on the device",
				Description:            PlayDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 play,
				Flags:                  playFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "delay",
				Aliases:            []string{"d"},
				Usage:              "print the base delay of a chart",
				Description:        DelayDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             delay,
				Flags:              delayFlags,
			},
			{
				Name:               "inspect",
				Aliases:            []string{"i"},
				Usage:              "summarise a timeline, optionally through a script",
				Description:        InspectDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             inspect,
				Flags:              inspectFlags,
			},
			{
				Name:               "coord",
				Usage:              "map play-field positions to device pixels",
				Description:        CoordDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             coordinates,
				Flags:              coordFlags,
			},
			{
				Name:               "calibrate",
				Aliases:            []string{"cal"},
				Usage:              "shift the running session earlier or later",
				Description:        CalibrateDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             calibrateCmd,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show the running session",
				Description:        StatusDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             status,
				Flags:              statusFlags,
			},
			{
				Name:                   "history",
				Aliases:                []string{"l"},
				Usage:                  "list or flush past sessions",
				Description:            HistoryDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 history,
				Flags:                  historyFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "config",
				Usage:              "show or initialise the configuration file",
				Description:        ConfigDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             configCmd,
				Flags:              []cli.Flag{configFlag},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of autotap",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 play,
		Flags:                  playFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
