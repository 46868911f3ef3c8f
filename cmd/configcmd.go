package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/internal/config"
	"github.com/autotap/autotap/pkg/token"
)

func configCmd(ctx *cli.Context) error {
	cfg, path, err := loadConfig()
	if err != nil && path == "" {
		common.PrintRuntimeErr(ctx, "config", "locate", err)
		return nil
	}
	switch arg := ctx.Args().First(); arg {
	case "help":
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	case "path":
		fmt.Fprintln(stdout, path)
		return nil
	case "init":
		exists, _ := afero.Exists(appFs, path)
		if exists {
			fmt.Fprintf(stdout, "autotap: %s already exists\n", path)
			return nil
		}
		if err := config.Save(appFs, path, config.Default()); err != nil {
			common.PrintRuntimeErr(ctx, "config", "save", err)
			return nil
		}
		fmt.Fprintf(stdout, "autotap: wrote defaults to %s\n", path)
		return nil
	case "token":
		tok, err := token.Ensure(token.NewKeyring(), token.NewFileStore(filepath.Dir(path)), nil)
		if err != nil {
			common.PrintRuntimeErr(ctx, "config", "token", err)
			return nil
		}
		fmt.Fprintln(stdout, tok)
		return nil
	case "":
		if err != nil {
			common.PrintRuntimeErr(ctx, "config", "load", err)
			return nil
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			common.PrintRuntimeErr(ctx, "config", "encode", err)
			return nil
		}
		fmt.Fprintf(stdout, "# %s\n%s", path, b)
		return nil
	default:
		return common.PrintErrWithCmdHelp(ctx, errors.New("unknown config action "+arg))
	}
}
