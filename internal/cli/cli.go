// Package cli wires the formengine commands: serve, render, fill, lint and
// import.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/internal/logging"
)

// Run executes the formengine command line.
func Run(ctx context.Context, args []string, version string) error {
	app := newApp(version, nil)
	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run formengine", "error", err)
		return err
	}
	return nil
}

func newApp(version string, out io.Writer) *cli.Command {
	var loggerCfg logging.Config
	var closer func()

	return &cli.Command{
		Name:    "formengine",
		Usage:   "Declarative admin forms with validation, visibility rules and safe persistence",
		Version: version,
		Writer:  out,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Debug("Starting formengine", "logger", &loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdRender(),
			cmdFill(),
			cmdLint(),
			cmdImport(),
		},
	}
}

func configFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "TOML configuration file",
		Value:       "formengine.toml",
		Sources:     cli.EnvVars("FORMENGINE_CONFIG"),
		Destination: dest,
	}
}

func formFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "form",
		Aliases:     []string{"f"},
		Usage:       "Form id",
		Required:    true,
		Destination: dest,
	}
}

// writer returns where command output goes.
func writer(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
