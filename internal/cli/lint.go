package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/pkg/loader"
)

func cmdLint() *cli.Command {
	var strict bool

	return &cli.Command{
		Name:      "lint",
		Usage:     "Check form declaration files",
		ArgsUsage: "[DIR...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "strict",
				Usage:       "Treat warnings as errors",
				Destination: &strict,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			dirs := c.Args().Slice()
			if len(dirs) == 0 {
				dirs = []string{"forms"}
			}
			out := writer(c)

			var failed, warned int
			for _, dir := range dirs {
				catalog, err := loader.LoadDir(dir)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", dir, err)
					continue
				}
				for _, id := range catalog.IDs() {
					def, _ := catalog.Definition(id)
					fmt.Fprintf(out, "ok   %s (%s, %d fields)\n", id, def.Source, len(def.Form.Fields))
					for _, warning := range def.Warnings {
						warned++
						fmt.Fprintf(out, "WARN %s: %s\n", id, warning)
					}
				}
			}

			if failed > 0 {
				return goerr.New("form declarations failed to load", goerr.V("failures", failed))
			}
			if strict && warned > 0 {
				return goerr.New("form declarations have warnings", goerr.V("warnings", warned))
			}
			return nil
		},
	}
}
