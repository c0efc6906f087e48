package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/internal/config"
	"github.com/goliatone/go-formengine/internal/logging"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/render"
)

func cmdRender() *cli.Command {
	var configPath, formID, output, action, theme, locale string

	return &cli.Command{
		Name:  "render",
		Usage: "Render a form to a file or stdout",
		Flags: []cli.Flag{
			configFlag(&configPath),
			formFlag(&formID),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file (stdout if empty)",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "action",
				Usage:       "Form action URL",
				Destination: &action,
			},
			&cli.StringFlag{
				Name:        "theme",
				Usage:       "Theme variant",
				Destination: &theme,
			},
			&cli.StringFlag{
				Name:        "locale",
				Usage:       "Locale for labels declaring translation keys",
				Destination: &locale,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}
			eng, err := newEngine(ctx, cfg, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize form engine")
			}
			defer eng.Close() //nolint:errcheck // read only

			resp, err := eng.orch.Generate(ctx, orchestrator.Request{
				FormID: formID,
				RenderOptions: render.RenderOptions{
					Action: action,
					Theme:  theme,
					Locale: locale,
				},
			})
			if err != nil {
				return goerr.Wrap(err, "failed to render form", goerr.V("form", formID))
			}

			if output == "" {
				_, err := fmt.Fprintln(writer(c), string(resp.Output))
				return err
			}
			if err := os.WriteFile(output, resp.Output, 0o644); err != nil {
				return goerr.Wrap(err, "failed to write output", goerr.V("path", output))
			}
			logging.Default().Info("Form written", "form", formID, "path", output)
			return nil
		},
	}
}
