package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/internal/config"
	"github.com/goliatone/go-formengine/pkg/form"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/renderers/tui"
	"github.com/goliatone/go-formengine/pkg/request"
)

func cmdFill() *cli.Command {
	var configPath, formID, format string
	var commit bool

	return &cli.Command{
		Name:  "fill",
		Usage: "Fill a form interactively in the terminal",
		Flags: []cli.Flag{
			configFlag(&configPath),
			formFlag(&formID),
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Output format of the collected values (json, form, pretty)",
				Value:       string(tui.OutputFormatJSON),
				Destination: &format,
			},
			&cli.BoolFlag{
				Name:        "commit",
				Usage:       "Submit the answers as the configured actor and persist them",
				Destination: &commit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}

			outputFormat := tui.ParseOutputFormat(format)
			if commit {
				outputFormat = tui.OutputFormatJSON
			}
			renderer, err := tui.New(
				tui.WithOutputFormat(outputFormat),
				tui.WithPolicy(cfg.Forms.VisibilityPolicy()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create terminal renderer")
			}
			registry := render.NewRegistry()
			registry.MustRegister(renderer)

			eng, err := newEngine(ctx, cfg, registry, orchestrator.WithDefaultRenderer(tui.Name))
			if err != nil {
				return goerr.Wrap(err, "failed to initialize form engine")
			}
			defer eng.Close() //nolint:errcheck // closed after the commit

			resp, err := eng.orch.Generate(ctx, orchestrator.Request{FormID: formID})
			if err != nil {
				return goerr.Wrap(err, "failed to collect answers", goerr.V("form", formID))
			}
			out := writer(c)
			if !commit {
				_, err := fmt.Fprintln(out, string(resp.Output))
				return err
			}

			var values map[string]any
			if err := json.Unmarshal(resp.Output, &values); err != nil {
				return goerr.Wrap(err, "failed to decode answers", goerr.V("form", formID))
			}
			if values == nil {
				values = map[string]any{}
			}
			def, ok := eng.catalog.Definition(formID)
			if !ok {
				return goerr.New("form not found", goerr.V("form", formID))
			}
			token, err := eng.csrf.Mint(def.Form.ID)
			if err != nil {
				return goerr.Wrap(err, "failed to mint token", goerr.V("form", formID))
			}
			values[def.Form.CSRFTokenName()] = token
			values[model.FormIDFieldName] = def.Form.ID

			f, err := eng.orch.Form(ctx, formID)
			if err != nil {
				return goerr.Wrap(err, "failed to bind form", goerr.V("form", formID))
			}
			result := f.Handle(ctx, request.Static{
				Submission: true,
				Data:       values,
				Principal:  cfg.Auth.Principal(),
			})
			printResult(out, result)
			if err := result.Err(); err != nil {
				return goerr.Wrap(err, "submission not saved", goerr.V("form", formID), goerr.V("state", result.State))
			}
			return nil
		},
	}
}

func printResult(out io.Writer, result form.Result) {
	fmt.Fprintf(out, "state: %s\n", result.State)
	for _, message := range result.Messages {
		fmt.Fprintln(out, message)
	}
	for _, message := range result.FormErrors {
		fmt.Fprintf(out, "error: %s\n", message)
	}
	names := make([]string, 0, len(result.Errors))
	for name := range result.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %s\n", name, result.Errors[name])
	}
}
