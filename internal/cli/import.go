package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/internal/logging"
	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/openapi"
)

const maxDocumentSize = 16 << 20

func cmdImport() *cli.Command {
	var source, operationID, formID, output, prefix string
	var list bool

	return &cli.Command{
		Name:  "import",
		Usage: "Create a form declaration from an OpenAPI operation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "source",
				Aliases:     []string{"s"},
				Usage:       "OpenAPI document path or URL",
				Required:    true,
				Destination: &source,
			},
			&cli.StringFlag{
				Name:        "operation",
				Usage:       "Operation id to import",
				Destination: &operationID,
			},
			&cli.StringFlag{
				Name:        "form-id",
				Usage:       "Form id (defaults to the operation id)",
				Destination: &formID,
			},
			&cli.StringFlag{
				Name:        "prefix",
				Usage:       "Option key prefix for the imported form",
				Destination: &prefix,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file (stdout if empty)",
				Destination: &output,
			},
			&cli.BoolFlag{
				Name:        "list",
				Usage:       "List the operation ids of the document",
				Destination: &list,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			data, err := readSource(ctx, source)
			if err != nil {
				return err
			}
			out := writer(c)

			if list {
				ids, err := openapi.Operations(ctx, data)
				if err != nil {
					return goerr.Wrap(err, "failed to read operations", goerr.V("source", source))
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			if operationID == "" {
				return goerr.New("--operation is required unless --list is set")
			}

			options := []openapi.Option{openapi.WithFormID(formID)}
			if prefix != "" {
				options = append(options, openapi.WithStorage(model.Storage{Kind: model.StorageOptions, Prefix: prefix}))
			}
			result, err := openapi.Import(ctx, data, operationID, options...)
			if err != nil {
				return goerr.Wrap(err, "failed to import operation", goerr.V("source", source), goerr.V("operation", operationID))
			}
			for _, warning := range result.Warnings {
				logging.Default().Warn("import warning", "operation", operationID, "warning", warning)
			}

			encoded, err := loader.Encode(result.Form)
			if err != nil {
				return goerr.Wrap(err, "failed to encode form", goerr.V("form", result.Form.ID))
			}
			if output == "" {
				_, err := out.Write(encoded)
				return err
			}
			if err := os.WriteFile(output, encoded, 0o644); err != nil {
				return goerr.Wrap(err, "failed to write output", goerr.V("path", output))
			}
			logging.Default().Info("Form declaration written", "form", result.Form.ID, "path", output)
			return nil
		},
	}
}

func readSource(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		// #nosec G304 - path is provided by the operator
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read document", goerr.V("source", source))
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("source", source))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch document", goerr.V("source", source))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status fetching document", goerr.V("source", source), goerr.V("status", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read document", goerr.V("source", source))
	}
	return data, nil
}
