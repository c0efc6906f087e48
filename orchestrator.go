// Package formengine is the quick start entry point: load declarations from
// disk, bind them to an orchestrator and render pages. The pkg/ tree holds the
// building blocks for callers that need more control.
package formengine

import (
	"context"

	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/request"
)

// RenderOptions describes per-request overrides such as the action URL,
// locale and theme variant.
type RenderOptions = render.RenderOptions

// FieldSubset aliases render.FieldSubset for callers configuring partial
// rendering by group/tag/section.
type FieldSubset = render.FieldSubset

// Response aliases the orchestrator response: rendered bytes plus the
// submission outcome.
type Response = orchestrator.Response

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// LoadForms reads every YAML/JSON declaration below dir and returns an option
// serving them.
func LoadForms(dir string) (orchestrator.Option, error) {
	catalog, err := loader.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return orchestrator.WithCatalog(catalog), nil
}

// GenerateHTML renders formID for a page load with the default HTML renderer.
func GenerateHTML(ctx context.Context, formID string, opts RenderOptions, options ...orchestrator.Option) ([]byte, error) {
	resp, err := orchestrator.New(options...).Generate(ctx, orchestrator.Request{
		FormID:        formID,
		RenderOptions: opts,
	})
	if err != nil {
		return nil, err
	}
	return resp.Output, nil
}

// Submit runs req through formID's lifecycle and re-renders the form.
func Submit(ctx context.Context, formID string, req request.Request, opts RenderOptions, options ...orchestrator.Option) (Response, error) {
	return orchestrator.New(options...).Generate(ctx, orchestrator.Request{
		FormID:        formID,
		Request:       req,
		RenderOptions: opts,
	})
}
