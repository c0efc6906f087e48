// Package orchestrator wires the form catalog, the lifecycle facade and the
// renderer registry into a single entry point: look up a declaration, apply
// transformers, run a submission when there is one, then render the view.
package orchestrator
