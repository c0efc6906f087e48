// Package model defines the form definition consumed by the visibility
// evaluator, the field factory, the validator and the renderers. A Form is an
// ordered list of Field declarations plus a storage destination. Visibility
// rules are stored as OR-of-AND condition groups: a field is shown when any
// group matches, and a group matches when all of its conditions hold. Forms
// are plain values; builders in pkg/builder return deep copies so callers may
// share a Form across goroutines without coordination.
package model
