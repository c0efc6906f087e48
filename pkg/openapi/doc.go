// Package openapi imports form declarations from the request body schema of
// an OpenAPI 3 operation. Schema properties become fields; JSON schema
// keywords map onto field constraints and an optional `x-formengine`
// extension per property supplies what the schema cannot express (field
// type overrides, labels, ordering and visibility rules).
package openapi
