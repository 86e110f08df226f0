// Package observability provides structured logging, Prometheus metrics
// and health probes for the identity registry.
//
// The logger emits JSON through log/slog and supports field chaining and
// context plumbing, so request-scoped identifiers follow an operation
// through the organization, certificate and federation layers.
package observability
