// Package policysource loads the untyped policy document that
// internal/policy.Load validates, from a local file or a Postgres-backed
// store. Reload is the host's concern — a Source is read once at startup
// and again whenever the host decides to, never polled internally.
package policysource

import "context"

// Source produces the untyped document internal/policy.Load consumes.
// Implementations decode their backing format (YAML, JSON, JSONB) into the
// same any shape so the loader never knows which source served it.
type Source interface {
	Load(ctx context.Context) (any, error)
}
