package policysource

import (
	"bytes"
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/triage-ai/rbacgate/internal/policy"
)

// ErrNotFound is returned when no policy document is stored under the
// requested deployment name.
var ErrNotFound = errors.New("policysource: no policy document for deployment")

// rowStore abstracts the single query PostgresSource needs, so tests can
// substitute a fake instead of a live database.
type rowStore interface {
	policyRow(ctx context.Context, deployment string) ([]byte, error)
}

type sqlRowStore struct {
	db *sql.DB
}

func (s *sqlRowStore) policyRow(ctx context.Context, deployment string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM policy_documents WHERE deployment = $1`,
		deployment,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "policysource: query deployment %s", deployment)
	}
	return raw, nil
}

// PostgresSource reads a single JSONB-encoded policy document from a
// `policy_documents` table, keyed by deployment name. Grounded on the
// teacher's store/ProjectStore split: a small interface backed by a real
// *sql.DB implementation, so the query logic is swappable behind a fake
// in tests.
type PostgresSource struct {
	store      rowStore
	deployment string
}

// NewPostgresSource opens a Postgres-backed source over db for the named
// deployment. db is expected to have been opened against the pgx stdlib
// driver ("pgx").
func NewPostgresSource(db *sql.DB, deployment string) *PostgresSource {
	return &PostgresSource{store: &sqlRowStore{db: db}, deployment: deployment}
}

func (s *PostgresSource) Load(ctx context.Context) (any, error) {
	raw, err := s.store.policyRow(ctx, s.deployment)
	if err != nil {
		return nil, err
	}
	return policy.DecodeJSON(bytes.NewReader(raw))
}
