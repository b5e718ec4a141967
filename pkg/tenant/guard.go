package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/tenantkit/pkg/tenantdb"
)

// PrincipalStore checks whether a principal row still exists in the active
// tenant's database.
type PrincipalStore interface {
	Exists(ctx context.Context, db tenantdb.Handle, principalID uuid.UUID) (bool, error)
}

// PGPrincipalStore checks principal existence with a single EXISTS query
// against the tenant database.
type PGPrincipalStore struct {
	// Table is the principal table name. Defaults to "users".
	Table string
	// Column is the primary key column. Defaults to "id".
	Column string
}

func (s *PGPrincipalStore) Exists(ctx context.Context, db tenantdb.Handle, principalID uuid.UUID) (bool, error) {
	q, ok := db.(tenantdb.Querier)
	if !ok {
		return false, errors.New("tenant: database handle does not support queries")
	}

	table, column := s.Table, s.Column
	if table == "" {
		table = "users"
	}
	if column == "" {
		column = "id"
	}

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())

	var exists bool
	if err := q.QueryRow(ctx, query, principalID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Guard detects sessions referencing principals that no longer exist in the
// active tenant database. The failure mode it closes: a tenant database is
// dropped and recreated with reused row ids, after which an old session
// token would silently authenticate as a different, coincidentally-numbered
// user.
type Guard struct {
	sessions   SessionStore
	principals PrincipalStore
	log        *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger sets the logger used for forced-logout events.
func WithGuardLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGuard creates a Guard over the given session and principal stores.
func NewGuard(sessions SessionStore, principals PrincipalStore, opts ...GuardOption) *Guard {
	g := &Guard{
		sessions:   sessions,
		principals: principals,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check validates sess against the active tenant. It runs only when both a
// session and an active tenant context exist; a nil session is trivially
// valid. A session recorded under a different tenant, or whose principal row
// is gone from the active tenant database, is classified stale: the session
// is invalidated and ErrStaleSession is returned so the caller can force
// re-authentication.
//
// The active tenant's database handle is taken from ctx, so Check must run
// inside Switcher.Run.
func (g *Guard) Check(ctx context.Context, sess *Session, active *Tenant) error {
	if sess == nil || active == nil {
		return nil
	}

	if sess.TenantID != active.ID {
		return g.invalidate(ctx, sess, active, "session bound to different tenant")
	}

	db, ok := HandleFromContext(ctx)
	if !ok {
		return ErrNoTenantInContext
	}

	exists, err := g.principals.Exists(ctx, db, sess.PrincipalID)
	if err != nil {
		return fmt.Errorf("tenant: principal check: %w", err)
	}
	if !exists {
		return g.invalidate(ctx, sess, active, "principal no longer exists")
	}

	return nil
}

// invalidate forces logout: the session is deleted from the store, which
// also drops its tenant-scoped data keys.
func (g *Guard) invalidate(ctx context.Context, sess *Session, active *Tenant, reason string) error {
	if err := g.sessions.Delete(ctx, sess.Token); err != nil {
		g.log.ErrorContext(ctx, "failed to invalidate stale session",
			slog.String("reason", reason), slog.Any("error", err))
	}
	g.log.InfoContext(ctx, "forced logout of stale session",
		slog.String("reason", reason),
		slog.String("session_tenant_id", sess.TenantID.String()),
		slog.String("active_tenant_id", active.ID.String()),
		slog.String("principal_id", sess.PrincipalID.String()))
	return fmt.Errorf("%w: %s", ErrStaleSession, reason)
}
