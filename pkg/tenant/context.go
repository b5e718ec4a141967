package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantkit/pkg/tenantdb"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// handleKey carries the leased database handle for the active tenant.
type handleKey struct{}

// withCurrent binds a tenant into the context. Unexported: the Switcher is
// the only sanctioned writer of the current tenant.
func withCurrent(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext retrieves the current tenant from the context.
// Returns nil, false if no tenant is bound.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	return t, ok
}

// IDFromContext retrieves just the current tenant's id.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok || t == nil {
		return uuid.UUID{}, false
	}
	return t.ID, true
}

// MustFromContext retrieves the current tenant or panics. Use only in
// handlers that cannot function without one.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok || t == nil {
		panic("tenant: no tenant in context")
	}
	return t
}

// HandleFromContext retrieves the database handle leased for the active
// tenant. Only valid inside a Switcher.Run operation.
func HandleFromContext(ctx context.Context) (tenantdb.Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(tenantdb.Handle)
	return h, ok
}

// LoggerExtractor returns a context extractor for the logger factory that
// injects the current tenant id into log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}

// ConnectionPool is the pool surface the Switcher needs: borrow a handle for
// a tenant and give it back. Satisfied by *tenantdb.Manager.
type ConnectionPool interface {
	Get(ctx context.Context, tenantID uuid.UUID, database string) (tenantdb.Handle, error)
	Release(tenantID uuid.UUID) error
}

// Switcher activates a tenant for the duration of one operation. It is the
// sole component allowed to change the current tenant binding.
type Switcher struct {
	pool ConnectionPool
}

// NewSwitcher creates a Switcher backed by the given connection pool.
func NewSwitcher(pool ConnectionPool) *Switcher {
	return &Switcher{pool: pool}
}

// Run leases a database handle for t, binds t as the current tenant in a
// derived context and executes fn. The handle is released (never closed) on
// every exit path, including panics and context cancellation. Because the
// binding lives in the derived context only, the caller's context keeps its
// previous tenant untouched; nested Run calls restore to the immediately
// enclosing tenant by construction.
func (s *Switcher) Run(ctx context.Context, t *Tenant, fn func(ctx context.Context) error) error {
	if t == nil {
		return ErrNoTenantInContext
	}

	handle, err := s.pool.Get(ctx, t.ID, t.DatabaseName)
	if err != nil {
		return err
	}
	defer func() { _ = s.pool.Release(t.ID) }()

	ctx = withCurrent(ctx, t)
	ctx = context.WithValue(ctx, handleKey{}, handle)
	return fn(ctx)
}
