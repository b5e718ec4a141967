package tenant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantkit/pkg/appcache"
	"github.com/dmitrymomot/tenantkit/pkg/tenantdb"
)

// PoolAdmin is the administrative pool surface consumed by the lifecycle
// hooks. Satisfied by *tenantdb.Manager.
type PoolAdmin interface {
	Remove(tenantID uuid.UUID) error
	Clear()
}

// Lifecycle reacts to tenant provisioning events so the cache and the pool
// never serve state for a tenant that was deleted or whose status changed.
// Provisioning itself (creation wizards, hosting panel integration,
// migrations) lives outside the core and calls in through these hooks.
type Lifecycle struct {
	cache    Cache
	pool     PoolAdmin
	shared   appcache.Store
	store    Store
	cacheTTL time.Duration
	log      *slog.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithSharedCache sets the shared application cache purged on tenant
// deletion.
func WithSharedCache(shared appcache.Store) LifecycleOption {
	return func(l *Lifecycle) {
		l.shared = shared
	}
}

// WithWarmupStore enables cache warm-up by resolving domains through the
// system of record.
func WithWarmupStore(store Store) LifecycleOption {
	return func(l *Lifecycle) {
		l.store = store
	}
}

// WithLifecycleTTL sets the TTL used when the hooks prime cache entries.
func WithLifecycleTTL(ttl time.Duration) LifecycleOption {
	return func(l *Lifecycle) {
		if ttl > 0 {
			l.cacheTTL = ttl
		}
	}
}

// WithLifecycleLogger sets the logger for hook activity.
func WithLifecycleLogger(log *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLifecycle wires the hooks to the tenant cache and the connection pool.
func NewLifecycle(cache Cache, pool PoolAdmin, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		cache:    cache,
		pool:     pool,
		cacheTTL: 5 * time.Minute,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TenantCreated optionally warms the cache so the tenant's first request
// skips the system of record.
func (l *Lifecycle) TenantCreated(ctx context.Context, t *Tenant) {
	if t == nil {
		return
	}
	for _, key := range tenantCacheKeys(t) {
		l.cache.Set(ctx, key, t, l.cacheTTL)
	}
	l.log.InfoContext(ctx, "tenant created, cache warmed",
		slog.String("tenant_id", t.ID.String()),
		slog.Int("domains", len(t.Domains)))
}

// TenantDeleted removes the tenant's pooled connection, drops every cache
// key pointing at it and purges shared application-cache keys prefixed by
// the tenant id. After this returns, a request to one of the tenant's old
// domains resolves to ErrTenantNotFound.
func (l *Lifecycle) TenantDeleted(ctx context.Context, t *Tenant) error {
	if t == nil {
		return nil
	}

	var errs []error
	if err := l.pool.Remove(t.ID); err != nil && !errors.Is(err, tenantdb.ErrNotPooled) {
		errs = append(errs, err)
	}

	l.cache.DeleteAll(ctx, tenantCacheKeys(t)...)

	if l.shared != nil {
		if err := l.shared.DeletePattern(ctx, t.ID.String()+":*"); err != nil {
			errs = append(errs, err)
		}
	}

	l.log.InfoContext(ctx, "tenant deleted, connection and cache purged",
		slog.String("tenant_id", t.ID.String()))
	return errors.Join(errs...)
}

// TenantStatusChanged invalidates every cache key for the tenant before
// returning, so the very next resolve sees the new status. The status gate
// must never authorize a request from a cached pre-change record.
func (l *Lifecycle) TenantStatusChanged(ctx context.Context, t *Tenant, oldStatus, newStatus Status) {
	if t == nil || oldStatus == newStatus {
		return
	}
	l.cache.DeleteAll(ctx, tenantCacheKeys(t)...)
	l.log.InfoContext(ctx, "tenant status changed, cache invalidated",
		slog.String("tenant_id", t.ID.String()),
		slog.String("old_status", oldStatus.String()),
		slog.String("new_status", newStatus.String()))
}

// InvalidateDomain drops one domain's cache entry.
func (l *Lifecycle) InvalidateDomain(ctx context.Context, domain string) {
	l.cache.Delete(ctx, domainKey(domain))
}

// RemoveTenant forcibly closes the tenant's pooled connection. Exposed to
// administration; the deletion hook calls it implicitly.
func (l *Lifecycle) RemoveTenant(tenantID uuid.UUID) error {
	err := l.pool.Remove(tenantID)
	if errors.Is(err, tenantdb.ErrNotPooled) {
		return nil
	}
	return err
}

// WarmCache resolves the given domains through the system of record and
// primes the cache. Requires WithWarmupStore.
func (l *Lifecycle) WarmCache(ctx context.Context, domains []string) error {
	if l.store == nil {
		return errors.New("tenant: warm cache requires a store")
	}

	var errs []error
	for _, domain := range domains {
		t, err := l.store.FindByDomain(ctx, domain)
		if err != nil {
			if !errors.Is(err, ErrTenantNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		l.cache.Set(ctx, domainKey(domain), t, l.cacheTTL)
	}
	return errors.Join(errs...)
}

// tenantCacheKeys lists every cache key that can point at the tenant: one
// per domain, the subdomain labels of those domains, and the slug used by
// the path and subdomain strategies.
func tenantCacheKeys(t *Tenant) []string {
	keys := make([]string, 0, len(t.Domains)*2+2)
	for _, d := range t.Domains {
		keys = append(keys, domainKey(d))
		// A domain's first label doubles as the subdomain strategy key.
		if label := firstLabel(d); label != "" {
			keys = append(keys, subdomainKey(label))
		}
	}
	if t.Slug != "" {
		keys = append(keys, pathKey(t.Slug), subdomainKey(t.Slug))
	}
	return keys
}

func firstLabel(domain string) string {
	for i := 0; i < len(domain); i++ {
		if domain[i] == '.' {
			return domain[:i]
		}
	}
	return ""
}
