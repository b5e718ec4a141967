// Package tenant implements the request-to-tenant core for
// database-per-tenant applications: identification, caching, scoped context
// switching, status gating and stale session detection.
//
// # Architecture
//
// Five cooperating pieces handle every request:
//
//  1. Resolver - runs identification strategies in fixed order (cached
//     domain, domain table, path segment, subdomain) against a Store, the
//     system of record for tenants.
//  2. Cache - TTL'd identifier-to-tenant lookups, invalidated explicitly by
//     the lifecycle hooks so status changes are never served stale.
//  3. Switcher - leases a database handle from the tenantdb pool, binds the
//     tenant as "current" for exactly one operation and guarantees release
//     and restoration on every exit path.
//  4. Guard - detects sessions whose principal vanished from the active
//     tenant database (dropped-and-recreated databases with reused row ids)
//     and forces re-authentication.
//  5. Lifecycle - hooks called by external provisioning collaborators on
//     tenant creation, deletion and status changes.
//
// Middleware composes all of them into a net/http middleware.
//
// # Usage
//
//	pool := tenantdb.New(dbCfg, tenantdb.PGXConnector(dbCfg))
//	resolver := tenant.NewResolver(store,
//		tenant.WithBaseDomain(".example.com"),
//		tenant.WithCacheTTL(5*time.Minute),
//	)
//	switcher := tenant.NewSwitcher(pool)
//
//	r := chi.NewRouter()
//	r.Use(tenant.Middleware(resolver, switcher,
//		tenant.WithSkipPaths("/health", "/metrics"),
//	))
//
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//		t := tenant.MustFromContext(r.Context())
//		db, _ := tenant.HandleFromContext(r.Context())
//		// query db, scoped to t
//	})
//
// # Error taxonomy
//
// ErrTenantNotFound maps to 404, ErrResolutionFailed (system of record
// unreachable) to 500, tenantdb.ErrPoolExhausted to 503, the status gate
// errors to 402/403, and ErrStaleSession to 401 or a re-auth redirect. The
// default middleware error handler applies this mapping; HTTPStatus exposes
// it for custom handlers.
package tenant
