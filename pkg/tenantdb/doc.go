// Package tenantdb maintains a bounded pool of live per-tenant database
// connections for database-per-tenant deployments.
//
// Each tenant owns a separate physical database, so a naive approach of
// opening a connection pool per request would exhaust the database server
// as soon as the tenant count grows. The Manager keeps at most one handle
// per tenant, reuses handles across requests, and evicts the least recently
// used idle handle when the configured capacity is reached. When every
// pooled handle is leased by an in-flight request, acquisition fails with
// ErrPoolExhausted instead of growing past the limit.
//
// # Usage
//
//	cfg := tenantdb.Config{
//		DSNTemplate: "postgres://app:secret@db:5432/%s",
//		MaxPools:    50,
//	}
//	pool := tenantdb.New(cfg, tenantdb.PGXConnector(cfg))
//	defer pool.Clear()
//
//	h, err := pool.Get(ctx, tenantID, "tenant_acme")
//	if err != nil {
//		// handle tenantdb.ErrPoolExhausted, connect errors, etc.
//	}
//	defer pool.Release(tenantID)
//
// Handles are released, never closed, by callers. Closing is the pool's
// job: it happens on eviction, on Remove (tenant deleted) and on Clear.
//
// # Concurrency
//
// All Manager methods are safe for concurrent use. Handle creation is
// coalesced per tenant, so a burst of first requests for one tenant builds
// a single handle. Eviction re-checks the lease count under the pool lock
// immediately before closing, so a handle is never closed mid-use.
package tenantdb
