package tenantdb

import "errors"

var (
	// ErrPoolExhausted is returned when the pool is at capacity and every
	// entry is leased by an in-flight request, so nothing can be evicted.
	ErrPoolExhausted = errors.New("tenantdb: pool exhausted")

	// ErrConnectFailed is returned when a tenant database could not be
	// opened after all configured attempts.
	ErrConnectFailed = errors.New("tenantdb: failed to open tenant database")

	// ErrInvalidDatabaseName is returned when a tenant database name is not
	// safe to substitute into the DSN template.
	ErrInvalidDatabaseName = errors.New("tenantdb: invalid database name")

	// ErrNotPooled is returned by Release and Remove when no entry exists
	// for the tenant.
	ErrNotPooled = errors.New("tenantdb: tenant has no pooled connection")
)
