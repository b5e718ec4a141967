package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrymomot/tenantkit/pkg/tenantdb"
)

// PoolHealth is the health surface of the connection pool consumed by the
// reporter. Satisfied by *tenantdb.Manager.
type PoolHealth interface {
	HealthCheck(ctx context.Context) tenantdb.Health
	Stats() tenantdb.PoolStats
}

// Report aggregates pool and cache state for operational visibility.
type Report struct {
	Status tenantdb.HealthStatus `json:"status"`
	Issues []string              `json:"issues,omitempty"`
	Pool   tenantdb.PoolStats    `json:"pool"`
	Cache  CacheStats            `json:"cache"`
}

// HealthReporter combines pool liveness probes with cache statistics.
type HealthReporter struct {
	pool  PoolHealth
	cache Cache
}

// NewHealthReporter creates a reporter over the pool and the tenant cache.
func NewHealthReporter(pool PoolHealth, cache Cache) *HealthReporter {
	return &HealthReporter{pool: pool, cache: cache}
}

// Report probes the pool and snapshots statistics.
func (h *HealthReporter) Report(ctx context.Context) Report {
	poolHealth := h.pool.HealthCheck(ctx)
	return Report{
		Status: poolHealth.Status,
		Issues: poolHealth.Issues,
		Pool:   h.pool.Stats(),
		Cache:  h.cache.Stats(),
	}
}

// Healthcheck returns a closure compatible with standard health endpoints
// that expect func(context.Context) error. A warning status passes; only
// error fails the check.
func (h *HealthReporter) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		report := h.Report(ctx)
		if report.Status == tenantdb.StatusError {
			return errors.New("tenant core unhealthy: " + strings.Join(report.Issues, "; "))
		}
		return nil
	}
}
