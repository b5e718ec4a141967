package tenantdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// HealthStatus is the aggregate liveness verdict of the pool.
type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy"
	StatusWarning HealthStatus = "warning"
	StatusError   HealthStatus = "error"
)

// Health is the result of probing every pooled handle.
type Health struct {
	Status HealthStatus `json:"status"`
	Issues []string     `json:"issues,omitempty"`
}

// EntryStats describes one pooled connection.
type EntryStats struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	UseCount   uint64    `json:"use_count"`
	InUse      bool      `json:"in_use"`
}

// PoolStats is a point-in-time snapshot of the pool.
type PoolStats struct {
	Size    int          `json:"size"`
	MaxSize int          `json:"max_size"`
	Entries []EntryStats `json:"entries"`
}

// Stats returns a snapshot of pool size and per-entry usage.
func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := PoolStats{
		Size:    len(m.entries),
		MaxSize: m.cfg.MaxPools,
		Entries: make([]EntryStats, 0, len(m.entries)),
	}
	for id, e := range m.entries {
		stats.Entries = append(stats.Entries, EntryStats{
			TenantID:   id,
			CreatedAt:  e.createdAt,
			LastUsedAt: e.lastUsedAt,
			UseCount:   e.useCount,
			InUse:      e.leases > 0,
		})
	}
	return stats
}

// HealthCheck pings every pooled handle and aggregates the outcome. An
// unresponsive handle degrades the status to error; a pool filled past the
// configured warning threshold degrades it to warning.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	m.mu.Lock()
	type probe struct {
		id     uuid.UUID
		handle Handle
	}
	probes := make([]probe, 0, len(m.entries))
	for id, e := range m.entries {
		probes = append(probes, probe{id: id, handle: e.handle})
	}
	size, maxSize := len(m.entries), m.cfg.MaxPools
	m.mu.Unlock()

	health := Health{Status: StatusHealthy}

	if maxSize > 0 {
		pct := size * 100 / maxSize
		if pct >= m.cfg.CapacityWarnPct {
			health.Status = StatusWarning
			health.Issues = append(health.Issues,
				fmt.Sprintf("pool at %d%% capacity (%d/%d)", pct, size, maxSize))
		}
	}

	// Pings run concurrently outside the pool lock, all under one deadline,
	// so a slow database neither blocks acquisition nor stretches the check
	// to one timeout per entry.
	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout())
	defer cancel()

	var (
		issuesMu sync.Mutex
		issues   []string
	)
	var g errgroup.Group
	for _, p := range probes {
		p := p
		g.Go(func() error {
			if err := p.handle.Ping(pingCtx); err != nil {
				issuesMu.Lock()
				issues = append(issues,
					fmt.Sprintf("tenant %s: connection unresponsive: %v", p.id, err))
				issuesMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(issues) > 0 {
		health.Status = StatusError
		health.Issues = append(health.Issues, issues...)
	}
	return health
}

func (m *Manager) pingTimeout() time.Duration {
	if m.cfg.PingTimeout > 0 {
		return m.cfg.PingTimeout
	}
	return 2 * time.Second
}
