package tenantdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer receives pool lifecycle notifications. Implementations must be
// fast and non-blocking; they are invoked while the pool lock is held.
type Observer interface {
	PoolSizeChanged(size int)
	ConnectionEvicted(tenantID uuid.UUID)
	PoolExhausted()
}

type entry struct {
	handle     Handle
	createdAt  time.Time
	lastUsedAt time.Time
	useCount   uint64
	leases     int
}

// Manager is a bounded pool of per-tenant database handles. At most one
// entry exists per tenant id; the pool never holds more than MaxPools
// entries.
type Manager struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*entry
	creating  map[uuid.UUID]chan struct{}
	connector Connector
	cfg       Config
	observer  Observer
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers an observer for pool size, eviction and exhaustion
// events.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger sets the logger used for eviction and removal events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a Manager that opens tenant databases with the given connector.
func New(cfg Config, connector Connector, opts ...Option) *Manager {
	if cfg.MaxPools <= 0 {
		cfg.MaxPools = 50
	}
	if cfg.CapacityWarnPct <= 0 {
		cfg.CapacityWarnPct = 90
	}
	m := &Manager{
		entries:   make(map[uuid.UUID]*entry),
		creating:  make(map[uuid.UUID]chan struct{}),
		connector: connector,
		cfg:       cfg,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a live handle for the tenant, creating one if necessary.
// The handle is leased until the caller invokes Release with the same
// tenant id. Creation of a missing handle is coalesced: concurrent callers
// for the same tenant wait for a single connect instead of racing.
//
// When the pool is full, the least recently used idle entry is evicted to
// make room. If every entry is leased, Get fails with ErrPoolExhausted.
func (m *Manager) Get(ctx context.Context, tenantID uuid.UUID, database string) (Handle, error) {
	m.mu.Lock()
	for {
		if e, ok := m.entries[tenantID]; ok {
			e.lastUsedAt = m.now()
			e.useCount++
			e.leases++
			h := e.handle
			m.mu.Unlock()
			return h, nil
		}

		ch, ok := m.creating[tenantID]
		if !ok {
			break
		}
		// Another goroutine is opening this tenant's database; wait for it
		// and then re-check the table.
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}

	if err := m.evictForCapacityLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	ch := make(chan struct{})
	m.creating[tenantID] = ch
	m.mu.Unlock()

	handle, err := m.connector(ctx, database)

	m.mu.Lock()
	delete(m.creating, tenantID)
	close(ch)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	// Capacity may have been consumed while we were connecting.
	if evictErr := m.evictForCapacityLocked(); evictErr != nil {
		m.mu.Unlock()
		handle.Close()
		return nil, evictErr
	}

	now := m.now()
	m.entries[tenantID] = &entry{
		handle:     handle,
		createdAt:  now,
		lastUsedAt: now,
		useCount:   1,
		leases:     1,
	}
	m.notifySizeLocked()
	m.mu.Unlock()

	return handle, nil
}

// evictForCapacityLocked makes room for one new entry, closing the least
// recently used idle handle if the pool is full. The lease count is checked
// under the lock, so an in-use handle is never selected. Returns
// ErrPoolExhausted when nothing can be evicted.
func (m *Manager) evictForCapacityLocked() error {
	if len(m.entries) < m.cfg.MaxPools {
		return nil
	}

	var (
		victimID uuid.UUID
		victim   *entry
	)
	for id, e := range m.entries {
		if e.leases > 0 {
			continue
		}
		if victim == nil || e.lastUsedAt.Before(victim.lastUsedAt) {
			victimID, victim = id, e
		}
	}
	if victim == nil {
		if m.observer != nil {
			m.observer.PoolExhausted()
		}
		return ErrPoolExhausted
	}

	delete(m.entries, victimID)
	victim.handle.Close()
	m.log.Debug("evicted tenant connection",
		slog.String("tenant_id", victimID.String()),
		slog.Time("last_used_at", victim.lastUsedAt))
	if m.observer != nil {
		m.observer.ConnectionEvicted(victimID)
	}
	m.notifySizeLocked()
	return nil
}

// Release returns a leased handle to the pool. The entry stays pooled for
// reuse; the underlying connection is not closed.
func (m *Manager) Release(tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[tenantID]
	if !ok {
		return ErrNotPooled
	}
	if e.leases > 0 {
		e.leases--
	}
	return nil
}

// Remove forcibly closes and deletes the tenant's entry, regardless of any
// outstanding leases. Used by the tenant deletion hook, where an in-flight
// request against a dropped database is already doomed.
func (m *Manager) Remove(tenantID uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.entries[tenantID]
	if !ok {
		m.mu.Unlock()
		return ErrNotPooled
	}
	delete(m.entries, tenantID)
	m.notifySizeLocked()
	m.mu.Unlock()

	e.handle.Close()
	m.log.Info("removed tenant connection", slog.String("tenant_id", tenantID.String()))
	return nil
}

// Clear closes and removes every entry. Administrative reset.
func (m *Manager) Clear() {
	m.mu.Lock()
	closing := make([]Handle, 0, len(m.entries))
	for id, e := range m.entries {
		closing = append(closing, e.handle)
		delete(m.entries, id)
	}
	m.notifySizeLocked()
	m.mu.Unlock()

	for _, h := range closing {
		h.Close()
	}
}

func (m *Manager) notifySizeLocked() {
	if m.observer != nil {
		m.observer.PoolSizeChanged(len(m.entries))
	}
}
