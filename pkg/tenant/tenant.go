package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant. Anything other than
// StatusActive is gated before a request reaches its handler.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusBlocked:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Tenant is the record the core reads and caches. The system of record owns
// it; nothing here mutates tenants.
type Tenant struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Status         Status    `json:"status"`
	DatabaseName   string    `json:"database_name"`
	Domains        []string  `json:"domains"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// IsActive reports whether requests for this tenant may be served.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

// Store is the system of record for tenants and their domains. Lookups carry
// a bounded timeout set by the resolver. Implementations return
// ErrTenantNotFound for a clean miss; any other error is treated as the
// system of record being unreachable.
type Store interface {
	// FindByDomain looks up the tenant owning a full hostname in the
	// domain table.
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)

	// FindByPathSegment looks up a tenant by the identifier used in
	// path-based multi-tenancy (e.g. "acme" in /acme/dashboard).
	FindByPathSegment(ctx context.Context, segment string) (*Tenant, error)

	// FindBySubdomain looks up a tenant by its subdomain label
	// (e.g. "acme" in acme.example.com).
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}
