package tenant

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tenantkit/pkg/tenantdb"
)

var (
	// ErrTenantNotFound is returned when every resolution strategy is
	// exhausted without an error and no tenant matched.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrResolutionFailed is returned when the system of record is
	// unreachable during resolution. Distinct from ErrTenantNotFound so
	// callers can choose 404 vs 500 semantics.
	ErrResolutionFailed = errors.New("tenant resolution failed")

	// ErrTenantInactive gates requests for tenants that were deactivated.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrTenantSuspended gates requests for suspended tenants.
	ErrTenantSuspended = errors.New("tenant is suspended")

	// ErrTenantBlocked gates requests for blocked tenants.
	ErrTenantBlocked = errors.New("tenant is blocked")

	// ErrStaleSession signals that the presented session no longer matches
	// the active tenant and re-authentication is required.
	ErrStaleSession = errors.New("session is stale")

	// ErrNoTenantInContext is returned when an operation requires an
	// active tenant context and none is bound.
	ErrNoTenantInContext = errors.New("no tenant in context")
)

// StatusError maps a tenant status to its gate error, or nil for an active
// tenant.
func StatusError(s Status) error {
	switch s {
	case StatusActive:
		return nil
	case StatusSuspended:
		return ErrTenantSuspended
	case StatusBlocked:
		return ErrTenantBlocked
	default:
		return ErrTenantInactive
	}
}

// HTTPStatus maps the package error taxonomy to response codes for the
// default middleware error handler.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, tenantdb.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTenantSuspended):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrTenantInactive), errors.Is(err, ErrTenantBlocked):
		return http.StatusForbidden
	case errors.Is(err, ErrStaleSession):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
