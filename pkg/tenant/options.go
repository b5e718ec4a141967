package tenant

import (
	"errors"
	"log/slog"
	"net/http"
)

// ErrorHandler turns a resolution, gating or session error into a response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// SessionReader extracts the current session from a request, if any.
// Returning nil, nil means no session is present.
type SessionReader func(r *http.Request) (*Session, error)

// config holds middleware configuration.
type config struct {
	errorHandler ErrorHandler
	skipPaths    []string
	log          *slog.Logger
	debugHeaders bool
	guard        *Guard
	sessions     SessionReader
	allowStale   bool
	reauthURL    string
}

// Option configures the middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets path prefixes that bypass tenant resolution entirely
// (health endpoints, metrics, static assets).
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		c.skipPaths = paths
	}
}

// WithLogger sets the middleware logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithDebugHeaders adds X-Tenant-Resolved-By and X-Tenant-Cache response
// headers indicating which strategy fired and whether the cache hit.
// Informational only, not a contract.
func WithDebugHeaders(enabled bool) Option {
	return func(c *config) {
		c.debugHeaders = enabled
	}
}

// WithSessionGuard enables stale session detection. The reader extracts the
// session from the request; the guard validates it against the active
// tenant.
func WithSessionGuard(guard *Guard, sessions SessionReader) Option {
	return func(c *config) {
		c.guard = guard
		c.sessions = sessions
	}
}

// WithAllowStale lets the middleware serve resolutions flagged stale by the
// resolver's fallback. Only enable on read-mostly routes where
// authorization does not depend on tenant status.
func WithAllowStale(allowed bool) Option {
	return func(c *config) {
		c.allowStale = allowed
	}
}

// WithReauthRedirect redirects stale sessions to the given URL instead of
// responding 401.
func WithReauthRedirect(url string) Option {
	return func(c *config) {
		c.reauthURL = url
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	msg := http.StatusText(HTTPStatus(err))
	switch {
	case errors.Is(err, ErrTenantNotFound):
		msg = "Tenant not found"
	case errors.Is(err, ErrTenantInactive):
		msg = "Tenant is inactive"
	case errors.Is(err, ErrTenantSuspended):
		msg = "Tenant is suspended"
	case errors.Is(err, ErrTenantBlocked):
		msg = "Tenant is blocked"
	case errors.Is(err, ErrStaleSession):
		msg = "Session is no longer valid, please sign in again"
	}
	http.Error(w, msg, HTTPStatus(err))
}
