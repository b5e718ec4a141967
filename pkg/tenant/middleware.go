package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Debug response headers set by WithDebugHeaders.
const (
	HeaderResolvedBy = "X-Tenant-Resolved-By"
	HeaderCache      = "X-Tenant-Cache"
)

// Middleware wires the full per-request flow: resolve the tenant, gate on
// its status, activate the tenant context with a leased database connection,
// validate any existing session, and hand off to the next handler. The
// context (and the connection lease) is scoped to this request only; nothing
// leaks across requests.
func Middleware(resolver *Resolver, switcher *Switcher, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			resolved, res, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			// A stale resolution bypassed the system of record; status
			// gating on it would trust data the admin may have just
			// changed. Reject unless the route opted in.
			if res.Stale && !cfg.allowStale {
				cfg.errorHandler(w, r, ErrResolutionFailed)
				return
			}

			if cfg.debugHeaders {
				w.Header().Set(HeaderResolvedBy, string(res.Strategy))
				if res.CacheHit {
					w.Header().Set(HeaderCache, "hit")
				} else {
					w.Header().Set(HeaderCache, "miss")
				}
			}

			err = switcher.Run(r.Context(), resolved, func(ctx context.Context) error {
				if gateErr := StatusError(resolved.Status); gateErr != nil {
					return gateErr
				}

				if cfg.guard != nil && cfg.sessions != nil {
					sess, sessErr := cfg.sessions(r)
					if sessErr != nil && !errors.Is(sessErr, ErrSessionNotFound) {
						cfg.log.WarnContext(ctx, "failed to read session",
							slog.Any("error", sessErr))
					}
					if sess != nil {
						if guardErr := cfg.guard.Check(ctx, sess, resolved); guardErr != nil {
							return guardErr
						}
					}
				}

				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				if errors.Is(err, ErrStaleSession) && cfg.reauthURL != "" {
					http.Redirect(w, r, cfg.reauthURL, http.StatusSeeOther)
					return
				}
				cfg.errorHandler(w, r, err)
			}
		})
	}
}

// RequireTenant ensures a tenant context is bound, for routes mounted
// behind Middleware that must never run without one.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t, ok := FromContext(r.Context()); !ok || t == nil {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
