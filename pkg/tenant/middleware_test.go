package tenant_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

type middlewareEnv struct {
	store    *fakeStore
	pool     *fakePool
	resolver *tenant.Resolver
	switcher *tenant.Switcher
}

func newMiddlewareEnv(t *testing.T, resolverOpts ...tenant.ResolverOption) *middlewareEnv {
	t.Helper()
	store := newFakeStore()
	pool := newFakePool()
	opts := append([]tenant.ResolverOption{tenant.WithCache(newTestCache(t))}, resolverOpts...)
	return &middlewareEnv{
		store:    store,
		pool:     pool,
		resolver: tenant.NewResolver(store, opts...),
		switcher: tenant.NewSwitcher(pool),
	}
}

func (e *middlewareEnv) router(t *testing.T, opts ...tenant.Option) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	r.Use(tenant.Middleware(e.resolver, e.switcher, opts...))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if tn, ok := tenant.FromContext(r.Context()); ok {
			w.Header().Set("X-Test-Tenant", tn.Slug)
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func doRequest(t *testing.T, handler http.Handler, host, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(t, host, path))
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("activates tenant context for the handler", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		env.store.add(newTestTenant("acme", tenant.StatusActive, "acme.example.com"))

		rec := doRequest(t, env.router(t), "acme.example.com", "/")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "acme", rec.Header().Get("X-Test-Tenant"))
	})

	t.Run("unknown host is 404", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		rec := doRequest(t, env.router(t), "nope.example.com", "/")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("system of record failure is 500", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		env.store.err = errors.New("connection refused")

		rec := doRequest(t, env.router(t), "acme.example.com", "/")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("status gate rejects non-active tenants", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			status tenant.Status
			code   int
		}{
			{tenant.StatusSuspended, http.StatusPaymentRequired},
			{tenant.StatusBlocked, http.StatusForbidden},
			{tenant.StatusInactive, http.StatusForbidden},
		}
		for _, tc := range cases {
			env := newMiddlewareEnv(t)
			env.store.add(newTestTenant(string(tc.status), tc.status, string(tc.status)+".example.com"))

			rec := doRequest(t, env.router(t), string(tc.status)+".example.com", "/")
			assert.Equal(t, tc.code, rec.Code, tc.status)
			assert.Empty(t, rec.Header().Get("X-Test-Tenant"), "handler must not run")
		}
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		router := env.router(t, tenant.WithSkipPaths("/health", "/metrics"))

		rec := doRequest(t, router, "unknown.example.com", "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Test-Tenant"))
	})

	t.Run("debug headers expose strategy and cache state", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		env.store.add(newTestTenant("acme", tenant.StatusActive, "acme.example.com"))
		router := env.router(t, tenant.WithDebugHeaders(true))

		rec := doRequest(t, router, "acme.example.com", "/")
		assert.Equal(t, "domain", rec.Header().Get(tenant.HeaderResolvedBy))
		assert.Equal(t, "miss", rec.Header().Get(tenant.HeaderCache))

		rec = doRequest(t, router, "acme.example.com", "/")
		assert.Equal(t, "cache", rec.Header().Get(tenant.HeaderResolvedBy))
		assert.Equal(t, "hit", rec.Header().Get(tenant.HeaderCache))
	})

	t.Run("no debug headers by default", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		env.store.add(newTestTenant("acme", tenant.StatusActive, "acme.example.com"))

		rec := doRequest(t, env.router(t), "acme.example.com", "/")
		assert.Empty(t, rec.Header().Get(tenant.HeaderResolvedBy))
		assert.Empty(t, rec.Header().Get(tenant.HeaderCache))
	})

	t.Run("custom error handler", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		router := env.router(t, tenant.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := doRequest(t, router, "nope.example.com", "/")
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("stale resolution rejected unless allowed", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t,
			tenant.WithCacheTTL(10*time.Millisecond),
			tenant.WithStaleFallback(true))
		env.store.add(newTestTenant("acme", tenant.StatusActive, "acme.example.com"))
		router := env.router(t)

		rec := doRequest(t, router, "acme.example.com", "/")
		require.Equal(t, http.StatusOK, rec.Code)

		time.Sleep(20 * time.Millisecond)
		env.store.err = errors.New("connection refused")

		rec = doRequest(t, router, "acme.example.com", "/")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		allowed := env.router(t, tenant.WithAllowStale(true))
		rec = doRequest(t, allowed, "acme.example.com", "/")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMiddlewareSessionGuard(t *testing.T) {
	t.Parallel()

	newGuardedRouter := func(t *testing.T, env *middlewareEnv, sessions tenant.SessionStore, opts ...tenant.Option) http.Handler {
		t.Helper()
		guard := tenant.NewGuard(sessions, &fakePrincipals{existing: map[uuid.UUID]bool{}})
		reader := func(r *http.Request) (*tenant.Session, error) {
			token := r.Header.Get("X-Session-Token")
			if token == "" {
				return nil, nil
			}
			sess, err := sessions.Get(r.Context(), token)
			if errors.Is(err, tenant.ErrSessionNotFound) {
				return nil, nil
			}
			return sess, err
		}
		opts = append(opts, tenant.WithSessionGuard(guard, reader))
		return env.router(t, opts...)
	}

	t.Run("cross-tenant session forces re-authentication", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		tenantA := newTestTenant("a", tenant.StatusActive, "a.example.com")
		env.store.add(tenantA)

		sessions := tenant.NewMemorySessionStore()
		// Session recorded under tenant B, presented while A is active.
		sess := newGuardSession(t, sessions, uuid.New(), uuid.New())

		router := newGuardedRouter(t, env, sessions)

		rec := httptest.NewRecorder()
		req := newRequest(t, "a.example.com", "/")
		req.Header.Set("X-Session-Token", sess.Token)
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		_, err := sessions.Get(context.Background(), sess.Token)
		assert.ErrorIs(t, err, tenant.ErrSessionNotFound, "session invalidated")
	})

	t.Run("stale session redirects when configured", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		tenantA := newTestTenant("a", tenant.StatusActive, "a.example.com")
		env.store.add(tenantA)

		sessions := tenant.NewMemorySessionStore()
		sess := newGuardSession(t, sessions, uuid.New(), uuid.New())

		router := newGuardedRouter(t, env, sessions, tenant.WithReauthRedirect("/login"))

		rec := httptest.NewRecorder()
		req := newRequest(t, "a.example.com", "/")
		req.Header.Set("X-Session-Token", sess.Token)
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("request without session passes", func(t *testing.T) {
		t.Parallel()

		env := newMiddlewareEnv(t)
		env.store.add(newTestTenant("a", tenant.StatusActive, "a.example.com"))

		router := newGuardedRouter(t, env, tenant.NewMemorySessionStore())
		rec := doRequest(t, router, "a.example.com", "/")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	handler := tenant.RequireTenant(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
