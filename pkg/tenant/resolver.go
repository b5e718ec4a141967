package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Strategy identifies which resolution step produced a tenant.
type Strategy string

const (
	StrategyCache     Strategy = "cache"
	StrategyDomain    Strategy = "domain"
	StrategyPath      Strategy = "path"
	StrategySubdomain Strategy = "subdomain"
)

// Resolution describes how a request was mapped to its tenant. Informational
// only; exposed through debug headers, never part of any contract.
type Resolution struct {
	Strategy Strategy
	CacheHit bool
	Stale    bool
	Duration time.Duration
}

// identifierPattern keeps path segments and subdomain labels DNS/URL safe.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,62}$`)

// defaultReservedSubdomains are infrastructure labels that must never be
// treated as tenants.
var defaultReservedSubdomains = []string{"www", "api", "admin", "mail", "ftp"}

const (
	domainKeyPrefix    = "domain:"
	pathKeyPrefix      = "path:"
	subdomainKeyPrefix = "subdomain:"
)

func domainKey(host string) string     { return domainKeyPrefix + host }
func pathKey(segment string) string    { return pathKeyPrefix + segment }
func subdomainKey(label string) string { return subdomainKeyPrefix + label }

// Resolver maps inbound requests to tenants. Strategies run in fixed order,
// first success wins: cached domain, domain table, path segment, subdomain.
// Successful store lookups populate the cache so subsequent requests resolve
// without touching the system of record.
type Resolver struct {
	store         Store
	cache         Cache
	ttl           time.Duration
	lookupTimeout time.Duration
	pathPosition  int
	baseDomain    string
	reserved      map[string]struct{}
	staleFallback bool
	metrics       *Metrics
	log           *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the tenant cache. Defaults to an in-memory cache.
func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithCacheTTL sets how long resolved tenants stay cached.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLookupTimeout bounds each system-of-record lookup.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

// WithPathPosition sets the 1-based path segment holding the tenant
// identifier for path-based multi-tenancy. Defaults to 1.
func WithPathPosition(pos int) ResolverOption {
	return func(r *Resolver) {
		if pos >= 1 {
			r.pathPosition = pos
		}
	}
}

// WithBaseDomain sets the suffix stripped before subdomain extraction
// (e.g. ".example.com"). Without it, the first label of any host with at
// least three labels is used.
func WithBaseDomain(suffix string) ResolverOption {
	return func(r *Resolver) {
		r.baseDomain = suffix
	}
}

// WithReservedSubdomains replaces the reserved-word list for the subdomain
// strategy.
func WithReservedSubdomains(words ...string) ResolverOption {
	return func(r *Resolver) {
		r.reserved = make(map[string]struct{}, len(words))
		for _, w := range words {
			r.reserved[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithStaleFallback allows serving an expired cache entry when the system of
// record is unreachable. The resulting Resolution is marked Stale; the
// middleware rejects stale results unless explicitly told otherwise, so
// status-sensitive paths never see them.
func WithStaleFallback(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.staleFallback = enabled
	}
}

// WithResolverMetrics wires resolution duration and cache hit/miss counters.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithResolverLogger sets the logger for degraded-path events.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver backed by the given system of record.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:         store,
		cache:         NewMemoryCache(),
		ttl:           5 * time.Minute,
		lookupTimeout: 3 * time.Second,
		pathPosition:  1,
		log:           slog.Default(),
	}
	r.reserved = make(map[string]struct{}, len(defaultReservedSubdomains))
	for _, w := range defaultReservedSubdomains {
		r.reserved[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the resolver's cache. The lifecycle hooks invalidate through
// it so resolution and invalidation always agree on keys.
func (r *Resolver) Cache() Cache { return r.cache }

// Resolve maps the request to its owning tenant. It returns
// ErrTenantNotFound only when every strategy was exhausted cleanly; a
// system-of-record failure surfaces as ErrResolutionFailed instead, so the
// caller can distinguish 404 from 500 semantics.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Tenant, Resolution, error) {
	start := time.Now()
	tenant, res, err := r.resolve(ctx, req)
	res.Duration = time.Since(start)

	if r.metrics != nil {
		r.metrics.observeResolution(res, err)
	}
	return tenant, res, err
}

func (r *Resolver) resolve(ctx context.Context, req *http.Request) (*Tenant, Resolution, error) {
	host := hostname(req)
	segment := pathSegment(req.URL.Path, r.pathPosition)
	if !identifierPattern.MatchString(segment) {
		segment = ""
	}
	label := r.subdomain(host)
	keys := cacheKeys(host, segment, label)
	var storeErrs []error

	// Strategy 1: cache, under every key shape the request can produce.
	// Path- and subdomain-resolved tenants warm their own keys, so repeat
	// requests short-circuit here no matter which strategy fired first.
	for _, key := range keys {
		if t, ok := r.cache.Get(ctx, key); ok {
			return t, Resolution{Strategy: StrategyCache, CacheHit: true}, nil
		}
	}

	// Strategy 2: domain table.
	if host != "" {
		t, err := r.lookup(ctx, r.store.FindByDomain, host)
		switch {
		case err == nil:
			r.cache.Set(ctx, domainKey(host), t, r.ttl)
			return t, Resolution{Strategy: StrategyDomain}, nil
		case !errors.Is(err, ErrTenantNotFound):
			storeErrs = append(storeErrs, err)
		}
	}

	// Strategy 3: path segment.
	if segment != "" {
		t, err := r.lookup(ctx, r.store.FindByPathSegment, segment)
		switch {
		case err == nil:
			r.cache.Set(ctx, pathKey(segment), t, r.ttl)
			return t, Resolution{Strategy: StrategyPath}, nil
		case !errors.Is(err, ErrTenantNotFound):
			storeErrs = append(storeErrs, err)
		}
	}

	// Strategy 4: subdomain, excluding reserved infrastructure labels.
	if label != "" {
		t, err := r.lookup(ctx, r.store.FindBySubdomain, label)
		switch {
		case err == nil:
			r.cache.Set(ctx, subdomainKey(label), t, r.ttl)
			return t, Resolution{Strategy: StrategySubdomain}, nil
		case !errors.Is(err, ErrTenantNotFound):
			storeErrs = append(storeErrs, err)
		}
	}

	if len(storeErrs) > 0 {
		if r.staleFallback {
			if sr, ok := r.cache.(staleReader); ok {
				for _, key := range keys {
					if t, ok := sr.getStale(key); ok {
						r.log.WarnContext(ctx, "serving stale tenant, system of record unreachable",
							slog.String("key", key), slog.String("tenant_id", t.ID.String()))
						return t, Resolution{Strategy: StrategyCache, CacheHit: true, Stale: true}, nil
					}
				}
			}
		}
		return nil, Resolution{}, errors.Join(ErrResolutionFailed, errors.Join(storeErrs...))
	}

	return nil, Resolution{}, ErrTenantNotFound
}

// cacheKeys lists every cache key the request can resolve under, in
// strategy order. Empty components are skipped.
func cacheKeys(host, segment, label string) []string {
	keys := make([]string, 0, 3)
	if host != "" {
		keys = append(keys, domainKey(host))
	}
	if segment != "" {
		keys = append(keys, pathKey(segment))
	}
	if label != "" {
		keys = append(keys, subdomainKey(label))
	}
	return keys
}

func (r *Resolver) lookup(ctx context.Context, fn func(context.Context, string) (*Tenant, error), key string) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return fn(ctx, key)
}

// subdomain extracts the tenant label from the host, or "" when the host has
// no usable subdomain or the label is reserved.
func (r *Resolver) subdomain(host string) string {
	if host == "" {
		return ""
	}

	stripped := host
	if r.baseDomain != "" {
		if !strings.HasSuffix(host, r.baseDomain) || len(host) <= len(r.baseDomain) {
			return ""
		}
		stripped = host[:len(host)-len(r.baseDomain)]
	} else if strings.Count(host, ".") < 2 {
		// Without a configured base domain, a bare domain.tld has no
		// subdomain to extract.
		return ""
	}

	label := strings.ToLower(strings.Split(stripped, ".")[0])
	if !identifierPattern.MatchString(label) {
		return ""
	}
	if _, reserved := r.reserved[label]; reserved {
		return ""
	}
	return label
}

func hostname(req *http.Request) string {
	host := req.Host
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return strings.ToLower(host)
}

func pathSegment(path string, position int) string {
	path = strings.Trim(path, "/")
	if path == "" || position < 1 {
		return ""
	}
	parts := strings.Split(path, "/")
	if position > len(parts) {
		return ""
	}
	return parts[position-1]
}
