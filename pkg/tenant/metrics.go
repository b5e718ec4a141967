package tenant

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the core's operational counters. It implements
// tenantdb.Observer so a single instance covers both resolution and pool
// activity.
type Metrics struct {
	resolutionDuration *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	poolSize           prometheus.Gauge
	poolEvictions      prometheus.Counter
	poolExhaustions    prometheus.Counter
}

// NewMetrics creates unregistered collectors. Call Register to attach them
// to a prometheus.Registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenant_resolution_duration_seconds",
				Help:    "Time spent resolving requests to tenants.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy", "outcome"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_cache_hits_total",
			Help: "Tenant resolutions served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_cache_misses_total",
			Help: "Tenant resolutions that had to consult the system of record.",
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_pool_size",
			Help: "Number of pooled per-tenant database connections.",
		}),
		poolEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_pool_evictions_total",
			Help: "Pooled connections evicted to stay within capacity.",
		}),
		poolExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_pool_exhaustions_total",
			Help: "Acquisitions rejected because every pooled connection was in use.",
		}),
	}
}

// Register attaches all collectors to r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.resolutionDuration,
		m.cacheHits,
		m.cacheMisses,
		m.poolSize,
		m.poolEvictions,
		m.poolExhaustions,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeResolution(res Resolution, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	strategy := string(res.Strategy)
	if strategy == "" {
		strategy = "none"
	}
	m.resolutionDuration.WithLabelValues(strategy, outcome).Observe(res.Duration.Seconds())

	if err == nil {
		if res.CacheHit {
			m.cacheHits.Inc()
		} else {
			m.cacheMisses.Inc()
		}
	}
}

// PoolSizeChanged implements tenantdb.Observer.
func (m *Metrics) PoolSizeChanged(size int) {
	m.poolSize.Set(float64(size))
}

// ConnectionEvicted implements tenantdb.Observer.
func (m *Metrics) ConnectionEvicted(tenantID uuid.UUID) {
	m.poolEvictions.Inc()
}

// PoolExhausted implements tenantdb.Observer.
func (m *Metrics) PoolExhausted() {
	m.poolExhaustions.Inc()
}
