package tenantdb

import "time"

type Config struct {
	DSNTemplate       string        `env:"TENANTDB_DSN_TEMPLATE,required"`                // DSNTemplate is a fmt template with a single %s verb replaced by the tenant database name.
	MaxPools          int           `env:"TENANTDB_MAX_POOLS" envDefault:"50"`            // MaxPools is the maximum number of tenant handles kept open at once.
	MaxConnsPerTenant int32         `env:"TENANTDB_MAX_CONNS_PER_TENANT" envDefault:"4"`  // MaxConnsPerTenant caps the pgx pool size of each tenant handle.
	MinConnsPerTenant int32         `env:"TENANTDB_MIN_CONNS_PER_TENANT" envDefault:"0"`  // MinConnsPerTenant is the number of idle connections each tenant handle keeps warm.
	PingTimeout       time.Duration `env:"TENANTDB_PING_TIMEOUT" envDefault:"2s"`         // PingTimeout bounds the liveness probe used by HealthCheck.
	ConnectAttempts   int           `env:"TENANTDB_CONNECT_ATTEMPTS" envDefault:"3"`      // ConnectAttempts is the number of attempts to open a tenant database.
	ConnectInterval   time.Duration `env:"TENANTDB_CONNECT_INTERVAL" envDefault:"2s"`     // ConnectInterval is the base delay between connect attempts.
	CapacityWarnPct   int           `env:"TENANTDB_CAPACITY_WARN_PCT" envDefault:"90"`    // CapacityWarnPct is the fill percentage at which HealthCheck reports a warning.
}
