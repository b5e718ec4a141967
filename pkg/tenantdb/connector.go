package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handle is a live connection to one tenant's database. It is owned
// exclusively by the pool; callers borrow it via Manager.Get and must never
// close it themselves.
type Handle interface {
	Ping(ctx context.Context) error
	Close()
}

// Querier is the query surface of a pgx-backed Handle. Components that need
// to run queries against the active tenant database assert a Handle to this
// interface.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connector opens a handle to the named tenant database.
type Connector func(ctx context.Context, database string) (Handle, error)

// databaseNamePattern rejects anything that could break out of the DSN
// template. Tenant database names come from the system of record, but the
// DSN is still no place to trust free-form strings.
var databaseNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGXConnector returns a Connector that opens a pgxpool.Pool for each tenant
// database using cfg.DSNTemplate. Connection attempts back off linearly so a
// database server restart does not turn into a thundering herd of reconnects.
func PGXConnector(cfg Config) Connector {
	return func(ctx context.Context, database string) (Handle, error) {
		if !databaseNamePattern.MatchString(database) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDatabaseName, database)
		}

		connConfig, err := pgxpool.ParseConfig(fmt.Sprintf(cfg.DSNTemplate, database))
		if err != nil {
			return nil, errors.Join(ErrConnectFailed, err)
		}
		connConfig.MaxConns = cfg.MaxConnsPerTenant
		connConfig.MinConns = cfg.MinConnsPerTenant

		attempts := cfg.ConnectAttempts
		if attempts < 1 {
			attempts = 1
		}

		var lastErr error
		for i := 0; i < attempts; i++ {
			pool, err := pgxpool.NewWithConfig(ctx, connConfig)
			if err == nil {
				if err = pool.Ping(ctx); err == nil {
					return pool, nil
				}
				pool.Close()
			}
			lastErr = err

			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrConnectFailed, ctx.Err())
			case <-time.After(time.Duration(i+1) * cfg.ConnectInterval):
			}
		}

		return nil, errors.Join(ErrConnectFailed, lastErr)
	}
}
