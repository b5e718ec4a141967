// Package appcache provides a driver-agnostic shared application cache with
// pattern-based key deletion.
//
// The tenant deletion hook uses DeletePattern to purge every shared cache key
// prefixed by a tenant id in one call, so no data belonging to a removed
// tenant survives in the cache layer. Two drivers are included: a Redis
// driver built on github.com/redis/go-redis (SCAN + DEL, safe for large
// keyspaces) and an in-memory driver for tests and single-process setups.
//
// # Usage
//
//	client, err := appcache.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := appcache.NewRedisStore(client)
//	defer store.Close()
//
//	_ = store.Set(ctx, tenantID+":settings", payload, time.Hour)
//	_ = store.DeletePattern(ctx, tenantID+":*")
package appcache
