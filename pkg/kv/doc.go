// Package kv provides a key-value store with in-memory and Redis backends.
//
// Backends register themselves from their package init, so callers import
// the backends they want for side effects:
//
//	import (
//		"github.com/waapdemo/sui-demo-backend/pkg/kv"
//		_ "github.com/waapdemo/sui-demo-backend/pkg/kv/memory"
//		_ "github.com/waapdemo/sui-demo-backend/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis, RedisURL: url})
//
// When the Redis backend is selected but unreachable at startup the factory
// falls back to the in-memory store and logs the reason.
package kv
