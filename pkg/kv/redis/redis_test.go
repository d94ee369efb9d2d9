package redis

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/waapdemo/sui-demo-backend/pkg/kv"
	"github.com/waapdemo/sui-demo-backend/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}
		return store
	})
}

func TestIsConnectionError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":     {nil, false},
		"refused": {syscall.ECONNREFUSED, true},
		"message": {errors.New("dial tcp: connection refused"), true},
		"other":   {errors.New("WRONGTYPE Operation against a key"), false},
	}
	for name, tc := range cases {
		if got := IsConnectionError(tc.err); got != tc.want {
			t.Errorf("%s: IsConnectionError = %v, want %v", name, got, tc.want)
		}
	}
}
