// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Del", testDel},
		{"Exists", testExists},
		{"TTL", testTTL},
		{"Expiry", testExpiry},
		{"Hash", testHash},
		{"HashMissing", testHashMissing},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			cleanup(store)
			tt.test(t, store)
		})
	}
}

var testKeys = []string{"test:string", "test:a", "test:b", "test:ttl", "test:hash", "test:missing"}

func cleanup(store kv.Store) {
	_, _ = store.Del(context.Background(), testKeys...)
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte("hello world")

	if err := store.Set(ctx, "test:string", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "test:string")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get = %q, want %q", got, value)
	}

	if err := store.Set(ctx, "test:string", []byte("overwritten")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = store.Get(ctx, "test:string")
	if string(got) != "overwritten" {
		t.Fatalf("Get after overwrite = %q", got)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "test:missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	_ = store.Set(ctx, "test:a", []byte("1"))
	_ = store.Set(ctx, "test:b", []byte("2"))

	n, err := store.Del(ctx, "test:a", "test:b", "test:missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Del removed %d keys, want 2", n)
	}
	if _, err := store.Get(ctx, "test:a"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected deleted key to be gone, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	_ = store.Set(ctx, "test:a", []byte("1"))
	_ = store.HSet(ctx, "test:hash", "f", []byte("v"))

	n, err := store.Exists(ctx, "test:a", "test:hash", "test:missing")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Exists = %d, want 2", n)
	}
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	ttl, err := store.TTL(ctx, "test:missing")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -2*time.Second {
		t.Fatalf("TTL of missing key = %v, want -2s", ttl)
	}

	_ = store.Set(ctx, "test:a", []byte("1"))
	if ttl, _ = store.TTL(ctx, "test:a"); ttl != -1*time.Second {
		t.Fatalf("TTL of persistent key = %v, want -1s", ttl)
	}

	_ = store.Set(ctx, "test:ttl", []byte("1"), time.Minute)
	ttl, _ = store.TTL(ctx, "test:ttl")
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func testExpiry(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "test:ttl", []byte("1"), 1100*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	if _, err := store.Get(ctx, "test:ttl"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected expired key to be gone, got %v", err)
	}
}

func testHash(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.HSet(ctx, "test:hash", "wallet", []byte("WaaP")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if err := store.HSet(ctx, "test:hash", "address", []byte("0x1")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	got, err := store.HGet(ctx, "test:hash", "wallet")
	if err != nil || string(got) != "WaaP" {
		t.Fatalf("HGet = %q, %v", got, err)
	}

	all, err := store.HGetAll(ctx, "test:hash")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 2 || string(all["address"]) != "0x1" {
		t.Fatalf("HGetAll = %v", all)
	}

	n, err := store.HDel(ctx, "test:hash", "wallet", "nope")
	if err != nil || n != 1 {
		t.Fatalf("HDel = %d, %v", n, err)
	}
	if _, err := store.HGet(ctx, "test:hash", "wallet"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after HDel, got %v", err)
	}
}

func testHashMissing(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if _, err := store.HGet(ctx, "test:missing", "f"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, err := store.HGetAll(ctx, "test:missing")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("HGetAll of missing key = %v, want empty", all)
	}
}

func testPing(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
