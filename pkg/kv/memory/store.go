package memory

import (
	"context"
	"sync"
	"time"

	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	hashes      map[string]map[string][]byte
	expirations map[string]time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a new in-memory store. A zero interval disables the janitor;
// expired keys are then only dropped when read.
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		hashes:          make(map[string]map[string][]byte),
		expirations:     make(map[string]time.Time),
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}
	return s
}

func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.expirations {
		if now.After(expiry) {
			s.deleteKeyUnsafe(key)
		}
	}
}

// liveUnsafe drops key when expired and reports whether it may be read.
// Caller must hold the write lock.
func (s *Store) liveUnsafe(key string) bool {
	if expiry, ok := s.expirations[key]; ok && time.Now().After(expiry) {
		s.deleteKeyUnsafe(key)
		return false
	}
	return true
}

func (s *Store) deleteKeyUnsafe(key string) bool {
	_, isString := s.strings[key]
	_, isHash := s.hashes[key]
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.expirations, key)
	return isString || isHash
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyUnsafe(key)
	s.strings[key] = append([]byte(nil), value...)
	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = time.Now().Add(ttl[0])
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveUnsafe(key) {
		return nil, kv.ErrNotFound
	}
	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		live := s.liveUnsafe(key)
		if s.deleteKeyUnsafe(key) && live {
			n++
		}
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if !s.liveUnsafe(key) {
			continue
		}
		_, isString := s.strings[key]
		_, isHash := s.hashes[key]
		if isString || isHash {
			n++
		}
	}
	return n, nil
}

// TTL follows Redis: -2s for a missing key, -1s for a key without expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveUnsafe(key) {
		return -2 * time.Second, nil
	}
	_, isString := s.strings[key]
	_, isHash := s.hashes[key]
	if !isString && !isHash {
		return -2 * time.Second, nil
	}
	expiry, ok := s.expirations[key]
	if !ok {
		return -1 * time.Second, nil
	}
	return time.Until(expiry), nil
}

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.liveUnsafe(key)
	delete(s.strings, key)
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	h[field] = append([]byte(nil), value...)
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveUnsafe(key) {
		return nil, kv.ErrNotFound
	}
	value, ok := s.hashes[key][field]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveUnsafe(key) {
		return 0, nil
	}
	h := s.hashes[key]
	var n int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			n++
		}
	}
	if h != nil && len(h) == 0 {
		s.deleteKeyUnsafe(key)
	}
	return n, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte)
	if !s.liveUnsafe(key) {
		return out, nil
	}
	for f, v := range s.hashes[key] {
		out[f] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.janitorStop)
	})
	<-s.janitorDone
	return nil
}
