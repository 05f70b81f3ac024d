// Package memory is the in-process noncestore.Store backend: a single
// key->expiry map guarded by one mutex, with a background goroutine doing
// periodic lazy eviction of expired entries.
//
// Adapted from the teacher's session.NonceCache (session/nonce.go), which
// shards by keyid and stores an inner nonce->expiry map per shard to bound
// replay memory per signer. Generalized here from session (keyid, nonce)
// replay guarding to request-envelope (public_key, nonce) replay guarding
// per spec.md §4.1, and changed from a bool "seen" return to the
// insert-if-absent FirstUse contract noncestore.Store requires.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store is a per-process nonce cache. It does not coordinate across
// replicas — spec.md §5 calls this out explicitly: running multiple
// server instances against a Store requires the postgres backend instead.
type Store struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry

	cleanupInterval time.Duration
	stop            chan struct{}
	stopped         bool
}

// New creates a Store with a background eviction loop running every
// cleanupInterval (spec.md §6's STATE_CLEANUP_INTERVAL, default 10s).
func New(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Second
	}
	s := &Store{
		entries:         make(map[string]time.Time),
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// FirstUse implements noncestore.Store.
func (s *Store) FirstUse(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}

	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Close stops the background eviction loop.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	return nil
}

func (s *Store) evictLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, key)
		}
	}
}
