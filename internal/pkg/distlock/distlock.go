package distlock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a single-owner lock on one key.
// A DistLock instance must not be shared between goroutines.
type DistLock interface {
	// Acquire tries to take the lock without blocking. Returns true on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if it is still owned.
	Release(ctx context.Context) error
}

// Factory hands out locks on arbitrary keys.
// With a Redis client the locks hold across instances, otherwise only inside this process.
type Factory struct {
	client *redis.Client
	ttl    time.Duration
	local  *localTable
}

func NewFactory(client *redis.Client, ttl time.Duration) *Factory {
	return &Factory{
		client: client,
		ttl:    ttl,
		local:  &localTable{held: make(map[string]struct{})},
	}
}

// NewLock returns a fresh lock for key
func (f *Factory) NewLock(key string) DistLock {
	if f.client != nil {
		return NewRedisLock(f.client, key, f.ttl)
	}
	return &localLock{table: f.local, key: key}
}

// Distributed reports whether locks are backed by Redis
func (f *Factory) Distributed() bool {
	return f.client != nil
}

type localTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// localLock is the in-process fallback used when Redis is not configured
type localLock struct {
	table *localTable
	key   string
	owned bool
}

func (l *localLock) Acquire(ctx context.Context) (bool, error) {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if _, busy := l.table.held[l.key]; busy {
		return false, nil
	}
	l.table.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *localLock) Release(ctx context.Context) error {
	if !l.owned {
		return nil
	}
	l.table.mu.Lock()
	delete(l.table.held, l.key)
	l.table.mu.Unlock()
	l.owned = false
	return nil
}
