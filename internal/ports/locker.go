package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas. Gateways may
// retry a callback while the first attempt is still in flight; without a
// lock the two read-modify-write cycles interleave and one update is lost.
type DistributedLocker interface {
	// Lock acquires a lock for the given key (a session ID), blocking until
	// acquired or the context is done. The TTL bounds how long a crashed
	// holder can keep the lock. The returned UnlockFunc must be called to
	// release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
