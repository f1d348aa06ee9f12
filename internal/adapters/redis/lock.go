package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/sediba/edubot/internal/ports"
)

// unlockScript deletes the lock key only when the holder's token still
// matches, so a lock that expired and was re-acquired by another replica
// is never released by the old holder.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const lockRetryInterval = 50 * time.Millisecond

// Locker implements ports.DistributedLocker with Redis SET NX PX. It
// serializes gateway callbacks for one session id across replicas.
type Locker struct {
	client *backend.Client
	prefix string
}

var _ ports.DistributedLocker = (*Locker)(nil)

// NewLocker creates a Redis locker. Lock keys are prefix + "lock:" + key.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires the lock for a session id, polling until acquired or ctx
// is done. The token stored under the key ties the returned UnlockFunc to
// this acquisition.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := fmt.Sprintf("%d", time.Now().UnixNano())

	unlock, ok, err := l.try(ctx, lockKey, token, ttl)
	if err != nil || ok {
		return unlock, err
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			unlock, ok, err := l.try(ctx, lockKey, token, ttl)
			if err != nil {
				return nil, err
			}
			if ok {
				return unlock, nil
			}
		}
	}
}

func (l *Locker) try(ctx context.Context, lockKey, token string, ttl time.Duration) (ports.UnlockFunc, bool, error) {
	acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
	}, true, nil
}
