package locks

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	redisclient "github.com/eswasthya/portal/backend/internal/infrastructure/clients/redis"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const lockKeyPrefix = "lock:ledger:"

// RedisRecordLocker holds ledger keys with a Redis lease so several API replicas
// sharing one signing account never race on the same record.
type RedisRecordLocker struct {
	locker  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
}

var _ providers.RecordLocker = (*RedisRecordLocker)(nil)

// NewRedisRecordLocker creates a locker. ttl bounds how long a crashed holder blocks others.
func NewRedisRecordLocker(client *redisclient.Client, ttl time.Duration) *RedisRecordLocker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisRecordLocker{
		locker:  redislock.New(client.Client()),
		ttl:     ttl,
		backoff: 100 * time.Millisecond,
	}
}

// Lock obtains the lease for key, retrying until ctx is done
func (l *RedisRecordLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperrors.NewConflictError("Record is being modified, try again")
	}
	if err != nil {
		return nil, apperrors.FromUpstream("failed to lock record", err)
	}

	return func() {
		// the request context may already be cancelled; release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", key).Msg("failed to release record lock")
		}
	}, nil
}
