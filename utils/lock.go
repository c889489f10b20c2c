package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/warehouse_backend/config"
)

const documentLockTTL = 30 * time.Second

// DocumentLock serialises state changes of one document across instances.
// The returned release func is always safe to call. Without redis the lock is
// skipped unless REQUIRE_REDIS_LOCK is set; row locks still apply in the db.
func DocumentLock(ctx context.Context, lockType string, id int) (func(), error) {
	logger := config.GetLogger()
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		if config.RequireRedisLock() {
			err := errors.New("redis lock is nil")
			config.LogError(logger, "utils", "DocumentLock", "Redis lock not initialized", lockType, err)
			return noop, Unrecoverable(err)
		}
		return noop, nil
	}

	lockKey := fmt.Sprintf("lock:%s:%d", lockType, id)
	lock, err := locker.Obtain(ctx, lockKey, documentLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, NewStateConflict("%s %d is being processed, try again", lockType, id)
	} else if err != nil {
		config.LogError(logger, "utils", "DocumentLock", "Error obtaining lock", lockKey, err)
		if config.RequireRedisLock() {
			return noop, Unrecoverable(err)
		}
		return noop, nil
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
