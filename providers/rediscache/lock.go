package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/google/uuid"
	"github.com/mozilla-services/merino/errs"
	"github.com/redis/go-redis/v9"
)

// writeIfLockedScript atomically checks the lock, writes the entry, and
// clears the lock in one round trip, so a slower writer holding a stale
// lock token can never clobber a newer one's result.
const writeIfLockedScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
	redis.call('set', KEYS[2], ARGV[2], 'EX', tonumber(ARGV[3]))
	redis.call('del', KEYS[1])
	return 1
else
	return 0
end`

// simpleLock is a best-effort distributed lock built directly on Redis
// commands: SET NX EX to acquire, a Lua script for the compare-and-write
// release. It coordinates at most one writer per key across processes,
// not correctness-critical sections within one process.
type simpleLock struct {
	client *redis.Client
}

func lockKey(key string) string {
	return "pending_" + key
}

// isLocked reports whether key currently has a pending lock, regardless
// of which caller holds it.
func (l *simpleLock) isLocked(ctx context.Context, key string) (bool, yaerrors.Error) {
	val, err := l.client.Get(ctx, lockKey(key)).Result()
	if err != nil && err != redis.Nil {
		return false, errs.NewSuggestError(errs.SuggestNetwork, err, "checking redis lock")
	}

	return val != "", nil
}

// acquire attempts to take the lock for key, returning the token to
// present to release if successful, or an empty token if someone else
// already holds it.
func (l *simpleLock) acquire(ctx context.Context, key string, timeout time.Duration) (string, yaerrors.Error) {
	token := uuid.NewString()

	seconds := int64(timeout.Seconds())
	if seconds <= 0 {
		seconds = 3
	}

	ok, err := l.client.SetNX(ctx, lockKey(key), token, time.Duration(seconds)*time.Second).Result()
	if err != nil {
		return "", errs.NewSuggestError(errs.SuggestNetwork, err, "acquiring redis lock")
	}

	if !ok {
		return "", nil
	}

	return token, nil
}

// release conditionally writes value to key with the given ttl and clears
// the lock, but only if token still matches the current lock holder.
// A stale token silently no-ops, matching the original's "silently fails
// and discards if the lock is invalid" behavior.
func (l *simpleLock) release(
	ctx context.Context,
	key string,
	token string,
	value string,
	ttl time.Duration,
) yaerrors.Error {
	seconds := int64(ttl.Seconds())

	_, err := l.client.Eval(
		ctx,
		writeIfLockedScript,
		[]string{lockKey(key), key},
		token,
		value,
		seconds,
	).Result()
	if err != nil {
		return errs.NewSuggestError(
			errs.SuggestNetwork,
			err,
			fmt.Sprintf("writing cache entry for %q under lock", key),
		)
	}

	return nil
}
