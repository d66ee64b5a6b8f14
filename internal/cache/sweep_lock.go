package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock makes a periodic job run on a single instance at a time.
type JobLock struct {
	redis *RedisClient
}

// NewJobLock creates a new JobLock.
func NewJobLock(redis *RedisClient) *JobLock {
	return &JobLock{redis: redis}
}

func (l *JobLock) key(name string) string {
	return fmt.Sprintf("joblock:%s", name)
}

// Acquire tries to take the lock for name. On success it returns a release
// function that only deletes the lock while it is still owned.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.New().String()
	ok, err := l.redis.SetNX(ctx, l.key(name), token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		_, err := l.redis.Eval(ctx, releaseScript, []string{l.key(name)}, token)
		return err
	}
	return release, true, nil
}

func (l *JobLock) runKey(name string) string {
	return fmt.Sprintf("joblast:%s", name)
}

// LastRun returns when name last ran to completion. ok is false when no run
// was recorded or the marker expired.
func (l *JobLock) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	v, err := l.redis.Get(ctx, l.runKey(name))
	if IsMiss(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	unix, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("bad last run marker %q: %w", v, err)
	}
	return time.Unix(unix, 0), true, nil
}

// MarkRun records at as the last run of name. The marker expires after ttl.
func (l *JobLock) MarkRun(ctx context.Context, name string, at time.Time, ttl time.Duration) error {
	return l.redis.Set(ctx, l.runKey(name), strconv.FormatInt(at.Unix(), 10), ttl)
}
