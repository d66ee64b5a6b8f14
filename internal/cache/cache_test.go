package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisClientFromClient(client)
}

func TestOTPStoreVerifyConsumesCode(t *testing.T) {
	_, rc := newTestRedis(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	if err := store.Save(ctx, "+962700000001", "123456", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := store.Verify(ctx, "+962700000001", "000000")
	if err != nil || ok {
		t.Fatalf("wrong code accepted: ok=%v err=%v", ok, err)
	}
	ok, err = store.Verify(ctx, "+962700000001", "123456")
	if err != nil || !ok {
		t.Fatalf("right code rejected: ok=%v err=%v", ok, err)
	}
	ok, _ = store.Verify(ctx, "+962700000001", "123456")
	if ok {
		t.Fatal("code should be single use")
	}
}

func TestOTPStoreExpires(t *testing.T) {
	mr, rc := newTestRedis(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	if err := store.Save(ctx, "p", "4242", time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	ok, err := store.Verify(ctx, "p", "4242")
	if err != nil || ok {
		t.Fatalf("expired code accepted: ok=%v err=%v", ok, err)
	}
}

func TestOTPStoreBurnsAfterMaxAttempts(t *testing.T) {
	_, rc := newTestRedis(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	_ = store.Save(ctx, "p", "4242", time.Minute)
	for i := 0; i < MaxOTPAttempts; i++ {
		_, _ = store.Verify(ctx, "p", "0000")
	}
	ok, err := store.Verify(ctx, "p", "4242")
	if err != nil || ok {
		t.Fatalf("burned code accepted: ok=%v err=%v", ok, err)
	}
}

func TestOTPStoreConcurrentVerifySingleWinner(t *testing.T) {
	_, rc := newTestRedis(t)
	store := NewOTPStore(rc)
	ctx := context.Background()
	if err := store.Save(ctx, "+962700000002", "654321", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Verify(ctx, "+962700000002", "654321")
			if err != nil {
				t.Errorf("verify: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful verify, got %d", wins.Load())
	}
}

func TestRateLimiterWindow(t *testing.T) {
	mr, rc := newTestRedis(t)
	rl := NewRateLimiter(rc, "otp", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := rl.Allow(ctx, "p")
		if err != nil || !ok {
			t.Fatalf("hit %d denied: %v", i, err)
		}
	}
	ok, ttl, err := rl.Allow(ctx, "p")
	if err != nil || ok {
		t.Fatalf("third hit allowed: err=%v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	ok, _, _ = rl.Allow(ctx, "p")
	if !ok {
		t.Fatal("window should have reset")
	}
}

func TestJobLock(t *testing.T) {
	_, rc := newTestRedis(t)
	lock := NewJobLock(rc)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := lock.Acquire(ctx, "sweep", time.Minute); ok {
		t.Fatal("second acquire should fail while held")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := lock.Acquire(ctx, "sweep", time.Minute); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestJobLockLastRun(t *testing.T) {
	mr, rc := newTestRedis(t)
	lock := NewJobLock(rc)
	ctx := context.Background()

	if _, ok, err := lock.LastRun(ctx, "sweep"); err != nil || ok {
		t.Fatalf("expected no marker: ok=%v err=%v", ok, err)
	}
	at := time.Date(2030, 3, 10, 2, 0, 0, 0, time.UTC)
	if err := lock.MarkRun(ctx, "sweep", at, time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, ok, err := lock.LastRun(ctx, "sweep")
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("expected %s, got %s ok=%v err=%v", at, got, ok, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := lock.LastRun(ctx, "sweep"); ok {
		t.Fatal("marker should expire")
	}
}
