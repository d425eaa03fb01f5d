package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl, nil), mr
}

func TestRedisLockerSingleFlight(t *testing.T) {
	l, mr := newLocker(t, time.Minute)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "docintel:job:a")
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v", ok, err)
	}

	if _, ok, err := l.Acquire(ctx, "docintel:job:a"); err != nil || ok {
		t.Fatalf("second Acquire() = %v, %v; want held", ok, err)
	}

	release()
	if mr.Exists("docintel:job:a") {
		t.Fatal("key still present after release")
	}

	if _, ok, err := l.Acquire(ctx, "docintel:job:a"); err != nil || !ok {
		t.Fatalf("Acquire after release = %v, %v", ok, err)
	}
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	l, mr := newLocker(t, time.Second)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}

	// lock expires and another worker takes it
	mr.FastForward(2 * time.Second)
	if _, ok, _ := l.Acquire(ctx, "k"); !ok {
		t.Fatal("expired lock not re-acquirable")
	}
	other, _ := mr.Get("k")

	release()
	got, err := mr.Get("k")
	if err != nil || got != other {
		t.Errorf("stale release removed the new holder's lock: %q, %v", got, err)
	}
}

func TestRedisLockerError(t *testing.T) {
	l, mr := newLocker(t, time.Minute)
	mr.Close()
	if _, _, err := l.Acquire(context.Background(), "k"); err == nil {
		t.Fatal("expected error with redis down")
	}
}

func TestRedisLockerAppliesTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"configured", 10 * time.Minute, 10 * time.Minute},
		{"default", 0, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mr := newLocker(t, tt.ttl)
			if _, ok, err := l.Acquire(context.Background(), "k"); err != nil || !ok {
				t.Fatalf("Acquire() = %v, %v", ok, err)
			}
			if got := mr.TTL("k"); got != tt.want {
				t.Errorf("lock TTL = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient() = %v", err)
	}
	_ = client.Close()

	mr.Close()
	if _, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Fatal("expected ping error with redis down")
	}
}
