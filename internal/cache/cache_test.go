package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	stored := Entry{
		Value:    json.RawMessage(`{"price_usd":100.5}`),
		Source:   domain.SourcePrimary,
		StoredAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Set(ctx, "price:bitcoin", stored); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := store.Get(ctx, "price:bitcoin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Source != domain.SourcePrimary {
		t.Fatalf("expected primary source, got %s", got.Source)
	}
	if !got.StoredAt.Equal(stored.StoredAt) {
		t.Fatalf("timestamp mangled: %v", got.StoredAt)
	}
	if string(got.Value) != `{"price_usd":100.5}` {
		t.Fatalf("value mangled: %s", got.Value)
	}
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)

	_, ok, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error on miss: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestRedisStoreTTLEviction(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Second)
	ctx := context.Background()

	if err := store.Set(ctx, "k", Entry{Value: json.RawMessage(`1`), StoredAt: time.Now().UTC()}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	_, ok, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected entry evicted after TTL")
	}
}

func TestRedisStoreCorruptEntryIsMiss(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)

	mr.Set("marketdata:bad", "{not json")
	_, ok, err := store.Get(context.Background(), "bad")
	if err != nil {
		t.Fatalf("corrupt entry should not error: %v", err)
	}
	if ok {
		t.Fatal("corrupt entry should read as a miss")
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Entry{Value: json.RawMessage(`1`), Source: domain.SourcePrimary, StoredAt: time.Unix(1, 0)}
	second := Entry{Value: json.RawMessage(`2`), Source: domain.SourceSecondary, StoredAt: time.Unix(2, 0)}
	store.Set(ctx, "k", first)
	store.Set(ctx, "k", second)

	got, ok, _ := store.Get(ctx, "k")
	if !ok || string(got.Value) != `2` || got.Source != domain.SourceSecondary {
		t.Fatalf("expected last write, got %+v ok=%v", got, ok)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Set(ctx, "shared", Entry{Value: json.RawMessage(`0`), StoredAt: time.Now()})
				store.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	if _, ok, _ := store.Get(ctx, "shared"); !ok {
		t.Fatal("expected entry to survive concurrent writes")
	}
}

func TestEntryAge(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC)
	e := Entry{StoredAt: now.Add(-3 * time.Minute)}
	if e.Age(now) != 3*time.Minute {
		t.Fatalf("expected 3m age, got %v", e.Age(now))
	}
}
