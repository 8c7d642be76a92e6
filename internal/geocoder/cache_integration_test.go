//go:build integration

package geocoder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/trasaroute/trasaroute/internal/model"
)

// startRedisContainer boots a disposable Redis instance for the cache
// round-trip test below and registers its teardown with t.Cleanup.
func startRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine", tcredis.WithLogLevel(tcredis.LogLevelNotice))
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
}

func TestResultCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := startRedisContainer(t)
	defer client.Close()
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	rc := NewResultCache(client)
	key := cacheKey("podlaskie", "ulica slonimska 1 bialystok", Components{})

	if _, ok := rc.get(ctx, key); ok {
		t.Fatal("expected a miss before the key is set")
	}

	want := LookupResult{Matches: []model.Building{{ID: 1, City: "Bialystok", Street: "Slonimska"}}}
	rc.set(ctx, key, want)

	got, ok := rc.get(ctx, key)
	if !ok {
		t.Fatal("expected a hit after set")
	}
	if len(got.Matches) != 1 || got.Matches[0].ID != want.Matches[0].ID {
		t.Errorf("round-tripped result mismatch: got %+v, want %+v", got, want)
	}
}

func TestResultCache_IntegrationExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := startRedisContainer(t)
	defer client.Close()
	ctx := context.Background()

	rc := &ResultCache{client: client}
	key := cacheKey("podlaskie", "krotka query", Components{})
	rc.set(ctx, key, LookupResult{})

	if err := client.Expire(ctx, key, 10*time.Millisecond).Err(); err != nil {
		t.Fatalf("expire: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := rc.get(ctx, key); ok {
		t.Fatal("expected the key to be gone after its TTL elapsed")
	}
}
