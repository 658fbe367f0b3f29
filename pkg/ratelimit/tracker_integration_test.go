//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(ctx)
	})

	return client
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	// Two trackers on the same Redis behave like two processes sharing a token.
	first := NewTracker(NewRedisStore(redisClient, "token-a"), zerolog.Nop())
	second := NewTracker(NewRedisStore(redisClient, "token-a"), zerolog.Nop())

	if err := first.UpdateFromHeaders(ctx, rateHeaders(60, 0, time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := second.ShouldAllowRequest(ctx, ResourceCore)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("second tracker allowed a request on an exhausted shared window")
	}
}

func TestTracker_Integration_WindowsArePerPrincipal(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	anonymous := NewTracker(NewRedisStore(redisClient, ""), zerolog.Nop())
	authenticated := NewTracker(NewRedisStore(redisClient, "token-b"), zerolog.Nop())

	// The anonymous window runs dry.
	if err := anonymous.UpdateFromHeaders(ctx, rateHeaders(60, 0, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	if err := authenticated.UpdateFromHeaders(ctx, rateHeaders(5000, 4200, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := authenticated.ShouldAllowRequest(ctx, ResourceCore)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("authenticated tracker blocked by the anonymous window")
	}

	state, err := authenticated.GetState(ctx, ResourceCore)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 4200 || state.Limit != 5000 {
		t.Errorf("authenticated state = %d/%d, want 4200/5000", state.Remaining, state.Limit)
	}

	allowed, err = anonymous.ShouldAllowRequest(ctx, ResourceCore)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("anonymous tracker allowed a request on its exhausted window")
	}
}

func TestTracker_Integration_KeyExpiresAfterReset(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	tracker := NewTracker(NewRedisStore(redisClient, ""), zerolog.Nop())
	if err := tracker.UpdateFromHeaders(ctx, rateHeaders(60, 30, time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ttl, err := redisClient.TTL(ctx, redisKey(AnonymousPrincipal, ResourceCore)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= time.Minute || ttl > 2*time.Minute+time.Second {
		t.Errorf("TTL = %v, want between 1m and 2m", ttl)
	}
}
