//go:build integration

package platform

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisTestcontainer(t *testing.T) (*Redis, func()) {
	ctx := context.Background()

	prefix := fmt.Sprintf("bgactions_%s_%d", t.Name(), time.Now().UnixNano())

	redisContainer, err := redis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second),
			wait.ForLog("Ready to accept connections").WithOccurrence(1).WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("Failed to start Redis testcontainer: %v", err)
	}

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		redisContainer.Terminate(ctx)
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}
	redisURL := connStr + "/1"

	t.Logf("Redis container started at: %s (prefix: %s)", redisURL, prefix)

	var p *Redis
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		p, err = NewRedis(redisURL, prefix, nil)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			t.Logf("Failed to connect to Redis, retrying... (%d/%d): %v", i+1, maxRetries, err)
			time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
		}
	}

	if p == nil {
		redisContainer.Terminate(ctx)
		t.Fatalf("Failed to create Redis platform after %d retries: %v", maxRetries, err)
	}

	cleanup := func() {
		ctx := context.Background()
		p.client.Del(ctx, p.CommandsKey())
		p.Close()
		if terminateErr := redisContainer.Terminate(ctx); terminateErr != nil {
			t.Logf("Failed to terminate container: %v", terminateErr)
		}
	}

	return p, cleanup
}
