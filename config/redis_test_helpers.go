package config

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// SetRedisClientForTest installs client as the shared Redis client. A nil
// client also re-arms ConnectRedis.
func SetRedisClientForTest(client *redis.Client) {
	redisClient = client
	if client == nil {
		redisOnce = sync.Once{}
	}
}

// ResetRedisClientForTest drops the shared client so the next ConnectRedis
// reads the environment again.
func ResetRedisClientForTest() {
	SetRedisClientForTest(nil)
}
