package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// releaseScript deletes the lock key only when the token still matches.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// AcquireLock takes a best-effort distributed lock with SET NX. The returned
// release func only deletes the key if this caller still owns it.
func AcquireLock(c context.Context, key string, ttl time.Duration) (func(), error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(b)

	ok, err := GetClient().SetNX(c, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		if err := releaseScript.Run(context.Background(), GetClient(), []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("Warning: failed to release lock %s: %v", key, err)
		}
	}
	return release, nil
}
