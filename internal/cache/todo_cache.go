package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultTTL = 1 * time.Hour
	LeaseTTL   = 5 * time.Second
)

// fillScript writes the value only while the caller still holds the lease.
// Delete drops the lease, so a fill that raced with an eviction is discarded.
var fillScript = redis.NewScript(`
if redis.call('GET', KEYS[2]) == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	redis.call('DEL', KEYS[2])
	return 1
end
return 0
`)

type TodoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTodoCache(client *redis.Client, ttl time.Duration) *TodoCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TodoCache{client: client, ttl: ttl}
}

// Get returns nil, nil on a cache miss.
func (c *TodoCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Reserve takes the fill lease for key. It must be called before the store
// is read. An empty token means another reader is already filling.
func (c *TodoCache) Reserve(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, leaseKey(key), token, LeaseTTL).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Fill stores data as JSON with the cache TTL if token still holds the
// lease. It reports whether the value was written.
func (c *TodoCache) Fill(ctx context.Context, key, token string, data interface{}) (bool, error) {
	if token == "" {
		return false, nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return false, err
	}
	n, err := fillScript.Run(ctx, c.client, []string{key, leaseKey(key)}, token, jsonData, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete evicts the keys together with any outstanding fill leases.
func (c *TodoCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	all := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		all = append(all, k, leaseKey(k))
	}
	return c.client.Del(ctx, all...).Err()
}

// TodoKey builds the cache key for a single todo.
func TodoKey(todoID int64) string {
	return fmt.Sprintf("todo:%d", todoID)
}

func leaseKey(key string) string {
	return key + ":lease"
}
