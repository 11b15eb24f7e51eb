// Package lease provides a Redis-backed mutual-exclusion lease so that only
// one collector process scrapes at a time.
package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key guarding the collection cycle.
const DefaultKey = "dedust:collector:lease"

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease acquires and releases a single named lock with a TTL.
type Lease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// New connects to Redis and verifies the connection.
func New(redisURL, password, key string, ttl time.Duration) (*Lease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if key == "" {
		key = DefaultKey
	}
	return &Lease{rdb: rdb, key: key, ttl: ttl}, nil
}

// Close shuts down the Redis connection.
func (l *Lease) Close() error {
	return l.rdb.Close()
}

// Acquire tries to take the lease without waiting. ok is false when another
// holder owns it. The returned release func is safe to call once the lease
// has already expired.
func (l *Lease) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.rdb, []string{l.key}, token) //nolint:errcheck
	}
	return release, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lease token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
