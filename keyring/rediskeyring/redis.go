// Package rediskeyring is a Redis-backed keyring.Keyring for
// server-side or edge deployments of the SDK where sessions should
// survive process restarts without local disk state.
package rediskeyring

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/proxy-kit/relay-client-go/keyring"
	"github.com/redis/go-redis/v9"
)

// Config for the Redis-backed keyring. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: RELAY_KEYRING_PREFIX
	KeyPrefix string `env:"RELAY_KEYRING_PREFIX,default=relay:keyring:"`
}

type Keyring struct {
	client    *redis.Client
	keyPrefix string
}

func New(cfg Config) (*Keyring, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "relay:keyring:"
	}
	return &Keyring{client: cl, keyPrefix: prefix}, nil
}

// NewFromEnv builds a Keyring using envdecode to populate Config.
func NewFromEnv() (*Keyring, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

// Close closes the Redis client.
func (k *Keyring) Close() error { return k.client.Close() }

func (k *Keyring) key(key string) string { return k.keyPrefix + key }

func (k *Keyring) Save(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, k.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("rediskeyring: set: %w", err)
	}
	return nil
}

func (k *Keyring) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := k.client.Get(ctx, k.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, keyring.ErrItemNotFound
		}
		return nil, fmt.Errorf("rediskeyring: get: %w", err)
	}
	return v, nil
}

func (k *Keyring) Delete(ctx context.Context, key string) error {
	n, err := k.client.Del(ctx, k.key(key)).Result()
	if err != nil {
		return fmt.Errorf("rediskeyring: del: %w", err)
	}
	if n == 0 {
		return keyring.ErrItemNotFound
	}
	return nil
}

func (k *Keyring) Exists(ctx context.Context, key string) (bool, error) {
	n, err := k.client.Exists(ctx, k.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("rediskeyring: exists: %w", err)
	}
	return n > 0, nil
}

var _ keyring.Keyring = (*Keyring)(nil)
