// Package redis backs the challenge cache with Redis so that multiple
// service instances observe the same live challenge per address.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

const keyPrefix = "walletgate:challenge:"

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) ports.ChallengeCache {
	return &Cache{client: client}
}

func (r *Cache) key(address string) string { return keyPrefix + address }

func (r *Cache) Get(ctx context.Context, address string) (*core.Challenge, bool, error) {
	raw, err := r.client.Get(ctx, r.key(address)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get challenge: %w", err)
	}
	var ch core.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, false, fmt.Errorf("decode challenge: %w", err)
	}
	return &ch, true, nil
}

// Add relies on SET NX so that concurrent issuers across instances
// elect a single winner; losers read back the stored entry.
func (r *Cache) Add(ctx context.Context, ch *core.Challenge) (*core.Challenge, error) {
	raw, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}
	ttl := time.Until(ch.ExpiresAt)
	stored, err := r.client.SetNX(ctx, r.key(ch.Address), raw, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	if stored {
		return ch, nil
	}
	existing, ok, err := r.Get(ctx, ch.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The competing entry expired between SETNX and GET.
		if err := r.client.Set(ctx, r.key(ch.Address), raw, ttl).Err(); err != nil {
			return nil, fmt.Errorf("store challenge: %w", err)
		}
		return ch, nil
	}
	return existing, nil
}

func (r *Cache) Delete(ctx context.Context, address string) error {
	if err := r.client.Del(ctx, r.key(address)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
