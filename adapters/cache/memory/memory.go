// Package memory backs the challenge cache with an in-process
// go-cache instance. Suitable for single-instance deployments; the
// redis adapter covers horizontally scaled ones.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

const sweepInterval = time.Minute

type Cache struct {
	c *gocache.Cache
}

// New creates a challenge cache whose expired entries are purged both
// lazily on lookup and by go-cache's background janitor.
func New(defaultTTL time.Duration) ports.ChallengeCache {
	return &Cache{c: gocache.New(defaultTTL, sweepInterval)}
}

func (m *Cache) Get(_ context.Context, address string) (*core.Challenge, bool, error) {
	v, ok := m.c.Get(address)
	if !ok {
		return nil, false, nil
	}
	ch, ok := v.(*core.Challenge)
	if !ok {
		return nil, false, nil
	}
	return ch, true, nil
}

func (m *Cache) Add(_ context.Context, ch *core.Challenge) (*core.Challenge, error) {
	ttl := time.Until(ch.ExpiresAt)
	if err := m.c.Add(ch.Address, ch, ttl); err != nil {
		// Lost the race or a live entry already exists; return it.
		if v, ok := m.c.Get(ch.Address); ok {
			if existing, ok := v.(*core.Challenge); ok {
				return existing, nil
			}
		}
		// The existing entry expired between Add and Get; retry once.
		m.c.Set(ch.Address, ch, ttl)
	}
	return ch, nil
}

func (m *Cache) Delete(_ context.Context, address string) error {
	m.c.Delete(address)
	return nil
}
