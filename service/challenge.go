package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

// challengePrefix is the fixed text a wallet is asked to sign. The
// rest of the message is a millisecond timestamp and a random nonce,
// so no two challenges are ever byte-identical.
const challengePrefix = "Sign this message to authenticate: "

const nonceBytes = 4

// ChallengeIssuer owns the cache of live challenges. Issue is
// idempotent within the TTL so a wallet is never asked to re-sign a
// different message for the same connect attempt.
type ChallengeIssuer struct {
	cache ports.ChallengeCache
	ttl   time.Duration
	sf    singleflight.Group
	log   *zap.Logger
}

func NewChallengeIssuer(cache ports.ChallengeCache, ttl time.Duration, log *zap.Logger) *ChallengeIssuer {
	return &ChallengeIssuer{
		cache: cache,
		ttl:   ttl,
		log:   log.Named("challenge"),
	}
}

// Issue returns the live challenge for address, creating one if none
// exists. Concurrent calls for the same address collapse onto a single
// creation; the cache's set-if-absent covers racing instances.
func (i *ChallengeIssuer) Issue(ctx context.Context, address string) (*core.Challenge, error) {
	v, err, _ := i.sf.Do(address, func() (interface{}, error) {
		existing, ok, err := i.cache.Get(ctx, address)
		if err != nil {
			return nil, err
		}
		if ok && !existing.Expired(time.Now()) {
			return existing, nil
		}

		ch, err := i.newChallenge(address)
		if err != nil {
			return nil, err
		}
		stored, err := i.cache.Add(ctx, ch)
		if err != nil {
			return nil, err
		}
		i.log.Debug("challenge issued",
			zap.String("address", address),
			zap.Time("expires_at", stored.ExpiresAt))
		return stored, nil
	})
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}
	return v.(*core.Challenge), nil
}

// Consume returns the live challenge the authenticate path must match
// against. It deliberately does not delete the entry: deletion happens
// only after a fully successful authentication, so a client can retry
// the same signature after a transient downstream failure.
func (i *ChallengeIssuer) Consume(ctx context.Context, address string) (*core.Challenge, error) {
	ch, ok, err := i.cache.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	if !ok || ch.Expired(time.Now()) {
		return nil, core.ErrChallengeExpired
	}
	return ch, nil
}

// Clear removes the challenge after a successful authentication.
func (i *ChallengeIssuer) Clear(ctx context.Context, address string) {
	if err := i.cache.Delete(ctx, address); err != nil {
		i.log.Warn("failed to clear challenge", zap.String("address", address), zap.Error(err))
	}
}

func (i *ChallengeIssuer) newChallenge(address string) (*core.Challenge, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now()
	return &core.Challenge{
		Address:   address,
		Message:   fmt.Sprintf("%s%d-%s", challengePrefix, now.UnixMilli(), hex.EncodeToString(nonce)),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}, nil
}
