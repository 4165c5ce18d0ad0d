package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

const refreshTokenBytes = 32

// SessionTokenIssuer mints the access/refresh pair and keeps the
// session ledger. Session persistence is deliberately best-effort: the
// signed access token alone authorizes the immediate request, so a
// ledger write failure degrades auditability, not availability.
type SessionTokenIssuer struct {
	signer     ports.TokenSigner
	sessions   ports.SessionStore
	users      ports.UserStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
}

func NewSessionTokenIssuer(signer ports.TokenSigner, sessions ports.SessionStore, users ports.UserStore, accessTTL, refreshTTL time.Duration, log *zap.Logger) *SessionTokenIssuer {
	return &SessionTokenIssuer{
		signer:     signer,
		sessions:   sessions,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log.Named("tokens"),
	}
}

// IssueTokens mints a token pair for user and records the session. The
// returned session id is zero when the ledger write was skipped.
func (t *SessionTokenIssuer) IssueTokens(ctx context.Context, user *core.UserAccount, deviceID string, meta core.RequestMeta) (core.TokenPair, uuid.UUID, error) {
	access, err := t.signer.SignAccess(user, t.accessTTL)
	if err != nil {
		return core.TokenPair{}, uuid.Nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, hash, err := newRefreshToken()
	if err != nil {
		return core.TokenPair{}, uuid.Nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now()
	session := &core.Session{
		ID:               uuid.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		RefreshTokenHash: hash,
		IPAddress:        meta.IP,
		UserAgent:        meta.UserAgent,
		CreatedAt:        now,
		ExpiresAt:        now.Add(t.refreshTTL),
	}
	if err := t.sessions.Create(ctx, session); err != nil {
		sessionPersistFailures.Inc()
		t.log.Error("session persist failed, login continues",
			zap.String("user_id", user.ID.String()), zap.Error(err))
		return core.TokenPair{AccessToken: access, RefreshToken: refresh}, uuid.Nil, nil
	}

	return core.TokenPair{AccessToken: access, RefreshToken: refresh}, session.ID, nil
}

// Refresh exchanges a live refresh token for a new access token,
// rotating the refresh token in place.
func (t *SessionTokenIssuer) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	session, err := t.lookup(ctx, refreshToken)
	if err != nil {
		return core.TokenPair{}, err
	}

	user, err := t.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.TokenPair{}, core.ErrRefreshTokenInvalid
		}
		return core.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	access, err := t.signer.SignAccess(user, t.accessTTL)
	if err != nil {
		return core.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	newRefresh, newHash, err := newRefreshToken()
	if err != nil {
		return core.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := t.sessions.Rotate(ctx, session.ID, newHash, time.Now().Add(t.refreshTTL)); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.TokenPair{}, core.ErrRefreshTokenInvalid
		}
		return core.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return core.TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Revoke invalidates the session behind a refresh token and returns
// the revoked session for event publication.
func (t *SessionTokenIssuer) Revoke(ctx context.Context, refreshToken string) (*core.Session, error) {
	session, err := t.lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := t.sessions.Revoke(ctx, session.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	return session, nil
}

func (t *SessionTokenIssuer) lookup(ctx context.Context, refreshToken string) (*core.Session, error) {
	if refreshToken == "" {
		return nil, core.ErrRefreshTokenInvalid
	}
	hash := hashRefreshToken(refreshToken)
	session, err := t.sessions.FindByRefreshHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !session.Active(time.Now()) {
		return nil, core.ErrRefreshTokenInvalid
	}
	return session, nil
}

// newRefreshToken returns a high-entropy opaque token and the SHA-256
// hash stored in its place.
func newRefreshToken() (string, []byte, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}
