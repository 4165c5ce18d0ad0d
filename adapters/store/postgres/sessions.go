package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questlabs/walletgate/core"
)

type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, sess *core.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session
		    (id, user_id, device_id, refresh_token_hash, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,'')::inet, NULLIF($6,''), $7, $8)`,
		sess.ID, sess.UserID, sess.DeviceID, sess.RefreshTokenHash,
		sess.IPAddress, sess.UserAgent, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) FindByRefreshHash(ctx context.Context, hash []byte) (*core.Session, error) {
	var sess core.Session
	var ip, ua *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, device_id, refresh_token_hash, ip_address::text, user_agent,
		       created_at, expires_at, revoked_at
		  FROM session
		 WHERE refresh_token_hash = $1`, hash,
	).Scan(&sess.ID, &sess.UserID, &sess.DeviceID, &sess.RefreshTokenHash,
		&ip, &ua, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if ip != nil {
		sess.IPAddress = *ip
	}
	if ua != nil {
		sess.UserAgent = *ua
	}
	return &sess, nil
}

func (s *SessionStore) Rotate(ctx context.Context, id uuid.UUID, newHash []byte, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session
		   SET refresh_token_hash = $2, expires_at = $3
		 WHERE id = $1 AND revoked_at IS NULL`,
		id, newHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session SET revoked_at = now()
		 WHERE id = $1 AND revoked_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
