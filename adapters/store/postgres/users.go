package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) FindByWalletAddress(ctx context.Context, address string) (*core.UserAccount, error) {
	var u core.UserAccount
	var email *string
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.is_verified, u.role, u.created_at
		  FROM app_user u
		  JOIN wallet_account w ON w.user_id = u.id
		 WHERE w.address = $1`, address,
	).Scan(&u.ID, &email, &u.IsVerified, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find user by wallet: %w", err)
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*core.UserAccount, error) {
	var u core.UserAccount
	var email *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, is_verified, role, created_at
		  FROM app_user
		 WHERE id = $1`, id,
	).Scan(&u.ID, &email, &u.IsVerified, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

// CreateWithWallet inserts the user and wallet rows in one
// transaction. A unique violation on the wallet address maps to
// core.ErrAddressTaken so the resolver can fall back to a re-read.
func (s *UserStore) CreateWithWallet(ctx context.Context, p ports.CreateUserParams) (*core.UserAccount, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var u core.UserAccount
	u.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO app_user (id, email, secret_hash, is_verified, role)
		VALUES ($1, NULLIF($2,''), $3, TRUE, $4)
		RETURNING is_verified, role, created_at`,
		u.ID, p.Email, p.SecretHash, core.RoleUser,
	).Scan(&u.IsVerified, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u.Email = p.Email

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_account (address, user_id, chain)
		VALUES ($1, $2, $3)`,
		p.Address, u.ID, p.Chain,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrAddressTaken
		}
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrAddressTaken
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &u, nil
}

func (s *UserStore) SetEmailIfEmpty(ctx context.Context, id uuid.UUID, email string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE app_user SET email = $2
		 WHERE id = $1 AND email IS NULL`, id, email)
	if err != nil {
		return fmt.Errorf("backfill email: %w", err)
	}
	return nil
}
