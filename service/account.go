package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

const placeholderSecretBytes = 32

// AccountResolver finds or atomically creates the user+wallet pair for
// a verified address.
type AccountResolver struct {
	users ports.UserStore
	chain string
	log   *zap.Logger
}

func NewAccountResolver(users ports.UserStore, chain string, log *zap.Logger) *AccountResolver {
	return &AccountResolver{users: users, chain: chain, log: log.Named("account")}
}

// Resolve returns the account for address, creating one when none
// exists. The second return value reports whether the account was
// created by this call. Safe under concurrent first-time connects: a
// unique-address conflict falls back to a re-read instead of failing.
func (r *AccountResolver) Resolve(ctx context.Context, address, email string) (*core.UserAccount, bool, error) {
	user, err := r.users.FindByWalletAddress(ctx, address)
	switch {
	case err == nil:
		r.backfillEmail(ctx, user, email)
		return user, false, nil
	case !errors.Is(err, core.ErrNotFound):
		return nil, false, fmt.Errorf("%w: %v", core.ErrAccountCreation, err)
	}

	secretHash, err := placeholderSecret()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", core.ErrAccountCreation, err)
	}

	user, err = r.users.CreateWithWallet(ctx, ports.CreateUserParams{
		Address:    address,
		Chain:      r.chain,
		Email:      email,
		SecretHash: secretHash,
	})
	if err == nil {
		r.log.Info("wallet-first signup",
			zap.String("address", address),
			zap.String("user_id", user.ID.String()))
		return user, true, nil
	}

	// Lost the creation race: the winner's row is authoritative.
	if errors.Is(err, core.ErrAddressTaken) {
		user, err = r.users.FindByWalletAddress(ctx, address)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", core.ErrAccountCreation, err)
		}
		r.backfillEmail(ctx, user, email)
		return user, false, nil
	}

	return nil, false, fmt.Errorf("%w: %v", core.ErrAccountCreation, err)
}

// backfillEmail fills a missing email without ever overwriting an
// existing one. Failure is not fatal to the login.
func (r *AccountResolver) backfillEmail(ctx context.Context, user *core.UserAccount, email string) {
	if email == "" || user.Email != "" {
		return
	}
	if err := r.users.SetEmailIfEmpty(ctx, user.ID, email); err != nil {
		r.log.Warn("email backfill failed",
			zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.Email = email
}

// placeholderSecret produces the hashed credential-of-last-resort a
// wallet-first account stores. It is random and unguessable; wallet
// login never reads it.
func placeholderSecret() (string, error) {
	raw := make([]byte, placeholderSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate placeholder secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(raw)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash placeholder secret: %w", err)
	}
	return string(hash), nil
}
