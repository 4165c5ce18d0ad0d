package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/questlabs/walletgate/core"
)

// CreateUserParams carries the fields of an atomic user+wallet signup.
// SecretHash is the credential-of-last-resort placeholder every
// account stores; it is never used for wallet login.
type CreateUserParams struct {
	Address    string
	Chain      string
	Email      string
	SecretHash string
}

// UserStore persists users and their linked wallets. Implementations
// must enforce global uniqueness of the wallet address and return
// core.ErrAddressTaken when a concurrent signup loses that race.
type UserStore interface {
	FindByWalletAddress(ctx context.Context, address string) (*core.UserAccount, error)
	FindByID(ctx context.Context, id uuid.UUID) (*core.UserAccount, error)

	// CreateWithWallet writes the UserAccount and WalletAccount in one
	// atomic unit, or neither.
	CreateWithWallet(ctx context.Context, p CreateUserParams) (*core.UserAccount, error)

	// SetEmailIfEmpty backfills an email onto an account that has none.
	// An existing email is never overwritten.
	SetEmailIfEmpty(ctx context.Context, id uuid.UUID, email string) error
}

// DeviceStore persists devices and the one-device-to-one-wallet
// pairing. The check-and-set in BindAddress is the authoritative
// invariant enforcer and must be atomic at the storage layer.
type DeviceStore interface {
	// Observe upserts the device row, bumping last-seen and visit count,
	// and returns its current state.
	Observe(ctx context.Context, deviceID string, at time.Time) (*core.Device, error)

	// BindAddress sets the device's bound wallet address if unset.
	// Rebinding the same address is a no-op; a different address fails
	// with core.ErrDeviceConflict.
	BindAddress(ctx context.Context, deviceID, address string) error
}

// SessionStore persists the session ledger keyed by refresh token hash.
type SessionStore interface {
	Create(ctx context.Context, s *core.Session) error
	FindByRefreshHash(ctx context.Context, hash []byte) (*core.Session, error)

	// Rotate swaps the refresh token hash and extends the expiry.
	Rotate(ctx context.Context, id uuid.UUID, newHash []byte, expiresAt time.Time) error

	Revoke(ctx context.Context, id uuid.UUID) error
}
