package ports

import (
	"time"

	"github.com/questlabs/walletgate/core"
)

// TokenSigner mints and verifies the signed, self-contained access
// tokens. Refresh tokens are opaque values and never pass through it.
type TokenSigner interface {
	SignAccess(user *core.UserAccount, ttl time.Duration) (string, error)

	// VerifyAccess returns core.ErrTokenExpired for expired tokens and
	// core.ErrInvalidToken for everything else that fails verification.
	VerifyAccess(token string) (*core.Identity, error)
}
