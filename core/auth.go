package core

import (
	"time"

	"github.com/google/uuid"
)

// Challenge is a time-bounded message a wallet must sign to prove
// control of an address. One live challenge exists per normalized
// address; re-requesting before expiry returns the same challenge.
type Challenge struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its TTL.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Device is a physical client observed by the service. BoundAddress
// is set at most once; after that every authentication from this
// device must use the same wallet address.
type Device struct {
	ID           string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
	VisitCount   int
	BoundAddress string // empty until the first successful authentication
}

// WalletAccount links a normalized wallet address to a user.
type WalletAccount struct {
	Address   string // unique, lowercase
	UserID    uuid.UUID
	Chain     string
	CreatedAt time.Time
}

// UserAccount holds the fields of a platform user relevant to auth.
// Wallet-first signups are created without an email and auto-verified.
type UserAccount struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email,omitempty"`
	IsVerified bool      `json:"is_verified"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *UserAccount) IsAdmin() bool { return u.Role == RoleAdmin }

// Roles assignable to a UserAccount.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session is the audit and revocation record created on every
// successful authentication. It is keyed by the SHA-256 hash of the
// opaque refresh token; the signed access token is never persisted.
type Session struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	DeviceID         string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// Active reports whether the session can still redeem refresh tokens.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// TokenPair is the credential set returned by a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Identity is the claim set carried by a verified access token.
type Identity struct {
	UserID  uuid.UUID
	Email   string
	IsAdmin bool
}

// AuthResult is the outcome of a successful authenticate call.
type AuthResult struct {
	Tokens    TokenPair
	User      *UserAccount
	IsNewUser bool
}

// RequestMeta is the request metadata a device fingerprint is derived
// from. DeviceID and CookieID are client-supplied identifiers; the
// user agent and IP are the fallback inputs.
type RequestMeta struct {
	DeviceID  string
	CookieID  string
	UserAgent string
	IP        string
}
