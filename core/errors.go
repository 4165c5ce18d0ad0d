package core

import "errors"

var (
	// ErrMalformedAddress is returned when a wallet address does not have
	// a plausible hex-address shape.
	ErrMalformedAddress = errors.New("malformed wallet address")

	// ErrInvalidSignatureFormat is returned when signature bytes cannot be
	// decoded or have the wrong length.
	ErrInvalidSignatureFormat = errors.New("invalid signature format")

	// ErrSignatureMismatch is returned when a well-formed signature
	// recovers to a different address than the claimed one.
	ErrSignatureMismatch = errors.New("signature does not match address")

	// ErrChallengeExpired is returned when no live challenge exists for an
	// address or the submitted message does not match the issued one.
	ErrChallengeExpired = errors.New("challenge expired or missing")

	// ErrDeviceConflict is returned when a device already bound to one
	// wallet address attempts to authenticate a different address.
	ErrDeviceConflict = errors.New("device is bound to another wallet")

	// ErrAccountCreation is returned when the atomic user+wallet creation
	// fails for a reason other than a concurrent duplicate.
	ErrAccountCreation = errors.New("account creation failed")

	// ErrAddressTaken is returned by stores when the unique constraint on
	// the wallet address fires; callers re-read and treat as existing.
	ErrAddressTaken = errors.New("wallet address already registered")

	// ErrRefreshTokenInvalid is returned when a refresh token is unknown,
	// expired, or revoked.
	ErrRefreshTokenInvalid = errors.New("invalid or expired refresh token")

	// ErrTokenExpired is returned when an access token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidToken is returned when an access token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")
)
