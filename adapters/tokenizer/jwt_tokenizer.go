// Package tokenizer signs and verifies the short-lived access tokens
// with ES256. Refresh tokens are opaque random values persisted by the
// session store and never pass through here.
package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

const AudienceAccess = "session:access"

// JWTTokenizer implements the TokenSigner port using JWT.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
}

// NewJWTTokenizer creates a new JWT tokenizer.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string) ports.TokenSigner {
	return &JWTTokenizer{signKey: signKey, issuer: issuer}
}

// SignAccess converts a user account to a signed access token.
func (j *JWTTokenizer) SignAccess(user *core.UserAccount, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.New().String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Email: user.Email,
		Admin: user.IsAdmin(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signedToken, nil
}

// VerifyAccess parses an access token and returns the identity it
// carries.
func (j *JWTTokenizer) VerifyAccess(tokenStr string) (*core.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceAccess))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrInvalidToken
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, core.ErrInvalidToken
	}

	return &core.Identity{
		UserID:  userID,
		Email:   claims.Email,
		IsAdmin: claims.Admin,
	}, nil
}
