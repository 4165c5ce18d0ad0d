package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the platform-specific
// ones carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Admin bool   `json:"adm,omitempty"`
}
